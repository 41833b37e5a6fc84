package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/varejo/internal/client/session"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const lojaFlag = "loja"

func newPermsCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms",
		Short: "Inspect and edit permission maps",
	}
	cmd.AddCommand(newPermsShowCommand(a), newPermsSetCommand(a), newPermsWatchCommand(a))
	return cmd
}

func newPermsShowCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [usuario_id]",
		Short: "Print a permission map, the caller's by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if len(args) == 0 || args[0] == a.store.ActorID() {
				return a.printJSON(a.store.Permissions())
			}
			if err := a.authorize("usuarios", permissions.ActionView); err != nil {
				return err
			}

			m, err := a.client.GetPermissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(m)
		},
	}
}

// ParseGrants applies section.flag=bool arguments to m.
func ParseGrants(m *permissions.Map, args []string) error {
	for _, arg := range args {
		target, raw, ok := strings.Cut(arg, "=")
		section, flag, okFlag := strings.Cut(target, ".")
		if !ok || !okFlag || section == "" || flag == "" {
			return fmt.Errorf("invalid grant %q, want section.flag=true|false", arg)
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid grant %q: %w", arg, err)
		}
		m.Set(section, flag, v)
	}
	return nil
}

// parseLoja reads the --loja value: empty keeps the current restriction,
// "all" lifts it.
func parseLoja(m *permissions.Map, raw string) error {
	switch raw {
	case "":
		return nil
	case "all":
		m.LojaID = nil
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid --%s %q: %w", lojaFlag, raw, err)
	}
	m.LojaID = &id
	return nil
}

func newPermsSetCommand(a *App) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		lojaFlag: &cobraflags.StringFlag{
			Name:  lojaFlag,
			Value: "",
			Usage: "Restrict the user to one store id, or 'all'",
		},
	}

	cmd := &cobra.Command{
		Use:   "set <usuario_id> [section.flag=true|false...]",
		Short: "Grant or revoke permission flags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			usuarioID := args[0]
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if !a.store.Can("usuarios", "editar_permissoes") {
				return fmt.Errorf("%w: usuarios.editar_permissoes is not granted", common.ErrForbidden)
			}

			m, err := a.client.GetPermissions(cmd.Context(), usuarioID)
			if err != nil {
				return err
			}
			m = m.Clone()
			if err := ParseGrants(&m, args[1:]); err != nil {
				return err
			}
			if err := parseLoja(&m, flags[lojaFlag].GetString()); err != nil {
				return err
			}

			updated, err := a.client.UpdatePermissions(cmd.Context(), usuarioID, m)
			if err != nil {
				return err
			}
			return a.printJSON(updated)
		},
	}

	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newPermsWatchCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the caller's permission map every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if err := a.printJSON(a.store.Permissions()); err != nil {
				return err
			}

			a.store.OnChange(func(m permissions.Map) {
				if err := a.printJSON(m); err != nil {
					a.logger.Error(ctx, "print permissions", "error", err)
				}
			})
			a.store.StartWatch(ctx)
			a.store.WaitWatch(ctx)
			a.store.StopWatch()

			if ctx.Err() == nil && a.store.State() != session.StateReady {
				return fmt.Errorf("session ended: %w", session.ErrNotLoggedIn)
			}
			return nil
		},
	}
}
