package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/buildinfo"
	"github.com/dmitrijs2005/varejo/internal/client/session"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree bound to a.
func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "varejo",
		Short:         "Operator command line for the varejo retail backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			// token pair may have been rotated by the refresh interceptor
			if a.store.State() != session.StateReady {
				return nil
			}
			return a.store.Save()
		},
	}

	root.AddCommand(
		newVersionCommand(a),
		newSignUpCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoAmICommand(a),
		newListCommand(a),
		newGetCommand(a),
		newCreateCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newPermsCommand(a),
	)
	return root
}

func newVersionCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(a.out)
		},
	}
}

// restore loads the saved session; every command but login, signup and
// logout needs one.
func (a *App) restore(ctx context.Context) error {
	if err := a.store.Restore(ctx); err != nil {
		if errors.Is(err, session.ErrNotLoggedIn) {
			return fmt.Errorf("%w: run 'varejo login' first", err)
		}
		return err
	}
	return nil
}

// authorize checks the flag guarding action on table against the actor's
// permission map.
func (a *App) authorize(table string, action permissions.Action) error {
	section, flag, err := permissions.FlagFor(table, action)
	if err != nil {
		return err
	}
	if !a.store.Can(section, flag) {
		return fmt.Errorf("%w: %s.%s is not granted", common.ErrForbidden, section, flag)
	}
	return nil
}
