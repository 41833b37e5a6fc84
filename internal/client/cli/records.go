package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/varejo/internal/client/client"
	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/dmitrijs2005/varejo/internal/permissions"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const (
	fileFlag        = "file"
	attachFlag      = "attach"
	photosFlag      = "photos"
	clearPhotosFlag = "clear-photos"
)

// seesRow reports whether the actor may see r under its store restriction.
// Rows without a store reference are always visible.
func seesRow(m permissions.Map, table string, r records.Record) bool {
	if m.LojaID == nil {
		return true
	}
	field := permissions.LojaKey
	if table == "lojas" {
		field = "id"
	}
	if !r.Has(field) || r[field] == nil {
		return true
	}
	id, err := strconv.ParseInt(r.String(field), 10, 64)
	return err != nil || m.SeesStore(id)
}

// visible drops rows of stores the actor is restricted from.
func visible(m permissions.Map, table string, rows []records.Record) []records.Record {
	if m.LojaID == nil {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if seesRow(m, table, r) {
			out = append(out, r)
		}
	}
	return out
}

func (a *App) checkRow(table string, r records.Record) error {
	if !seesRow(a.store.Permissions(), table, r) {
		return fmt.Errorf("%w: row belongs to another store", common.ErrForbidden)
	}
	return nil
}

// checkStored fetches the row behind key and applies checkRow to it. Actors
// without a store restriction skip the fetch.
func (a *App) checkStored(ctx context.Context, table, key string) error {
	if a.store.Permissions().LojaID == nil {
		return nil
	}
	row, err := a.client.Get(ctx, table, key)
	if err != nil {
		return err
	}
	return a.checkRow(table, row)
}

func newListCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "Print every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if err := a.authorize(table, permissions.ActionView); err != nil {
				return err
			}

			rows, err := a.client.List(cmd.Context(), table)
			if err != nil {
				return err
			}
			return a.printJSON(visible(a.store.Permissions(), table, rows))
		},
	}
}

func newGetCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>",
		Short: "Print one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, key := args[0], args[1]
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if err := a.authorize(table, permissions.ActionView); err != nil {
				return err
			}

			row, err := a.client.Get(cmd.Context(), table, key)
			if err != nil {
				return err
			}
			if err := a.checkRow(table, row); err != nil {
				return err
			}
			return a.printJSON(row)
		},
	}
}

func newCreateCommand(a *App) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		fileFlag: &cobraflags.StringFlag{
			Name:  fileFlag,
			Value: "",
			Usage: "Photo to upload with the new row",
		},
	}

	cmd := &cobra.Command{
		Use:   "create <table> [field=value...]",
		Short: "Insert a row",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			values, err := ParseAssignments(args[1:])
			if err != nil {
				return err
			}

			var file *client.File
			if path := flags[fileFlag].GetString(); path != "" {
				if file, err = readAttachment(path); err != nil {
					return err
				}
			}

			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if err := a.authorize(table, permissions.ActionCreate); err != nil {
				return err
			}
			if err := a.checkRow(table, values); err != nil {
				return err
			}

			row, err := a.client.Create(cmd.Context(), table, values, file)
			if err != nil {
				return err
			}
			return a.printJSON(row)
		},
	}

	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newUpdateCommand(a *App) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		attachFlag: &cobraflags.StringFlag{
			Name:  attachFlag,
			Value: "",
			Usage: "Photo to add to the row",
		},
		photosFlag: &cobraflags.StringFlag{
			Name:  photosFlag,
			Value: "",
			Usage: "Comma-separated photo URLs to keep; the others are removed",
		},
	}

	cmd := &cobra.Command{
		Use:   "update <table> <key> [field=value...]",
		Short: "Update a row",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, key := args[0], args[1]
			values, err := ParseAssignments(args[2:])
			if err != nil {
				return err
			}

			var req client.UpdateRequest
			if path := flags[attachFlag].GetString(); path != "" {
				if req.File, err = readAttachment(path); err != nil {
					return err
				}
			}
			if clearAll, _ := cmd.Flags().GetBool(clearPhotosFlag); clearAll {
				req.ReplacePhotos = true
				req.Photos = []string{}
			} else if urls := flags[photosFlag].GetString(); urls != "" {
				req.ReplacePhotos = true
				req.Photos = splitList(urls)
			}

			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if err := a.authorize(table, permissions.ActionUpdate); err != nil {
				return err
			}
			if err := a.checkStored(cmd.Context(), table, key); err != nil {
				return err
			}
			if err := a.checkRow(table, values); err != nil {
				return err
			}

			row, err := a.client.Update(cmd.Context(), table, key, values, req)
			if err != nil {
				return err
			}
			return a.printJSON(row)
		},
	}

	cobraflags.RegisterMap(cmd, flags)
	cmd.Flags().Bool(clearPhotosFlag, false, "Remove every photo of the row")
	return cmd
}

func newDeleteCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <key>",
		Short: "Delete a row and its photos",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, key := args[0], args[1]
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if err := a.authorize(table, permissions.ActionDelete); err != nil {
				return err
			}
			if err := a.checkStored(cmd.Context(), table, key); err != nil {
				return err
			}

			ok, err := a.client.Delete(cmd.Context(), table, key)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"success": ok, "id": key})
		},
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
