package cli

import (
	"fmt"

	"github.com/dmitrijs2005/varejo/internal/common"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

const emailFlag = "email"

func (a *App) credentials(email string) (string, string, error) {
	var err error
	if email == "" {
		email, err = getSimpleText(a.reader, "Enter email", a.errOut)
		if err != nil {
			return "", "", err
		}
	}

	password, err := getPassword(a.errOut)
	if err != nil {
		return "", "", err
	}
	if email == "" || len(password) == 0 {
		return "", "", common.ErrMissingCredentials
	}
	return email, string(password), nil
}

func newSignUpCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signup [email]",
		Short: "Create a login identity on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var email string
			if len(args) == 1 {
				email = args[0]
			}
			email, password, err := a.credentials(email)
			if err != nil {
				return err
			}

			id, err := a.client.SignUp(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{"id": id, "email": email})
		},
	}
}

func newLoginCommand(a *App) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		emailFlag: &cobraflags.StringFlag{
			Name:  emailFlag,
			Value: "",
			Usage: "Operator email (prompted when empty)",
		},
	}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := a.credentials(flags[emailFlag].GetString())
			if err != nil {
				return err
			}

			if err := a.store.Login(cmd.Context(), email, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", email)
			return nil
		},
	}

	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newLogoutCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoAmICommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in operator and store restriction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}

			perms := a.store.Permissions()
			out := map[string]any{
				"usuario_id": a.store.ActorID(),
				"email":      a.store.Email(),
				"state":      a.store.State().String(),
				"loja_id":    perms.LojaID,
			}
			if perms.LojaID == nil {
				out["loja_id"] = "all"
			}
			return a.printJSON(out)
		},
	}
}
