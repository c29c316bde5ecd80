package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/buker/chatlib/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Long: `Sign in to the backend. The token is stored in the local database and
reused by later commands until 'chatlib logout' or the backend rejects it.

Values not given as flags are prompted for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		username, err := p.value(cmd, "username", "Username: ", false)
		if err != nil {
			return err
		}
		password, err := p.value(cmd, "password", "Password: ", true)
		if err != nil {
			return err
		}

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Login(cmd.Context(), username, password); err != nil {
			return err
		}
		user, _ := a.session.User()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayName(user))
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		username, err := p.value(cmd, "username", "Username: ", false)
		if err != nil {
			return err
		}
		password, err := p.value(cmd, "password", "Password: ", true)
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		req := api.RegisterRequest{Username: username, Password: password, Email: email}
		if err := a.session.SignUp(cmd.Context(), req); err != nil {
			return err
		}
		user, _ := a.session.User()
		fmt.Fprintf(cmd.OutOrStdout(), "Account created, signed in as %s\n", displayName(user))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.IsAuthenticated() {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		if err := a.session.Logout(cmd.Context()); err != nil {
			return errors.Wrap(err, "failed to clear stored session")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show and change the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, ok := a.session.User()
		if !ok {
			return errLoginRequired
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:       %s\n", user.ID)
		fmt.Fprintf(w, "Username: %s\n", user.Username)
		if user.Email != "" {
			fmt.Fprintf(w, "Email:    %s\n", user.Email)
		}
		return nil
	},
}

var accountUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change username or email",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		if username == "" && email == "" {
			return errors.New("nothing to update: pass --username or --email")
		}

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := updateProfile(cmd.Context(), a, api.UserUpdateRequest{Username: username, Email: email})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", displayName(user))
		return nil
	},
}

var accountPasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		current, err := p.value(cmd, "old", "Current password: ", true)
		if err != nil {
			return err
		}
		next, err := p.value(cmd, "new", "New password: ", true)
		if err != nil {
			return err
		}
		confirm, err := p.value(cmd, "confirm", "Repeat new password: ", true)
		if err != nil {
			return err
		}

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.IsAuthenticated() {
			return errLoginRequired
		}
		req := api.ChangePasswordRequest{OldPassword: current, NewPassword: next, ConfirmPassword: confirm}
		if err := a.client.ChangePassword(cmd.Context(), a.session.UserID(), req); err != nil {
			return errors.Wrap(err, "failed to change password")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the account and sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to delete the account without --yes")
		}

		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := deleteAccount(cmd.Context(), a); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Account deleted.")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringP("username", "u", "", "Account name")
		cmd.Flags().StringP("password", "p", "", "Password (prompted for when omitted)")
	}
	registerCmd.Flags().String("email", "", "Email address")

	accountUpdateCmd.Flags().StringP("username", "u", "", "New account name")
	accountUpdateCmd.Flags().String("email", "", "New email address")
	accountPasswordCmd.Flags().String("old", "", "Current password (prompted for when omitted)")
	accountPasswordCmd.Flags().String("new", "", "New password (prompted for when omitted)")
	accountPasswordCmd.Flags().String("confirm", "", "New password again (prompted for when omitted)")
	accountDeleteCmd.Flags().Bool("yes", false, "Confirm the deletion")

	accountCmd.AddCommand(accountUpdateCmd)
	accountCmd.AddCommand(accountPasswordCmd)
	accountCmd.AddCommand(accountDeleteCmd)
}

// updateProfile sends the change and stores the returned user in the session.
func updateProfile(ctx context.Context, a *app, req api.UserUpdateRequest) (api.User, error) {
	if !a.session.IsAuthenticated() {
		return api.User{}, errLoginRequired
	}
	user, err := a.client.UpdateUser(ctx, a.session.UserID(), req)
	if err != nil {
		return api.User{}, errors.Wrap(err, "failed to update account")
	}
	if err := a.session.SetUser(ctx, *user); err != nil {
		return *user, err
	}
	return *user, nil
}

// deleteAccount removes the account on the backend, then signs out locally.
func deleteAccount(ctx context.Context, a *app) error {
	if !a.session.IsAuthenticated() {
		return errLoginRequired
	}
	if err := a.client.DeleteUser(ctx, a.session.UserID()); err != nil {
		return errors.Wrap(err, "failed to delete account")
	}
	return a.session.Logout(ctx)
}

func displayName(u api.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// prompter reads missing flag values from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

// value returns flag's value, prompting for it when the flag is empty.
// Secrets are read without echo when stdin is a terminal.
func (p *prompter) value(cmd *cobra.Command, flag, label string, secret bool) (string, error) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v, nil
	}
	fmt.Fprint(p.out, label)

	if secret && cmd.InOrStdin() == os.Stdin && isTerminal(os.Stdin) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", flag)
		}
		return string(b), nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrapf(err, "failed to read %s", flag)
	}
	v := strings.TrimRight(line, "\r\n")
	if v == "" {
		return "", errors.Errorf("%s is required", flag)
	}
	return v, nil
}
