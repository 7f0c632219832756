package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/richsynapse/synapsehub-client/internal/account"
	"github.com/richsynapse/synapsehub-client/internal/client"
)

// passwordReader prompts on a terminal and otherwise reads lines from stdin.
type passwordReader struct {
	cmd   *cobra.Command
	lines *bufio.Reader
}

func newPasswordReader(cmd *cobra.Command) *passwordReader {
	return &passwordReader{cmd: cmd, lines: bufio.NewReader(cmd.InOrStdin())}
}

func (p *passwordReader) read(prompt string) (string, error) {
	if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.cmd.ErrOrStderr())
		return string(b), err
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(opts *globalOptions) *cobra.Command {
	var userAccount string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := newPasswordReader(cmd).read("Password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				sess, err := a.account.Login(cmd.Context(), userAccount, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (id %d)\n", sess.User.Username, sess.User.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userAccount, "account", "u", "", "account name")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newRegisterCommand(opts *globalOptions) *cobra.Command {
	var userAccount string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pr := newPasswordReader(cmd)
			password, err := pr.read("Password: ")
			if err != nil {
				return err
			}
			check, err := pr.read("Repeat password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				id, err := a.account.Register(cmd.Context(), client.RegisterRequest{
					UserAccount:   userAccount,
					UserPassword:  password,
					CheckPassword: check,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d); run `synapse login -u %s` next\n", userAccount, id, userAccount)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userAccount, "account", "u", "", "account name")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newLogoutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := a.account.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func newWhoamiCommand(opts *globalOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sess, err := a.account.Whoami(cmd.Context(), refresh)
				if errors.Is(err, account.ErrNotLoggedIn) {
					fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", sess.User.Username, sess.User.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask the backend instead of the local cache")
	return cmd
}
