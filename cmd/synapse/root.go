package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richsynapse/synapsehub-client/internal/version"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "synapse",
		Short: "SynapseHub streaming chat client",
		Long: `synapse talks to a SynapseHub backend: it streams interview chats and
autonomous agent runs to the terminal and manages the login session whose
cookie accompanies every stream.`,
		Version:       version.FullInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", ".", "directory containing config/setting.ini")
	flags.StringVar(&opts.baseURL, "base-url", "", "override the backend base URL")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	flags.StringVar(&opts.encoding, "encoding", "", "override the parameter encoding (query or form)")

	rootCmd.AddCommand(
		newChatCommand(opts),
		newAgentCommand(opts),
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newDoctorCommand(opts),
		newInitCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.FullInfo())
		},
	}
}

// withApp builds the services for one command and releases them afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(*app) error) error {
	a, err := newApp(*opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
