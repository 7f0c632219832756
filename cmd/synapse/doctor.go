package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/richsynapse/synapsehub-client/internal/bootstrap"
	"github.com/richsynapse/synapsehub-client/internal/health"
)

func newDoctorCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the credential store and backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				report := health.New(health.Config{
					CredentialDB: a.db,
					BaseURL:      a.cfg.BaseURL,
					HTTPTimeout:  a.cfg.RequestTimeout,
				}).Check(cmd.Context())

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(report); err != nil {
						return err
					}
				} else {
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "COMPONENT\tSTATUS\tLATENCY\tDETAIL\n")
					for _, c := range report.Components {
						detail := c.Message
						if c.Error != "" {
							detail += ": " + c.Error
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Status, c.Latency.Round(time.Millisecond), detail)
					}
					_ = tw.Flush()
					fmt.Fprintf(out, "overall: %s\n", report.Status)
				}
				if report.Status == health.StatusUnhealthy {
					return fmt.Errorf("%s is unhealthy", a.cfg.BaseURL)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newInitCommand(global *globalOptions) *cobra.Command {
	var opts bootstrap.InitOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write config/setting.ini and config/<env>/client.ini",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.BaseURL = global.baseURL
			opts.ParamEncoding = global.encoding
			if err := bootstrap.Init(opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration written")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Root, "root", ".", "directory to write config/ into")
	f.StringVar(&opts.Environment, "env", "dev", "environment name")
	f.StringVar(&opts.APIOrigin, "origin", "", "production API origin")
	f.StringVar(&opts.CredentialStore, "store", "", "credential store (sqlite or memory)")
	f.StringVar(&opts.CredentialPath, "store-path", "", "sqlite credential file")
	f.BoolVar(&opts.Force, "force", false, "overwrite existing files")
	return cmd
}
