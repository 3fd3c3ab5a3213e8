package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/google"
)

func newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure OAuth credentials and the model API key",
	}
	cmd.AddCommand(newConfigureOAuthCmd())
	cmd.AddCommand(newConfigureResetCmd())
	cmd.AddCommand(newConfigureAPIKeyCmd())
	return cmd
}

func newConfigureOAuthCmd() *cobra.Command {
	var (
		path  string
		paste bool
	)

	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Import an OAuth client (credentials.json) and authorize immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stderr := cmd.ErrOrStderr()
			fail := func(err error) error {
				if cmd.Context().Err() != nil {
					return cmd.Context().Err()
				}
				fmt.Fprintln(stderr, colorize("❌ Error: "+err.Error(), ansiRed))
				return &exitError{code: 1}
			}

			switch {
			case paste:
				fmt.Fprintln(cmd.OutOrStdout(), "Paste the full JSON, then a line containing only END:")
				raw, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).readUntilEnd()
				if err != nil {
					return fail(err)
				}
				if err := google.ImportClientJSON(rt.cfg, []byte(raw)); err != nil {
					return fail(err)
				}
			case path != "":
				if err := google.ImportClientFile(rt.cfg, path); err != nil {
					return fail(err)
				}
			case !google.HasClient(rt.cfg):
				fmt.Fprintln(stderr, colorize("No --path / --paste provided, and no existing credentials.json found.", ansiRed))
				return &exitError{code: 1}
			}

			// A new client invalidates any token issued to the previous one.
			if path != "" || paste {
				if _, err := google.ResetTokens(rt.cfg, false); err != nil {
					return fail(err)
				}
			}

			provider := google.NewFileTokenProvider(rt.cfg,
				google.WithProviderMetrics(rt.metrics()),
				google.WithProviderLogger(rt.logger),
				google.WithInteractive(stderr, google.OpenBrowser))
			if _, err := provider.GetToken(cmd.Context()); err != nil {
				return fail(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), colorize("✓ OAuth configuration completed", ansiGreen))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Path to credentials.json")
	cmd.Flags().BoolVar(&paste, "paste", false, "Paste the JSON in the terminal (end with a line containing only END)")
	cmd.MarkFlagsMutuallyExclusive("path", "paste")
	return cmd
}

func newConfigureResetCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the token; with --all also delete credentials.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			hadClient := google.HasClient(rt.cfg)
			if _, err := google.ResetTokens(rt.cfg, all); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all && hadClient {
				fmt.Fprintln(out, colorize("✓ credentials.json deleted", ansiGreen))
			}
			fmt.Fprintln(out, colorize("✓ token deleted (will reauthorize next time)", ansiGreen))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete the token and credentials (full reset)")
	return cmd
}

func newConfigureAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "gemini-key [key]",
		Aliases: []string{"api-key"},
		Short:   "Store the Gemini API key in the config directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(args) == 1 {
				if err := rt.cfg.SaveAPIKey(args[0]); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), colorize("❌ Failed to save: "+err.Error(), ansiRed))
					return &exitError{code: 1}
				}
				fmt.Fprintln(cmd.OutOrStdout(), colorize("✓ Gemini API key saved to "+rt.cfg.APIKeyPath(), ansiGreen))
				return nil
			}
			return promptAPIKey(cmd, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), rt.cfg)
		},
	}
}
