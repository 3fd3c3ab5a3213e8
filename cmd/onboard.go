package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/google"
)

// runOnboard is the root command: it imports credentials and authorizes when
// needed, offers to store an API key, and is silent once everything is set.
func runOnboard(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	if err := ensureOnboarded(cmd, rt, p); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !google.HasToken(rt.cfg) {
		provider := google.NewFileTokenProvider(rt.cfg,
			google.WithProviderMetrics(rt.metrics()),
			google.WithProviderLogger(rt.logger),
			google.WithInteractive(cmd.ErrOrStderr(), google.OpenBrowser))
		if _, err := provider.GetToken(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), colorize("❌ OAuth authorization failed: "+err.Error(), ansiRed))
			return &exitError{code: 1}
		}
		fmt.Fprintln(out, colorize("✓ OAuth authorization completed", ansiGreen))
	}

	return offerAPIKey(cmd, rt.cfg, p)
}

// ensureOnboarded imports the OAuth client interactively when no
// credentials.json exists yet.
func ensureOnboarded(cmd *cobra.Command, rt *runtime, p *prompter) error {
	if google.HasClient(rt.cfg) {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize("A Google OAuth client (Desktop) credentials.json is required.", ansiCyan))
	choice, err := p.ask("Provide it by: 1) pasting JSON  2) file path", "2")
	if err != nil {
		return err
	}

	if choice == "1" {
		fmt.Fprintln(out, "Paste the full JSON, then a line containing only END:")
		raw, rerr := p.readUntilEnd()
		if rerr == nil {
			err = google.ImportClientJSON(rt.cfg, []byte(raw))
		} else {
			err = rerr
		}
	} else {
		path, perr := p.ask("Path to credentials.json", "")
		if perr == nil {
			err = google.ImportClientFile(rt.cfg, path)
		} else {
			err = perr
		}
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), colorize("❌ Import failed: "+err.Error(), ansiRed))
		return &exitError{code: 1}
	}

	fmt.Fprintln(out, colorize("✓ OAuth client saved to "+rt.cfg.CredentialsPath(), ansiGreen))
	return nil
}

// offerAPIKey asks once for an optional model API key. Calendar-only users
// can skip it.
func offerAPIKey(cmd *cobra.Command, cfg *config.Config, p *prompter) error {
	if _, err := cfg.ResolveAPIKey(""); err == nil {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize("(Optional) Set a Gemini API key to enable calm agent and calm chat", ansiCyan))
	ok, err := p.confirm("Set it now?", false)
	if err != nil || !ok {
		return err
	}
	return promptAPIKey(cmd, p, cfg)
}

func promptAPIKey(cmd *cobra.Command, p *prompter, cfg *config.Config) error {
	key, err := p.ask("Gemini API key (leave blank to skip)", "")
	if err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Skipped setting the Gemini API key.")
		return nil
	}
	if err := cfg.SaveAPIKey(key); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), colorize("❌ Failed to save: "+err.Error(), ansiRed))
		return &exitError{code: 1}
	}
	fmt.Fprintln(cmd.OutOrStdout(), colorize("✓ Gemini API key saved to "+cfg.APIKeyPath(), ansiGreen))
	return nil
}
