package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calm application
var rootCmd = newRootCmd()

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// exitError ends the process with code once the command has already printed
// its own message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute is the main entry point for the CLI application. SIGINT and
// SIGTERM cancel the command's context.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calm version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	code := exitCode(ctx, err, os.Stderr)
	stop()
	os.Exit(code)
}

// exitCode maps the command result to the process status: 0 on success, 130
// when interrupted, 1 otherwise.
func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, colorize("\n(Interrupted)", ansiGray))
		return 130
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(stderr, colorize("Error: "+err.Error(), ansiRed))
	return 1
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calm",
		Short: "A simple CLI tool to interact with Google Calendar",
		Long: `calm lists and adds Google Calendar events from the terminal and
understands natural-language requests through a tool-calling agent.

Running calm without a subcommand walks through first-time setup.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnboard,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (default: <config dir>/config.yaml)")
	flags.String("timezone", "", "IANA time zone (default: Asia/Taipei)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")

	cmd.AddCommand(newEventsCmds()...)
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newConfigureCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newGenerateDocsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calm version %s\n", version)
		},
	}
}
