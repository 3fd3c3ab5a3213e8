package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/agent"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/tools/common"
	"github.com/calm-cli/calm/internal/tools/executor"
)

type agentOptions struct {
	model           string
	apiKey          string
	jsonOut         bool
	stream          bool
	streamDecisions bool
	maxSteps        int
}

func newAgentCmd() *cobra.Command {
	var opts agentOptions

	cmd := &cobra.Command{
		Use:   "agent <text>",
		Short: "Understand natural language and read or change events via tools",
		Long: `Send an instruction in Chinese or English to the model. The model may list,
create, update or delete events through calendar tools before answering.`,
		Example: `  calm agent "明天下午2點加會議"
  calm agent "這週的行程" --no-stream
  calm agent "delete the dentist appointment" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "Model to use, e.g. gemini-2.5-flash-lite, gemini-2.5-flash, gemini-2.5-pro (default: agent.model)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (fallback: $GEMINI_API_KEY or <config dir>/gemini.key)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the final answer as JSON (disables streaming)")
	cmd.Flags().BoolVar(&opts.stream, "stream", true, "Stream the final answer")
	cmd.Flags().BoolVar(&opts.streamDecisions, "stream-decisions", false, "Stream every model turn instead of re-requesting the final answer (default: agent.stream_decisions)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Maximum model round-trips (default: agent.max_steps)")
	cmd.Flags().Bool("no-stream", false, "Print the final answer at once")
	return cmd
}

func runAgent(cmd *cobra.Command, text string, opts agentOptions) error {
	if noStream, _ := cmd.Flags().GetBool("no-stream"); noStream {
		opts.stream = false
	}
	if opts.jsonOut {
		opts.stream = false
	}

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	key, err := rt.cfg.ResolveAPIKey(opts.apiKey)
	if err != nil {
		if errors.Is(err, config.ErrNoAPIKey) {
			fmt.Fprintln(cmd.ErrOrStderr(), colorize("Missing Gemini API key. Use --api-key, GEMINI_API_KEY, or "+rt.cfg.APIKeyPath(), ansiRed))
			return &exitError{code: 1}
		}
		return err
	}

	model := rt.cfg.Agent.Model
	if opts.model != "" {
		model = opts.model
	}
	engine, err := engineFactory(rt, key, model)
	if err != nil {
		return err
	}

	if err := ensureOnboarded(cmd, rt, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())); err != nil {
		return err
	}
	store, err := storeFactory(cmd.Context(), cmd, rt, true)
	if err != nil {
		return err
	}

	tools := common.NewInstrumentedExecutor(
		executor.New(store, rt.cfg, executor.WithLogger(rt.logger)),
		rt.metrics(), rt.audit, common.OriginAgent,
	)

	agentOpts := []agent.Option{
		agent.WithModel(model),
		agent.WithMetrics(rt.metrics()),
		agent.WithLogger(rt.logger),
		agent.WithMaxSteps(opts.maxSteps),
	}
	if cmd.Flags().Changed("stream-decisions") {
		agentOpts = append(agentOpts, agent.WithStreamDecisions(opts.streamDecisions))
	}
	a := agent.New(engine, tools, rt.cfg, agentOpts...)

	out := cmd.OutOrStdout()
	if opts.stream {
		for chunk, err := range a.Stream(cmd.Context(), text) {
			if err != nil {
				fmt.Fprintln(out)
				return agentFailed(cmd, err)
			}
			fmt.Fprint(out, chunk)
		}
		fmt.Fprintln(out)
		return nil
	}

	outcome, err := a.Run(cmd.Context(), text)
	if err != nil {
		return agentFailed(cmd, err)
	}
	if opts.jsonOut {
		return printJSON(out, map[string]string{"answer": outcome.Text})
	}
	fmt.Fprintln(out, outcome.Text)
	return nil
}

// agentFailed reports a fatal run error. Interrupts are passed through so
// the process exits with 130.
func agentFailed(cmd *cobra.Command, err error) error {
	if cmd.Context().Err() != nil {
		return cmd.Context().Err()
	}
	fmt.Fprintln(cmd.ErrOrStderr(), colorize("Agent failed: "+err.Error(), ansiRed))
	return &exitError{code: 1}
}
