package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/llm"
)

type chatOptions struct {
	model   string
	apiKey  string
	jsonOut bool
	stream  bool
}

func newChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "One-time chat: ask the model a question and get an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "Model to use (default: chat.model)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (fallback: $GEMINI_API_KEY or <config dir>/gemini.key)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output JSON with model and answer")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Stream the answer as it arrives")
	cmd.Flags().Bool("no-stream", false, "Print the answer at once")
	return cmd
}

func runChat(cmd *cobra.Command, question string, opts chatOptions) error {
	if noStream, _ := cmd.Flags().GetBool("no-stream"); noStream || opts.jsonOut {
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
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", colorize(fmt.Sprintf(
				"Gemini API key not found. Provide one via:\n  1) --api-key 'YOUR_KEY'\n  2) env %s\n  3) %s (first line)",
				config.APIKeyEnv, rt.cfg.APIKeyPath()), ansiRed))
			return &exitError{code: 1}
		}
		return err
	}

	model := rt.cfg.Chat.Model
	if opts.model != "" {
		model = opts.model
	}
	engine, err := engineFactory(rt, key, model)
	if err != nil {
		return err
	}

	req := llm.Request{Model: model, Messages: []llm.Message{llm.User(question)}}
	out := cmd.OutOrStdout()

	if opts.stream {
		for chunk, err := range engine.Stream(cmd.Context(), req) {
			if err != nil {
				fmt.Fprintln(out)
				return chatFailed(cmd, err)
			}
			fmt.Fprint(out, chunk.Content)
		}
		fmt.Fprintln(out)
		return nil
	}

	turn, err := engine.Complete(cmd.Context(), req)
	if err != nil {
		return chatFailed(cmd, err)
	}
	var answer string
	if t, ok := turn.(llm.Text); ok {
		answer = t.Text
	}

	if opts.jsonOut {
		return printJSON(out, map[string]string{"model": model, "answer": answer})
	}
	fmt.Fprintln(out, answer)
	return nil
}

func chatFailed(cmd *cobra.Command, err error) error {
	if cmd.Context().Err() != nil {
		return cmd.Context().Err()
	}
	fmt.Fprintln(cmd.ErrOrStderr(), colorize("Gemini request failed: "+err.Error(), ansiRed))
	return &exitError{code: 1}
}
