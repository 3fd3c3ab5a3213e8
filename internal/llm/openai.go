package llm

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/tools/catalog"
)

// Config configures the OpenAI-compatible engine.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI is an Engine backed by an OpenAI-compatible chat completions API.
type OpenAI struct {
	client  openai.Client
	model   string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Option customizes the OpenAI engine.
type Option func(*OpenAI)

// WithMetrics records completion counts and latency.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *OpenAI) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *OpenAI) { o.logger = l }
}

// NewOpenAI creates the engine. The SDK's automatic retries are disabled;
// a failed request surfaces as an upstream failure.
func NewOpenAI(cfg Config, opts ...Option) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.New(apperr.KindAuth, "llm", "no API key configured")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, apperr.Invalid("llm", "model is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}

	o := &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  cfg.Model,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger.Debug("llm client ready", logging.Model(o.model),
		slog.String("base_url", cfg.BaseURL), slog.String("api_key", logging.SanitizeToken(cfg.APIKey)))
	return o, nil
}

// Model returns the default model name.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete performs one non-streaming completion.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Turn, error) {
	model := o.modelFor(req)
	ctx, span := instrumentation.StartCompletionSpan(ctx, instrumentation.ModeComplete, model)
	defer span.End()
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, o.params(model, req))
	if err != nil {
		err = upstream(ctx, "llm.complete", err)
		o.observe(ctx, instrumentation.ModeComplete, model, start, err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	o.observe(ctx, instrumentation.ModeComplete, model, start, nil)
	instrumentation.SetSpanSuccess(span)
	return decide(resp.Choices), nil
}

// Stream performs one streaming completion, yielding content deltas in
// arrival order. The final chunk carries the accumulated Turn.
func (o *OpenAI) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		model := o.modelFor(req)
		ctx, span := instrumentation.StartCompletionSpan(ctx, instrumentation.ModeStream, model)
		defer span.End()
		start := time.Now()

		stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(model, req))
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			for _, choice := range chunk.Choices {
				if choice.Index != 0 {
					continue
				}
				delta := Chunk{
					Content:  choice.Delta.Content,
					ToolCall: len(choice.Delta.ToolCalls) > 0,
				}
				if delta.Content == "" && !delta.ToolCall {
					continue
				}
				if !yield(delta, nil) {
					o.observe(ctx, instrumentation.ModeStream, model, start, context.Canceled)
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			err = upstream(ctx, "llm.stream", err)
			o.observe(ctx, instrumentation.ModeStream, model, start, err)
			instrumentation.SetSpanError(span, err)
			yield(Chunk{}, err)
			return
		}

		o.observe(ctx, instrumentation.ModeStream, model, start, nil)
		instrumentation.SetSpanSuccess(span)
		yield(Chunk{Turn: decide(acc.Choices)}, nil)
	}
}

func (o *OpenAI) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}

func (o *OpenAI) observe(ctx context.Context, mode, model string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		o.logger.Debug("completion failed", slog.String("mode", mode), logging.Model(model), logging.Err(err))
	}
	o.metrics.RecordCompletion(ctx, mode, model, status, time.Since(start))
}

func (o *OpenAI) params(model string, req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	return params
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, call := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func toOpenAITools(tools []mcp.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(catalog.FunctionParameters(tool)),
			},
		})
	}
	return out
}

// decide picks the first choice that requests tools; otherwise the text of
// the first choice.
func decide(choices []openai.ChatCompletionChoice) Turn {
	for _, choice := range choices {
		if len(choice.Message.ToolCalls) == 0 {
			continue
		}
		calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return ToolRequests{Content: choice.Message.Content, Calls: calls}
	}
	if len(choices) == 0 {
		return Text{}
	}
	return Text{Text: choices[0].Message.Content}
}

// upstream classifies a transport error. Cancellation is passed through
// unchanged so callers can tell an interrupt from a failure.
func upstream(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return apperr.Wrap(apperr.KindAuth, op, err)
		}
	}
	return apperr.Wrap(apperr.KindUpstream, op, err)
}

var _ Engine = (*OpenAI)(nil)
