package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/llm"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/tools/batch"
	"github.com/calm-cli/calm/internal/tools/catalog"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// ErrNoFinalAnswer reports that the step budget ran out while the model was
// still requesting tools.
var ErrNoFinalAnswer = errors.New("no final answer after tool steps")

// Outcome is the result of a non-streaming run.
type Outcome struct {
	Text string

	// Steps is the number of model round-trips made
	Steps int

	// ToolCalls counts executed tool calls, failed ones included
	ToolCalls int

	// Aborted is ErrNoFinalAnswer when the step budget was exhausted
	Aborted error
}

// Agent turns one utterance into calendar operations and a final answer.
// An Agent holds no per-run state and may be reused.
type Agent struct {
	engine          llm.Engine
	tools           executor.ToolExecutor
	loc             *time.Location
	model           string
	maxSteps        int
	streamDecisions bool
	now             func() time.Time
	metrics         *instrumentation.Metrics
	logger          *slog.Logger
}

// Option customizes an Agent.
type Option func(*Agent)

// WithModel overrides the engine's default model.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

// WithMaxSteps bounds the number of model round-trips.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithStreamDecisions streams every decision turn instead of re-issuing a
// streaming request for the final answer.
func WithStreamDecisions(enabled bool) Option {
	return func(a *Agent) { a.streamDecisions = enabled }
}

// WithClock sets the time source for CURRENT_TIME_LOCAL.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithMetrics records run outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates an Agent. cfg supplies the default zone and the agent settings.
func New(engine llm.Engine, tools executor.ToolExecutor, cfg *config.Config, opts ...Option) *Agent {
	a := &Agent{
		engine:          engine,
		tools:           tools,
		loc:             cfg.Location,
		model:           cfg.Agent.Model,
		maxSteps:        cfg.Agent.MaxSteps,
		streamDecisions: cfg.Agent.StreamDecisions,
		now:             time.Now,
		logger:          logging.Discard(),
	}
	if a.maxSteps <= 0 {
		a.maxSteps = config.DefaultMaxSteps
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drives the loop to a final answer without streaming.
func (a *Agent) Run(ctx context.Context, utterance string) (Outcome, error) {
	ctx, span := instrumentation.StartSpan(ctx, "agent.run",
		attribute.String(instrumentation.SpanAttrMode, instrumentation.ModeComplete))
	defer span.End()

	r := a.newRun(utterance)
	for r.step < a.maxSteps {
		turn, err := r.complete(ctx)
		if err != nil {
			return r.abort(ctx, span, err)
		}

		switch t := turn.(type) {
		case llm.ToolRequests:
			if err := r.execute(ctx, t); err != nil {
				return r.abort(ctx, span, err)
			}
		case llm.Text:
			text := t.Text
			if strings.TrimSpace(text) == "" {
				text = NoTextResponse
			}
			r.finish(ctx, span, instrumentation.OutcomeFinal)
			return Outcome{Text: text, Steps: r.step, ToolCalls: r.toolCalls}, nil
		}
	}

	r.finish(ctx, span, instrumentation.OutcomeExhausted)
	return Outcome{Text: NoFinalAnswer, Steps: r.step, ToolCalls: r.toolCalls, Aborted: ErrNoFinalAnswer}, nil
}

// Stream drives the loop and yields the final answer in chunks. A fatal
// error is yielded once and ends the sequence.
func (a *Agent) Stream(ctx context.Context, utterance string) iter.Seq2[string, error] {
	if a.streamDecisions {
		return a.streamEveryTurn(ctx, utterance)
	}
	return a.streamFinalTurn(ctx, utterance)
}

// streamFinalTurn decides each turn without streaming. Once the model answers
// with text, that answer is discarded and one streaming request is issued
// over the same context.
func (a *Agent) streamFinalTurn(ctx context.Context, utterance string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := instrumentation.StartSpan(ctx, "agent.run",
			attribute.String(instrumentation.SpanAttrMode, instrumentation.ModeStream))
		defer span.End()

		r := a.newRun(utterance)
		for {
			if r.step == a.maxSteps {
				r.finish(ctx, span, instrumentation.OutcomeExhausted)
				yield(NoFinalAnswer, nil)
				return
			}

			turn, err := r.complete(ctx)
			if err != nil {
				_, err = r.abort(ctx, span, err)
				yield("", err)
				return
			}

			requests, ok := turn.(llm.ToolRequests)
			if !ok {
				break
			}
			if err := r.execute(ctx, requests); err != nil {
				_, err = r.abort(ctx, span, err)
				yield("", err)
				return
			}
		}

		r.setState(StateFinal)
		emitted := false
		for chunk, err := range a.engine.Stream(ctx, r.request()) {
			if err != nil {
				_, err = r.abort(ctx, span, err)
				yield("", err)
				return
			}
			if chunk.Turn != nil || chunk.Content == "" {
				continue
			}
			emitted = true
			if !yield(chunk.Content, nil) {
				return
			}
		}
		if !emitted {
			yield(NoTextResponse, nil)
		}
		r.finish(ctx, span, instrumentation.OutcomeFinal)
	}
}

// streamEveryTurn streams each decision turn. Content is held until the
// turn is decided: a tool-call delta drops it and the turn's tools run, a
// final text turn flushes it.
func (a *Agent) streamEveryTurn(ctx context.Context, utterance string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := instrumentation.StartSpan(ctx, "agent.run",
			attribute.String(instrumentation.SpanAttrMode, instrumentation.ModeStream))
		defer span.End()

		r := a.newRun(utterance)
		for r.step < a.maxSteps {
			r.step++
			r.setState(StateAwaitingModel)

			var (
				held     []string
				toolTurn bool
				turn     llm.Turn
			)
			for chunk, err := range a.engine.Stream(ctx, r.request()) {
				if err != nil {
					_, err = r.abort(ctx, span, err)
					yield("", err)
					return
				}
				switch {
				case chunk.Turn != nil:
					turn = chunk.Turn
				case chunk.ToolCall:
					toolTurn, held = true, nil
				case !toolTurn:
					held = append(held, chunk.Content)
				}
			}

			switch t := turn.(type) {
			case llm.ToolRequests:
				if err := r.execute(ctx, t); err != nil {
					_, err = r.abort(ctx, span, err)
					yield("", err)
					return
				}
				continue
			case nil:
				err := ctx.Err()
				if err == nil && toolTurn {
					err = apperr.New(apperr.KindUpstream, "agent.stream", "stream ended after tool-call deltas without a tool request")
				}
				if err != nil {
					_, err = r.abort(ctx, span, err)
					yield("", err)
					return
				}
			}

			if !flushHeld(held, yield) {
				return
			}
			r.finish(ctx, span, instrumentation.OutcomeFinal)
			return
		}

		r.finish(ctx, span, instrumentation.OutcomeExhausted)
		yield(NoFinalAnswer, nil)
	}
}

// flushHeld yields the held chunks of a text turn. Leading blank chunks are
// joined to the first non-blank one; an all-blank turn yields NoTextResponse.
// It reports false when the consumer stopped.
func flushHeld(held []string, yield func(string, error) bool) bool {
	var lead strings.Builder
	for i, c := range held {
		lead.WriteString(c)
		if strings.TrimSpace(c) == "" {
			continue
		}
		if !yield(lead.String(), nil) {
			return false
		}
		for _, rest := range held[i+1:] {
			if rest != "" && !yield(rest, nil) {
				return false
			}
		}
		return true
	}
	return yield(NoTextResponse, nil)
}

// run is the state of one invocation: the growing context and counters.
type run struct {
	agent     *Agent
	messages  []llm.Message
	step      int
	toolCalls int
	state     State
	logger    *slog.Logger
}

func (a *Agent) newRun(utterance string) *run {
	return &run{
		agent: a,
		messages: []llm.Message{
			llm.System(SystemPrompt(a.now(), a.loc)),
			llm.User(utterance),
		},
		logger: logging.WithOperation(a.logger, "agent.run").With(logging.Model(a.model)),
	}
}

func (r *run) request() llm.Request {
	return llm.Request{
		Model:    r.agent.model,
		Messages: r.messages,
		Tools:    catalog.Tools(),
	}
}

func (r *run) setState(s State) {
	r.state = s
	r.logger.Debug("agent state", logging.State(string(s)), logging.Step(r.step))
}

// complete performs one non-streaming round-trip.
func (r *run) complete(ctx context.Context) (llm.Turn, error) {
	r.step++
	r.setState(StateAwaitingModel)
	return r.agent.engine.Complete(ctx, r.request())
}

// execute runs the requested calls in emission order and appends the
// assistant echo followed by one tool message per call.
func (r *run) execute(ctx context.Context, t llm.ToolRequests) error {
	r.setState(StateExecutingTools)

	calls := make([]batch.Call, len(t.Calls))
	echoed := make([]llm.ToolCall, len(t.Calls))
	for i, c := range t.Calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d_%d", r.step, i)
		}
		echoed[i] = c
		calls[i] = batch.Call{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}

	instrumentation.AddSpanEvent(trace.SpanFromContext(ctx), "agent.tool_step",
		instrumentation.NewSpanAttributeBuilder().WithStep(r.step).WithModel(r.agent.model).Build()...)

	br, err := batch.Process(ctx, r.agent.tools, calls)
	r.toolCalls += br.Total
	if err != nil {
		return err
	}

	r.messages = append(r.messages, llm.Assistant(t.Content, echoed))
	for _, res := range br.Results {
		content, mErr := res.Result.MarshalJSON()
		if mErr != nil {
			return fmt.Errorf("failed to encode %s result: %w", res.Call.Name, mErr)
		}
		r.messages = append(r.messages, llm.ToolResult(res.Call.ID, string(content)))
		if !res.Result.OK {
			r.logger.Info("tool call failed", logging.Tool(res.Call.Name), logging.Step(r.step), logging.Err(res.Result.Err))
		}
	}
	return nil
}

func (r *run) finish(ctx context.Context, span trace.Span, outcome string) {
	if outcome == instrumentation.OutcomeFinal {
		r.setState(StateFinal)
	} else {
		r.setState(StateAborted)
	}
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrStep, r.step))
	instrumentation.SetSpanSuccess(span)
	r.agent.metrics.RecordAgentRun(ctx, outcome)
}

func (r *run) abort(ctx context.Context, span trace.Span, err error) (Outcome, error) {
	r.setState(StateAborted)
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrStep, r.step))
	instrumentation.SetSpanError(span, err)
	r.agent.metrics.RecordAgentRun(ctx, instrumentation.OutcomeAborted)
	r.logger.Warn("agent run aborted", logging.Step(r.step), logging.Err(err))
	return Outcome{Steps: r.step, ToolCalls: r.toolCalls}, err
}
