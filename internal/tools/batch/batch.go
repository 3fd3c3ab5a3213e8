package batch

import (
	"context"
	"fmt"

	"github.com/calm-cli/calm/internal/tools/executor"
)

// Call is one tool request emitted by the model.
type Call struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// Result pairs a call with its outcome.
type Result struct {
	Call   Call
	Result executor.Result
}

// BatchResult represents the aggregated results of a batch
type BatchResult struct {
	Total      int
	Successful int
	Failed     int
	Results    []Result
}

func (br *BatchResult) add(r Result) {
	br.Results = append(br.Results, r)
	br.Total++
	if r.Result.OK {
		br.Successful++
	} else {
		br.Failed++
	}
}

// Process executes calls one at a time, in order. Recoverable failures become
// failed results and processing continues. A fatal failure or a cancelled
// context stops the batch; the results gathered so far are returned with the
// error.
func Process(ctx context.Context, ex executor.ToolExecutor, calls []Call) (BatchResult, error) {
	br := BatchResult{Results: make([]Result, 0, len(calls))}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return br, err
		}

		res := executor.ExecuteJSON(ctx, ex, call.Name, call.Arguments)
		br.add(Result{Call: call, Result: res})

		if !res.Recoverable() {
			if err := ctx.Err(); err != nil {
				return br, err
			}
			return br, fmt.Errorf("tool %s failed: %w", call.Name, res.Err)
		}
	}

	return br, nil
}
