package agent

// State of a run, used for logging.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateFinal          State = "final"
	StateAborted        State = "aborted"
)

// Fixed answers
const (
	NoTextResponse = "(No text response)"
	NoFinalAnswer  = "(No final answer after tool steps)"
)
