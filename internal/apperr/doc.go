// Package apperr defines the error taxonomy shared by the calendar access
// layer, the tool executor and the agent loop.
//
// Failures are classified once, where they originate, and matched downstream
// with errors.Is against the package sentinels:
//
//	if errors.Is(err, apperr.NotFound) {
//	    ...
//	}
//
// NotFound, InvalidArgument and UnknownTool are recoverable: the agent turns
// them into failed tool results so the model can adapt. Auth and Upstream
// errors abort the invocation.
package apperr
