package llm

import (
	"context"
	"iter"

	"github.com/mark3labs/mcp-go/mcp"
)

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool request emitted by the model. Arguments is the raw
// JSON text exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of the conversation context.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that requested tools
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the call it answers
	ToolCallID string
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant echoes a model turn back into the context.
func Assistant(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult answers the tool call with the given id.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Request is one completion request.
type Request struct {
	// Model overrides the engine's default model when set
	Model    string
	Messages []Message

	// Tools declared to the model; nil disables tool calling
	Tools []mcp.Tool
}

// Turn is the model's reply, decided once per response. It is either Text or
// ToolRequests.
type Turn interface {
	isTurn()
}

// Text is a final textual answer.
type Text struct {
	Text string
}

// ToolRequests asks for one or more tool executions, in emission order.
type ToolRequests struct {
	Content string
	Calls   []ToolCall
}

func (Text) isTurn()         {}
func (ToolRequests) isTurn() {}

// Chunk is one streamed delta. The last chunk of a successful stream carries
// the accumulated Turn.
type Chunk struct {
	Content string

	// ToolCall is true when the delta carried part of a tool request
	ToolCall bool

	Turn Turn
}

// Engine performs completions.
type Engine interface {
	Complete(ctx context.Context, req Request) (Turn, error)
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}
