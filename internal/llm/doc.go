// Package llm is the completion engine used by the agent and the chat
// command. It speaks the OpenAI-compatible chat completions protocol, which
// Gemini also serves, and reduces each response to a Turn: either plain text
// or a batch of tool requests.
package llm
