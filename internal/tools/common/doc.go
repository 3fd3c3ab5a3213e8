// Package common provides shared plumbing for the calendar tool transports.
// It wraps a tool executor with metrics, tracing and audit logging so the
// agent and the MCP server report tool calls the same way.
package common
