// Package calendar_tools exposes the calendar tool catalog over MCP.
//
// Each tool is served by the same executor the natural-language agent uses,
// so an MCP client sees the identical JSON envelopes: the success payload
// of the operation, or {"ok":false,"error":...,"kind":...} with isError set.
package calendar_tools
