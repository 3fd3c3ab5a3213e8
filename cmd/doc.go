// Package cmd implements the command-line interface for calm.
//
// This package provides the following commands:
//   - today, tomorrow, week, date: List events for a day or the current week
//   - add: Create an event
//   - agent: Run a natural-language request through the tool-calling agent
//   - chat: Ask the model a one-off question without tools
//   - configure: Import OAuth credentials, reset tokens, store the API key
//   - serve: Expose the calendar tools over MCP stdio
//   - generate-docs: Generate markdown documentation for the MCP tools
//   - version: Display version information
//
// Running calm without a subcommand starts first-time setup.
package cmd
