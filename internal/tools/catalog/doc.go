// Package catalog declares the calendar operations exposed to the language
// model and to MCP clients. The same declarations feed both transports.
package catalog
