// Package resources provides MCP resources for calendar context. Resources
// are read-only data sources that MCP clients can fetch, such as the local
// time an assistant needs to resolve "tomorrow" and the events of today.
package resources
