// Package server holds the state shared by the MCP server started with
// `calm serve`.
//
// ServerContext creates the calendar client lazily on the first tool call and
// shares one instrumented tool executor across requests. MetricsServer
// exposes Prometheus metrics and health probes on a separate listener when
// `--metrics-addr` is given.
package server
