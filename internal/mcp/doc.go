// Package mcp synthesizes Model Context Protocol servers from compiled
// widget metadata and manages one protocol session per streaming
// client connection.
//
// The package has two halves:
//
//   - NewServer converts a compiled widget list into an *mcp.Server:
//     one tool, one resource and one resource template per widget, with
//     argument validation in front of every widget handler.
//   - SessionManager owns the table of live sessions. Each GET on the
//     streaming endpoint creates a fresh server instance bound to a new
//     SSE transport; POSTs deliver messages to the session named by
//     their sessionId query parameter.
//
// Compiled metadata is read-only and shared across sessions; the
// session table is the only mutable shared state and is confined to
// the SessionManager.
package mcp
