// Package widget defines the declarative widget surface of widgetd and
// compiles it into the immutable per-widget metadata the protocol
// server advertises.
//
// A caller supplies a list of Definitions once at startup. Compile
// validates them, fills in defaulted asset fields, renders the widget
// markup, and produces one Meta per definition. Compiled metadata is
// read-only afterwards and safely shared across sessions.
package widget

import (
	"context"

	"github.com/koopa0/widgetd/internal/schema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Result is what a widget handler returns: a human-readable text reply
// and optional structured data for the rendering surface.
type Result struct {
	// Text is the textual reply returned as the tool's text content.
	Text string

	// Data is the structured payload the rendering surface consumes.
	// Omitted from the response when nil.
	Data map[string]any
}

// Handler is the business logic behind one widget. It receives the
// validated (coerced, defaulted) arguments and may perform arbitrary
// I/O. Errors propagate to the caller as tool-execution failures;
// widgetd never retries a handler.
type Handler interface {
	Handle(ctx context.Context, args map[string]any) (*Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (*Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, args map[string]any) (*Result, error) {
	return f(ctx, args)
}

// Display holds the presentation phrases and hints shown around a
// widget invocation.
type Display struct {
	// Invoking is shown while the tool call is in flight.
	Invoking string

	// Invoked is shown once the tool call has completed.
	Invoked string

	// Description tells the model what the rendered widget displays.
	Description string

	// Accessible marks the widget as reachable by the rendering
	// surface's accessibility tree.
	Accessible bool
}

// CSP is the sandbox policy passed through to the rendering surface.
type CSP struct {
	ConnectDomains  []string `json:"connect_domains"`
	ResourceDomains []string `json:"resource_domains"`
}

// Definition declares one widget: its identity, input schema, handler
// and presentation metadata. Component values must be unique across a
// definition list.
type Definition struct {
	// Component identifies the widget. It doubles as the protocol
	// tool name and as the base filename of the widget's built assets.
	Component string

	// Title and Description are display metadata on the tool and
	// resource descriptors.
	Title       string
	Description string

	// Schema describes and validates the tool's input arguments.
	// Required.
	Schema *schema.Node

	// Handler is the business logic invoked on call-tool. Required.
	Handler Handler

	// Meta holds optional loading/loaded phrases and widget hints.
	Meta *Display

	// Annotations are protocol-level tool hints, passed through
	// verbatim.
	Annotations *mcp.ToolAnnotations

	// CSP and Domain configure the rendering sandbox, passed through
	// verbatim when set.
	CSP    *CSP
	Domain string

	// RootElement, HTMLSrc and CSSSrc override the compiled defaults
	// (see Compile). Leave empty to derive them from Component and
	// the server version.
	RootElement string
	HTMLSrc     string
	CSSSrc      string
}
