package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koopa0/widgetd/internal/log"
	"github.com/koopa0/widgetd/internal/schema"
	"github.com/koopa0/widgetd/internal/widget"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrResourceNotFound is returned when reading a template URI no
// widget owns.
var ErrResourceNotFound = errors.New("resource not found")

// templateMIMEType marks widget markup resources for the rendering
// surface.
const templateMIMEType = "text/html+skybridge"

// ServerConfig configures a synthesized protocol server.
type ServerConfig struct {
	// Name and Version identify the server implementation to clients.
	Name    string
	Version string

	// Widgets is the compiled metadata, shared across sessions.
	Widgets []*widget.Meta

	// Logger receives tool invocation logs. Nil discards them.
	Logger log.Logger
}

// NewServer synthesizes a protocol server from compiled widget
// metadata. Every session gets its own instance so no in-flight state
// is ever shared between clients; the metadata behind it is immutable
// and shared by reference.
func NewServer(cfg ServerConfig) *mcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	byURI := make(map[string]*widget.Meta, len(cfg.Widgets))
	for _, w := range cfg.Widgets {
		byURI[w.TemplateURI] = w
	}

	for _, w := range cfg.Widgets {
		registerTool(server, w, logger)
		registerResource(server, w, byURI)
	}

	return server
}

// registerTool advertises one widget as a callable tool and wires
// validation in front of its handler.
func registerTool(server *mcp.Server, w *widget.Meta, logger log.Logger) {
	def := w.Def

	server.AddTool(&mcp.Tool{
		Name:        def.Component,
		Title:       def.Title,
		Description: def.Description,
		InputSchema: w.InputSchema,
		Annotations: def.Annotations,
		Meta:        metaBlock(w),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req)
		if err != nil {
			return nil, err
		}

		// Validation failure must never reach the handler.
		validated, err := schema.Validate(def.Schema, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		result, err := def.Handler.Handle(ctx, validated)
		if err != nil {
			// Tool-execution failure: surfaced as an error result, not
			// a protocol error, so the session stays usable. Never
			// retried.
			logger.Warn("widget handler failed", "component", def.Component, "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", def.Component, err)}},
				IsError: true,
			}, nil
		}

		logger.Debug("widget invoked", "component", def.Component)

		out := &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Text}},
			Meta:    metaBlock(w),
		}
		if result.Data != nil {
			out.StructuredContent = result.Data
		}
		return out, nil
	})
}

// registerResource advertises the widget markup as both a concrete
// resource and a resource template.
func registerResource(server *mcp.Server, w *widget.Meta, byURI map[string]*widget.Meta) {
	def := w.Def

	read := func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		target, ok := byURI[req.Params.URI]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, req.Params.URI)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      target.TemplateURI,
				MIMEType: templateMIMEType,
				Text:     target.HTML,
				Meta:     metaBlock(target),
			}},
		}, nil
	}

	server.AddResource(&mcp.Resource{
		URI:         w.TemplateURI,
		Name:        def.Component,
		Title:       def.Title,
		Description: def.Description,
		MIMEType:    templateMIMEType,
		Meta:        metaBlock(w),
	}, read)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: w.TemplateURI,
		Name:        def.Component,
		Title:       def.Title,
		Description: def.Description,
		MIMEType:    templateMIMEType,
		Meta:        metaBlock(w),
	}, read)
}

// decodeArguments unmarshals the raw call arguments into a map for
// validation. A missing arguments object is treated as empty.
func decodeArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	args := map[string]any{}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, fmt.Errorf("decoding tool arguments: %w", err)
		}
	}
	return args, nil
}

// metaBlock assembles the per-widget metadata attached to tool and
// resource descriptors and to call results: the output template
// reference, invocation phrases, accessibility flag and sandbox
// policy. Keys without values are omitted.
func metaBlock(w *widget.Meta) mcp.Meta {
	def := w.Def
	m := mcp.Meta{
		"openai/outputTemplate": w.TemplateURI,
	}
	if def.Meta != nil {
		if def.Meta.Invoking != "" {
			m["openai/toolInvocation/invoking"] = def.Meta.Invoking
		}
		if def.Meta.Invoked != "" {
			m["openai/toolInvocation/invoked"] = def.Meta.Invoked
		}
		if def.Meta.Description != "" {
			m["openai/widgetDescription"] = def.Meta.Description
		}
		m["openai/widgetAccessible"] = def.Meta.Accessible
	}
	if def.CSP != nil {
		m["openai/widgetCSP"] = map[string]any{
			"connect_domains":  def.CSP.ConnectDomains,
			"resource_domains": def.CSP.ResourceDomains,
		}
	}
	if def.Domain != "" {
		m["openai/widgetDomain"] = def.Domain
	}
	return m
}
