// Package api composes the widgetd HTTP surface: the protocol session
// endpoints, the static asset gateway and operational probes, wrapped
// in the middleware stack.
package api

import (
	"errors"
	"net/http"

	"github.com/koopa0/widgetd/internal/assets"
	"github.com/koopa0/widgetd/internal/log"
	wmcp "github.com/koopa0/widgetd/internal/mcp"
	"github.com/koopa0/widgetd/internal/widget"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerConfig contains configuration for creating the widgetd server.
type ServerConfig struct {
	Logger log.Logger

	// Widgets is the declarative widget list. Required, non-empty.
	Widgets []widget.Definition

	// ServerName and Version identify the server to clients; Version
	// also determines the asset hash.
	ServerName string
	Version    string

	// BaseURL is the public prefix compiled into widget asset URLs.
	BaseURL string

	// AssetsDir is the directory served under /assets/.
	AssetsDir string

	// SSEPath and MessagePath are the protocol endpoints
	// (defaults /mcp and /mcp/messages).
	SSEPath     string
	MessagePath string

	CORSOrigins []string
	TrustProxy  bool
	RateBurst   int // 0 = default 60
}

// Server is the widgetd HTTP server.
type Server struct {
	mux      *http.ServeMux
	sessions *wmcp.SessionManager
	widgets  []*widget.Meta
}

// NewServer compiles the widget definitions and wires all routes.
// Compilation errors (duplicate component, missing schema or handler)
// are returned before any listener can start.
func NewServer(cfg ServerConfig) (*Server, error) {
	if len(cfg.Widgets) == 0 {
		return nil, errors.New("at least one widget definition is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.SSEPath == "" {
		cfg.SSEPath = "/mcp"
	}
	if cfg.MessagePath == "" {
		cfg.MessagePath = "/mcp/messages"
	}

	compiled, err := widget.Compile(cfg.Widgets, cfg.Version, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	sessions := wmcp.NewSessionManager(wmcp.SessionManagerConfig{
		SSEPath:     cfg.SSEPath,
		MessagePath: cfg.MessagePath,
		Logger:      logger.With("component", "sessions"),
		NewServer: func() *mcp.Server {
			return wmcp.NewServer(wmcp.ServerConfig{
				Name:    cfg.ServerName,
				Version: cfg.Version,
				Widgets: compiled,
				Logger:  logger.With("component", "router"),
			})
		},
	})

	assetHandler, err := assets.NewHandler(cfg.AssetsDir, logger.With("component", "assets"))
	if err != nil {
		return nil, err
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)
	limit := rateLimitMiddleware(rl, cfg.TrustProxy, logger)

	// Protocol endpoints: the session manager routes GET/POST/OPTIONS
	// itself, so both paths map onto the same handler. CORS before
	// RateLimit so preflight OPTIONS carries CORS headers even when a
	// client is throttled.
	protoMux := http.NewServeMux()
	protoMux.Handle(cfg.SSEPath, sessions)
	protoMux.Handle(cfg.MessagePath, sessions)
	proto := corsMiddleware(cfg.CORSOrigins)(limit(protoMux))

	// Asset requests bypass sessions and the allowlist CORS layer; the
	// asset handler answers its own preflights with permissive headers.
	mux := http.NewServeMux()
	mux.Handle("/assets/", limit(http.StripPrefix("/assets/", assetHandler)))
	mux.Handle("/", proto)

	// Middleware stack (outermost first):
	//   Recovery → Logging → per-branch RateLimit and CORS → Routes
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	s := &Server{
		sessions: sessions,
		widgets:  compiled,
	}

	// Health probes sit outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", s.ready(logger))
	topMux.Handle("/", handler)
	s.mux = topMux

	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Widgets returns the compiled widget metadata.
func (s *Server) Widgets() []*widget.Meta {
	return s.widgets
}

// Close tears down all live protocol sessions.
func (s *Server) Close() {
	s.sessions.Close()
}
