package mcp

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/koopa0/widgetd/internal/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	// SSEPath is the streaming endpoint clients GET to open a session.
	SSEPath string

	// MessagePath is the endpoint clients POST protocol messages to,
	// carrying their sessionId as a query parameter.
	MessagePath string

	// NewServer builds the protocol server bound to one session.
	// Called once per connection; instances are never shared.
	NewServer func() *mcp.Server

	// Logger receives session lifecycle logs. Nil discards them.
	Logger log.Logger
}

// connectWriter wraps the streaming endpoint's ResponseWriter to track
// whether response headers have been committed. Implements Flusher so
// the SSE transport can stream through it and Unwrap for
// http.ResponseController.
type connectWriter struct {
	w           http.ResponseWriter
	wroteHeader bool
}

func (cw *connectWriter) Header() http.Header {
	return cw.w.Header()
}

func (cw *connectWriter) WriteHeader(code int) {
	cw.wroteHeader = true
	cw.w.WriteHeader(code)
}

func (cw *connectWriter) Write(b []byte) (int, error) {
	cw.wroteHeader = true
	return cw.w.Write(b)
}

func (cw *connectWriter) Flush() {
	if f, ok := cw.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *connectWriter) Unwrap() http.ResponseWriter {
	return cw.w
}

// session is one live client connection: its transport and the bound
// server session.
type session struct {
	transport *mcp.SSEServerTransport
	ss        *mcp.ServerSession
}

// SessionManager owns the collection of active streaming sessions.
// It is constructed once per process and has exclusive write access
// to the session table; the table is the only shared mutable state in
// the server.
type SessionManager struct {
	cfg    SessionManagerConfig
	logger log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a session manager with an empty table.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &SessionManager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// ServeHTTP routes the streaming endpoint pair: GET opens a session,
// POST delivers one message to an existing session, OPTIONS answers
// CORS preflight. Anything else is a 404.
func (m *SessionManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == m.cfg.SSEPath:
		m.connect(w, r)
	case r.Method == http.MethodPost && r.URL.Path == m.cfg.MessagePath:
		m.deliver(w, r)
	default:
		http.NotFound(w, r)
	}
}

// connect opens a new session: fresh server, fresh SSE transport,
// registration in the table, then blocks until the client goes away.
// The table entry is removed and the server session closed on every
// exit path, including setup failures.
func (m *SessionManager) connect(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	endpoint := m.cfg.MessagePath + "?sessionId=" + sessionID

	cw := &connectWriter{w: w}
	transport := &mcp.SSEServerTransport{Endpoint: endpoint, Response: cw}
	server := m.cfg.NewServer()

	ss, err := server.Connect(r.Context(), transport, nil)
	if err != nil {
		// Session never reached the table; nothing to unregister. The
		// transport may already have committed the event-stream
		// headers, in which case an error status cannot be sent.
		m.logger.Error("session handshake failed", "session", sessionID, "error", err)
		if !cw.wroteHeader {
			http.Error(w, "connection failed", http.StatusInternalServerError)
		}
		return
	}

	sess := &session{transport: transport, ss: ss}
	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	m.logger.Info("session opened", "session", sessionID, "remote", r.RemoteAddr)

	defer func() {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		_ = ss.Close()
		m.logger.Info("session closed", "session", sessionID)
	}()

	// Wait for client disconnect or transport teardown, whichever
	// comes first. Closing ss unblocks Wait, so the goroutine always
	// exits.
	done := make(chan struct{})
	go func() {
		_ = ss.Wait()
		close(done)
	}()

	select {
	case <-r.Context().Done():
	case <-done:
	}
}

// deliver routes one inbound protocol message to the session named by
// the sessionId query parameter. Missing id is a 400, unknown id a
// 404; neither mutates the table.
func (m *SessionManager) deliver(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	sess.transport.ServeHTTP(w, r)
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every live session. Used on server shutdown; the
// blocked connect handlers observe the closed sessions and clean up
// their own table entries.
func (m *SessionManager) Close() {
	m.mu.Lock()
	open := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		_ = s.ss.Close()
	}
}
