package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/koopa0/widgetd/internal/schema"
	"github.com/koopa0/widgetd/internal/widget"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// goleakOptions filters goroutines owned by the HTTP client pool and
// the runtime network poller, which outlive individual tests.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

// newSessionServer starts an HTTP test server fronting a fresh session
// manager that serves a single hello widget.
func newSessionServer(t *testing.T) (*httptest.Server, *SessionManager) {
	t.Helper()

	defs := []widget.Definition{{
		Component:   "hello",
		Title:       "Hello",
		Description: "Greets by name.",
		Schema: schema.Object(map[string]*schema.Node{
			"name": schema.String(),
		}),
		Handler: widget.HandlerFunc(func(_ context.Context, args map[string]any) (*widget.Result, error) {
			return &widget.Result{Text: "hello " + args["name"].(string)}, nil
		}),
	}}

	metas, err := widget.Compile(defs, "1.0.0", "https://cdn.example.com/assets")
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}

	manager := NewSessionManager(SessionManagerConfig{
		SSEPath:     "/mcp",
		MessagePath: "/mcp/messages",
		NewServer: func() *mcp.Server {
			return NewServer(ServerConfig{
				Name:    "widgetd-test",
				Version: "1.0.0",
				Widgets: metas,
			})
		},
	})

	srv := httptest.NewServer(manager)
	t.Cleanup(srv.Close)
	return srv, manager
}

// connectSession opens a client session over the SSE endpoint.
func connectSession(t *testing.T, srv *httptest.Server) *mcp.ClientSession {
	t.Helper()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(context.Background(), &mcp.SSEClientTransport{
		Endpoint: srv.URL + "/mcp",
	}, nil)
	if err != nil {
		t.Fatalf("client.Connect() unexpected error: %v", err)
	}
	return session
}

// waitForSessions polls the manager until it reports want live
// sessions or the deadline passes.
func waitForSessions(t *testing.T, manager *SessionManager, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if manager.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session count = %d, want %d", manager.Len(), want)
}

func TestSessions_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv, manager := newSessionServer(t)
	session := connectSession(t, srv)
	defer session.Close()

	waitForSessions(t, manager, 1)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "hello",
		Arguments: map[string]any{"name": "ada"},
	})
	if err != nil {
		t.Fatalf("CallTool(hello) unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool(hello) returned error result: %v", result.Content)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] type = %T, want *mcp.TextContent", result.Content[0])
	}
	if text.Text != "hello ada" {
		t.Errorf("CallTool(hello) text = %q, want %q", text.Text, "hello ada")
	}

	if result.StructuredContent != nil {
		t.Errorf("StructuredContent = %v, want omitted for text-only result", result.StructuredContent)
	}

	read, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{
		URI: "ui://widget/hello.html",
	})
	if err != nil {
		t.Fatalf("ReadResource() unexpected error: %v", err)
	}
	if !strings.Contains(read.Contents[0].Text, `<div id="hello-root"></div>`) {
		t.Errorf("resource markup missing root element:\n%s", read.Contents[0].Text)
	}
}

func TestSessions_DisconnectRemovesSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv, manager := newSessionServer(t)
	session := connectSession(t, srv)

	waitForSessions(t, manager, 1)

	if err := session.Close(); err != nil {
		t.Fatalf("session.Close() unexpected error: %v", err)
	}

	waitForSessions(t, manager, 0)
}

func TestSessions_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv, manager := newSessionServer(t)

	first := connectSession(t, srv)
	defer first.Close()
	second := connectSession(t, srv)
	defer second.Close()

	waitForSessions(t, manager, 2)

	// Each session answers independently while the other stays open.
	for _, session := range []*mcp.ClientSession{first, second} {
		result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      "hello",
			Arguments: map[string]any{"name": "x"},
		})
		if err != nil {
			t.Fatalf("CallTool() unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("CallTool() returned error result: %v", result.Content)
		}
	}
}

func TestSessions_PendingCallDoesNotBlockOthers(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	release := make(chan struct{})
	defs := []widget.Definition{{
		Component:   "slow",
		Title:       "Slow",
		Description: "Blocks until released.",
		Schema:      schema.Object(map[string]*schema.Node{}),
		Handler: widget.HandlerFunc(func(ctx context.Context, _ map[string]any) (*widget.Result, error) {
			select {
			case <-release:
				return &widget.Result{Text: "done"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	}}

	metas, err := widget.Compile(defs, "1.0.0", "https://cdn.example.com/assets")
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}

	manager := NewSessionManager(SessionManagerConfig{
		SSEPath:     "/mcp",
		MessagePath: "/mcp/messages",
		NewServer: func() *mcp.Server {
			return NewServer(ServerConfig{Name: "widgetd-test", Version: "1.0.0", Widgets: metas})
		},
	})
	srv := httptest.NewServer(manager)
	t.Cleanup(srv.Close)

	first := connectSession(t, srv)
	defer first.Close()
	second := connectSession(t, srv)
	defer second.Close()

	callDone := make(chan error, 1)
	go func() {
		_, err := first.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      "slow",
			Arguments: map[string]any{},
		})
		callDone <- err
	}()

	// While the first session's call hangs in its handler, discovery on
	// the second session must complete promptly.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := second.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools() on second session: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "slow" {
		t.Errorf("ListTools() = %v, want the slow tool", result.Tools)
	}

	select {
	case err := <-callDone:
		t.Fatalf("pending call finished early: %v", err)
	default:
	}

	close(release)
	if err := <-callDone; err != nil {
		t.Errorf("CallTool(slow) after release: %v", err)
	}
}

func TestSessions_MessageEndpointErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv, _ := newSessionServer(t)

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{name: "missing sessionId", url: srv.URL + "/mcp/messages", wantStatus: http.StatusBadRequest},
		{name: "unknown session", url: srv.URL + "/mcp/messages?sessionId=no-such-session", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(tt.url, "application/json", strings.NewReader("{}"))
			if err != nil {
				t.Fatalf("POST unexpected error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("POST status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestConnectWriterTracksCommit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &connectWriter{w: rec}

	if cw.wroteHeader {
		t.Fatal("wroteHeader = true before any write")
	}

	cw.Header().Set("Content-Type", "text/event-stream")
	if cw.wroteHeader {
		t.Error("setting headers must not mark the response committed")
	}

	cw.WriteHeader(http.StatusOK)
	if !cw.wroteHeader {
		t.Error("wroteHeader = false after WriteHeader")
	}
	if _, err := cw.Write([]byte("event: endpoint\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	cw.Flush()

	if cw.Unwrap() != rec {
		t.Error("Unwrap() did not return the underlying writer")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestConnectWriterImplicitCommit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &connectWriter{w: rec}

	// A bare Write commits headers too.
	if _, err := cw.Write([]byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !cw.wroteHeader {
		t.Error("wroteHeader = false after Write")
	}
}

func TestSessions_RoutingFallthrough(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv, _ := newSessionServer(t)

	resp, err := http.Get(srv.URL + "/something-else")
	if err != nil {
		t.Fatalf("GET unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /something-else status = %d, want 404", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/mcp", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS /mcp status = %d, want 204", resp.StatusCode)
	}
}
