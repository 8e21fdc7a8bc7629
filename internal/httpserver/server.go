// Package httpserver serves the loopback redirect target of the login flow.
// The provider sends the browser back to http://localhost:1420/; the handler
// forwards the authorization code to the login coordinator and shows the
// user a result page.
package httpserver

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Authenticator receives intercepted redirects. *coordinator.Coordinator
// satisfies it.
type Authenticator interface {
	HandleCallback(ctx context.Context, state, code, errParam string) error
	IsAuthenticated() bool
}

// Server is the loopback HTTP server of the desktop app.
type Server struct {
	addr       string
	auth       Authenticator
	httpServer *http.Server
	mux        *http.ServeMux
	templates  *template.Template
}

// NewServer creates the loopback server on addr.
func NewServer(addr string, auth Authenticator) (*Server, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:      addr,
		auth:      auth,
		mux:       http.NewServeMux(),
		templates: templates,
	}

	s.mux.HandleFunc("/", s.handleRedirect)
	s.mux.HandleFunc("/health", s.handleHealth)

	handler := loggingMiddleware(s.mux)
	handler = recoveryMiddleware(handler)
	handler = rateLimitMiddleware(handler)
	handler = securityHeadersMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the full middleware chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	slog.Info("starting loopback server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down loopback server")
	return s.httpServer.Shutdown(ctx)
}
