package httpserver

import (
	"log/slog"
	"net/http"
)

// renderSuccess shows the confirmation page telling the user the login
// landed and the browser tab can be closed.
func (s *Server) renderSuccess(w http.ResponseWriter, message string) {
	s.render(w, "success.html", http.StatusOK, map[string]string{"Message": message})
}

// renderError shows the login failure page with the classified message.
func (s *Server) renderError(w http.ResponseWriter, errMsg string) {
	s.render(w, "error.html", http.StatusBadRequest, map[string]string{"Error": errMsg})
}

func (s *Server) render(w http.ResponseWriter, name string, status int, data map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render page", "template", name, "error", err)
	}
}
