package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/croceverde/trasporti-desk/internal/autherr"
)

// handleRedirect completes the authorization code flow:
//  1. Extract code, state and error from the query parameters
//  2. Hand them to the login coordinator, which validates the state and
//     exchanges the code
//  3. Show the user a result page
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	errParam := query.Get("error")
	errDesc := query.Get("error_description")

	slog.Info("redirect received", // #nosec G706 -- only boolean values logged, no injection risk
		"code_present", code != "",
		"state_present", state != "",
		"error_present", errParam != "",
	)

	if errParam != "" {
		slog.Error("provider returned an error", // #nosec G706 -- values sanitized via sanitizeLog
			"error", sanitizeLog(errParam),
			"description", sanitizeLog(errDesc),
		)
		_ = s.auth.HandleCallback(r.Context(), state, "", errParam)

		msg := errDesc
		if msg == "" {
			msg = errParam
		}
		s.renderError(w, "Accesso negato: "+msg)
		return
	}

	if code == "" {
		// Plain visit to the loopback address, not a provider redirect.
		s.renderError(w, "Nessun codice di autorizzazione presente.")
		return
	}
	if state == "" {
		slog.Error("redirect missing state parameter")
		s.renderError(w, "Risposta del provider non valida: parametro state mancante.")
		return
	}

	if err := s.auth.HandleCallback(r.Context(), state, code, errParam); err != nil {
		slog.Error("login could not be completed", // #nosec G706 -- error built from classified kinds, no external text
			"error", err,
		)
		s.renderError(w, userMessage(err))
		return
	}

	s.renderSuccess(w, "Accesso completato. Puoi chiudere questa finestra e tornare all'applicazione.")
}

// userMessage maps a classified error to text shown in the browser.
func userMessage(err error) string {
	var ae *autherr.Error
	if !errors.As(err, &ae) {
		return "Accesso non riuscito. Riprova."
	}

	switch ae.Kind {
	case autherr.KindStateMismatch:
		return "La risposta non corrisponde alla sessione di accesso corrente. Riprova dall'applicazione."
	case autherr.KindInvalidGrant:
		return "Il codice di autorizzazione è scaduto o già usato. Riprova dall'applicazione."
	case autherr.KindNetworkFailure:
		return "Impossibile contattare il server di autenticazione. Controlla la connessione e riprova."
	case autherr.KindTimeout:
		return "Il server di autenticazione non ha risposto in tempo. Riprova."
	default:
		return "Accesso non riuscito. Riprova."
	}
}
