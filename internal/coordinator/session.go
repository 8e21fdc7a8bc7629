package coordinator

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/croceverde/trasporti-desk/internal/azuread"
	"github.com/croceverde/trasporti-desk/internal/pkce"
)

// Session is the ephemeral per-attempt data of one login: the anti-CSRF
// state, the replay nonce and the PKCE verifier. A fresh session is
// generated for every attempt; state and verifier are never reused.
type Session struct {
	ID        string
	State     string
	Nonce     string
	Verifier  string
	AuthURL   string
	CreatedAt time.Time

	// claimed is the single-use completion latch: the first detection
	// channel to flip it drives the session to its terminal state, later
	// claims are no-ops.
	claimed atomic.Bool

	// exchanged records that a token exchange was attempted. Codes are
	// single-use, so at most one exchange happens per session.
	exchanged atomic.Bool
}

// claim takes ownership of driving the session forward.
// It succeeds exactly once.
func (s *Session) claim() bool {
	return s.claimed.CompareAndSwap(false, true)
}

// newSession generates the random material for one login attempt and
// builds its authorization URL.
func newSession(cfg Config) (*Session, error) {
	challenge, err := pkce.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE challenge: %w", err)
	}

	state, err := pkce.NewState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	nonce, err := pkce.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	authURL := azuread.AuthCodeURL(azuread.AuthParams{
		TenantID:      cfg.TenantID,
		ClientID:      cfg.ClientID,
		RedirectURI:   cfg.RedirectURI,
		Scopes:        cfg.Scopes,
		State:         state,
		Nonce:         nonce,
		CodeChallenge: challenge.CodeChallenge,
		Method:        challenge.Method,
	})

	return &Session{
		ID:        uuid.New().String(),
		State:     state,
		Nonce:     nonce,
		Verifier:  challenge.Verifier,
		AuthURL:   authURL,
		CreatedAt: time.Now(),
	}, nil
}
