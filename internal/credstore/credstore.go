// Package credstore persists access tokens keyed by the service URL they
// belong to. The store is the only durable state shared between the primary
// and authentication surfaces: the coordinator writes it after a successful
// exchange, every surface's bootstrap check reads it, and the polling
// completion channel watches it. Writes always replace the whole entry, so
// readers never observe a partial credential.
package credstore

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Load when no credential exists for a service URL.
var ErrNotFound = errors.New("credential not found")

// Credential is a stored access token for one service URL.
type Credential struct {
	ServiceURL   string    `json:"service_url"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at"`
}

// Store persists credentials keyed by service URL.
type Store interface {
	// Save overwrites any existing entry for cred.ServiceURL.
	Save(cred Credential) error

	// Load returns the stored credential or ErrNotFound.
	Load(serviceURL string) (*Credential, error)

	// Delete removes the entry; deleting a missing entry is not an error.
	Delete(serviceURL string) error

	// IsAuthenticated reports whether a non-empty access token is stored.
	// Expiry is deliberately not validated here: the expiry field is
	// advisory and consumed only by the refresh path.
	IsAuthenticated(serviceURL string) bool
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string // memory, file, or keyring
	Path    string // file backend
	Service string // keyring backend
}

// New builds a Store from configuration.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path)
	case "keyring":
		return NewKeyringStore(cfg.Service), nil
	default:
		return nil, fmt.Errorf("unknown credential store backend: %q", cfg.Backend)
	}
}

// isAuthenticated implements the shared presence check on top of Load.
func isAuthenticated(s Store, serviceURL string) bool {
	cred, err := s.Load(serviceURL)
	if err != nil {
		return false
	}
	return cred.AccessToken != ""
}
