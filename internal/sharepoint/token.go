package sharepoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/croceverde/trasporti-desk/internal/azuread"
	"github.com/croceverde/trasporti-desk/internal/credstore"
)

// Refresher renews an access token from a refresh token.
// *azuread.Client satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, req azuread.RefreshRequest) (*azuread.Token, error)
}

// RefreshingTokenSource serves the stored token and renews it through the
// refresh token once its recorded expiry has passed. The renewed credential
// is written back to the store so every surface picks it up.
type RefreshingTokenSource struct {
	Store      credstore.Store
	ServiceURL string
	Refresher  Refresher

	TenantID     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (s *RefreshingTokenSource) AccessToken() (string, error) {
	cred, err := (&StoreTokenSource{Store: s.Store, ServiceURL: s.ServiceURL}).load()
	if err != nil {
		return "", err
	}

	if !s.expired(cred) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" || s.Refresher == nil {
		// Nothing to renew with; let the API call fail with 401 and send
		// the user back through the login.
		return cred.AccessToken, nil
	}

	token, err := s.Refresher.Refresh(context.Background(), azuread.RefreshRequest{
		TenantID:     s.TenantID,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Scopes:       s.Scopes,
		RefreshToken: cred.RefreshToken,
	})
	if err != nil {
		slog.Warn("token refresh failed, using the stored token", "error", err)
		return cred.AccessToken, nil
	}

	renewed := credstore.Credential{
		ServiceURL:   s.ServiceURL,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		ObtainedAt:   time.Now(),
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = cred.RefreshToken
	}
	if err := s.Store.Save(renewed); err != nil {
		slog.Warn("could not persist the renewed credential", "error", err)
	} else {
		slog.Info("access token renewed")
	}

	return renewed.AccessToken, nil
}

func (s *RefreshingTokenSource) expired(cred *credstore.Credential) bool {
	return !cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt)
}
