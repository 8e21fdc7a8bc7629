package sharepoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/croceverde/trasporti-desk/internal/azuread"
	"github.com/croceverde/trasporti-desk/internal/credstore"
)

type fakeRefresher struct {
	calls int
	token *azuread.Token
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, req azuread.RefreshRequest) (*azuread.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newRefreshingSource(t *testing.T, cred credstore.Credential, refresher *fakeRefresher) (*RefreshingTokenSource, credstore.Store) {
	t.Helper()

	store := credstore.NewMemoryStore()
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return &RefreshingTokenSource{
		Store:      store,
		ServiceURL: cred.ServiceURL,
		Refresher:  refresher,
		TenantID:   "contoso-tenant",
		ClientID:   "desktop-client",
	}, store
}

func TestTokenSourceServesValidToken(t *testing.T) {
	refresher := &fakeRefresher{}
	src, _ := newRefreshingSource(t, credstore.Credential{
		ServiceURL:  "https://contoso.sharepoint.com/sites/trasporti",
		AccessToken: "valid-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, refresher)

	token, err := src.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "valid-token" {
		t.Errorf("token = %q, want valid-token", token)
	}
	if refresher.calls != 0 {
		t.Error("a valid token must not trigger a refresh")
	}
}

func TestTokenSourceRefreshesExpiredToken(t *testing.T) {
	refresher := &fakeRefresher{token: &azuread.Token{
		AccessToken: "renewed-token",
		Expiry:      time.Now().Add(time.Hour),
	}}
	src, store := newRefreshingSource(t, credstore.Credential{
		ServiceURL:   "https://contoso.sharepoint.com/sites/trasporti",
		AccessToken:  "expired-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}, refresher)

	token, err := src.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "renewed-token" {
		t.Errorf("token = %q, want renewed-token", token)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want 1", refresher.calls)
	}

	// The renewal must be persisted, keeping the old refresh token when
	// the issuer did not rotate it.
	saved, err := store.Load(src.ServiceURL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.AccessToken != "renewed-token" {
		t.Errorf("persisted token = %q", saved.AccessToken)
	}
	if saved.RefreshToken != "refresh-token" {
		t.Errorf("persisted refresh token = %q, want the original", saved.RefreshToken)
	}
}

func TestTokenSourceFallsBackWhenRefreshFails(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("issuer unavailable")}
	src, _ := newRefreshingSource(t, credstore.Credential{
		ServiceURL:   "https://contoso.sharepoint.com/sites/trasporti",
		AccessToken:  "expired-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}, refresher)

	token, err := src.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "expired-token" {
		t.Errorf("token = %q, want the stored token as fallback", token)
	}
}

func TestTokenSourceWithoutRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	src, _ := newRefreshingSource(t, credstore.Credential{
		ServiceURL:  "https://contoso.sharepoint.com/sites/trasporti",
		AccessToken: "expired-token",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}, refresher)

	token, err := src.AccessToken()
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "expired-token" {
		t.Errorf("token = %q", token)
	}
	if refresher.calls != 0 {
		t.Error("refresh must not run without a refresh token")
	}
}
