package azuread

import (
	"net/url"
	"strings"
	"testing"
)

func TestAuthCodeURL(t *testing.T) {
	p := AuthParams{
		TenantID:      "t1",
		ClientID:      "c1",
		RedirectURI:   "http://localhost:1420",
		Scopes:        []string{"https://graph.microsoft.com/Sites.ReadWrite.All", "offline_access"},
		State:         "state-token",
		Nonce:         "nonce-token",
		CodeChallenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		Method:        "S256",
	}

	raw := AuthCodeURL(p)

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("authorization URL does not parse: %v", err)
	}

	if !strings.Contains(u.Path, "t1") {
		t.Errorf("URL path %q does not address tenant t1", u.Path)
	}
	if !strings.HasSuffix(u.Path, "/authorize") {
		t.Errorf("URL path %q is not an /authorize endpoint", u.Path)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":             "c1",
		"response_type":         "code",
		"response_mode":         "query",
		"redirect_uri":          "http://localhost:1420",
		"state":                 "state-token",
		"nonce":                 "nonce-token",
		"code_challenge":        "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		"code_challenge_method": "S256",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}

	if got := q.Get("scope"); !strings.Contains(got, "Sites.ReadWrite.All") || !strings.Contains(got, "offline_access") {
		t.Errorf("scope = %q, missing expected scopes", got)
	}
}

// Parameters with URL-hostile characters must survive a parse round-trip
// without double encoding.
func TestAuthCodeURLEncodingRoundTrip(t *testing.T) {
	p := AuthParams{
		TenantID:    "t1",
		ClientID:    "c 1&x=2",
		RedirectURI: "http://localhost:1420/percorso?a=b",
		Scopes:      []string{"sc ope/with:chars"},
		State:       "st+ate%3D",
	}

	u, err := url.Parse(AuthCodeURL(p))
	if err != nil {
		t.Fatalf("authorization URL does not parse: %v", err)
	}

	q := u.Query()
	if got := q.Get("client_id"); got != p.ClientID {
		t.Errorf("client_id round-trip = %q, want %q", got, p.ClientID)
	}
	if got := q.Get("redirect_uri"); got != p.RedirectURI {
		t.Errorf("redirect_uri round-trip = %q, want %q", got, p.RedirectURI)
	}
	if got := q.Get("state"); got != p.State {
		t.Errorf("state round-trip = %q, want %q", got, p.State)
	}
}

func TestAuthCodeURLOmitsEmptyOptionals(t *testing.T) {
	u, err := url.Parse(AuthCodeURL(AuthParams{TenantID: "t1", ClientID: "c1", State: "s"}))
	if err != nil {
		t.Fatalf("authorization URL does not parse: %v", err)
	}

	q := u.Query()
	for _, k := range []string{"nonce", "code_challenge", "code_challenge_method"} {
		if q.Has(k) {
			t.Errorf("query should not contain %s when unset", k)
		}
	}
}
