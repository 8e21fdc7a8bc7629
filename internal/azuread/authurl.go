// Package azuread builds Azure AD v2.0 authorization URLs and exchanges
// authorization codes for access tokens, classifying failures into the
// autherr taxonomy.
package azuread

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// Endpoint returns the Azure AD v2.0 OAuth2 endpoints for a tenant
// (login.microsoftonline.com/{tenant}/oauth2/v2.0/...).
func Endpoint(tenantID string) oauth2.Endpoint {
	return microsoft.AzureADEndpoint(tenantID)
}

// AuthParams are the inputs of an authorization request URL.
type AuthParams struct {
	TenantID      string
	ClientID      string
	RedirectURI   string
	Scopes        []string
	State         string
	Nonce         string
	CodeChallenge string
	Method        string // challenge method, "S256"
}

// AuthCodeURL composes the /authorize URL. Each parameter is encoded
// individually, so parsing the result reproduces every input exactly.
func AuthCodeURL(p AuthParams) string {
	conf := &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: p.RedirectURI,
		Endpoint:    Endpoint(p.TenantID),
		Scopes:      p.Scopes,
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_mode", "query"),
	}
	if p.Nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", p.Nonce))
	}
	if p.CodeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", p.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", p.Method),
		)
	}

	return conf.AuthCodeURL(p.State, opts...)
}
