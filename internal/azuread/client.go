package azuread

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/croceverde/trasporti-desk/internal/autherr"
)

// defaultExchangeTimeout bounds a single token endpoint call.
const defaultExchangeTimeout = 20 * time.Second

// expiryMargin is subtracted from the reported token lifetime so a token is
// treated as expired a little before the issuer does.
const expiryMargin = 5 * time.Minute

// Token is the outcome of a successful token endpoint call.
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time // zero when the issuer did not report a lifetime
}

// ExchangeRequest carries everything needed to redeem an authorization code.
type ExchangeRequest struct {
	TenantID     string
	ClientID     string
	ClientSecret string // optional for PKCE-only public clients
	RedirectURI  string
	Scopes       []string
	Code         string
	CodeVerifier string
}

// RefreshRequest carries everything needed to refresh an access token.
type RefreshRequest struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	RefreshToken string
}

// Client talks to the Azure AD token endpoint. The zero value is usable.
type Client struct {
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Timeout bounds each token endpoint call. Zero means the default.
	Timeout time.Duration

	// Endpoint overrides the tenant-derived endpoint, mainly for tests.
	Endpoint *oauth2.Endpoint
}

// Exchange redeems an authorization code plus PKCE verifier for tokens.
// Authorization codes are single-use, so failures are never retried here;
// errors come back classified through the autherr taxonomy.
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (*Token, error) {
	if req.TenantID == "" || req.ClientID == "" {
		return nil, autherr.New(autherr.KindConfigurationIncomplete, "tenant ID and client ID are required")
	}

	conf := c.oauthConfig(req.TenantID, req.ClientID, req.ClientSecret, req.RedirectURI, req.Scopes)

	ctx, cancel := context.WithTimeout(c.withHTTPClient(ctx), c.timeout())
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if req.CodeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", req.CodeVerifier))
	}

	tok, err := conf.Exchange(ctx, req.Code, opts...)
	if err != nil {
		return nil, classify(err)
	}

	return convertToken(tok), nil
}

// Refresh obtains a new access token from a refresh token.
func (c *Client) Refresh(ctx context.Context, req RefreshRequest) (*Token, error) {
	if req.TenantID == "" || req.ClientID == "" {
		return nil, autherr.New(autherr.KindConfigurationIncomplete, "tenant ID and client ID are required")
	}
	if req.RefreshToken == "" {
		return nil, autherr.New(autherr.KindConfigurationIncomplete, "refresh token is required")
	}

	conf := c.oauthConfig(req.TenantID, req.ClientID, req.ClientSecret, "", req.Scopes)

	ctx, cancel := context.WithTimeout(c.withHTTPClient(ctx), c.timeout())
	defer cancel()

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(err)
	}

	return convertToken(tok), nil
}

func (c *Client) oauthConfig(tenantID, clientID, clientSecret, redirectURI string, scopes []string) *oauth2.Config {
	endpoint := Endpoint(tenantID)
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultExchangeTimeout
}

func convertToken(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = id
	}
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.Add(-expiryMargin)
	}
	return out
}

// classify maps a token endpoint failure onto the autherr taxonomy.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant":
			return autherr.Wrap(autherr.KindInvalidGrant, retrieveErr.ErrorDescription, err)
		case "invalid_client", "unauthorized_client":
			return autherr.Wrap(autherr.KindInvalidClient, retrieveErr.ErrorDescription, err)
		case "access_denied":
			return autherr.Wrap(autherr.KindAuthorizationDenied, retrieveErr.ErrorDescription, err)
		default:
			return autherr.Wrap(autherr.KindUnknown, "token endpoint rejected the request", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return autherr.Wrap(autherr.KindTimeout, "token endpoint call exceeded its deadline", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return autherr.Wrap(autherr.KindTimeout, "token endpoint call timed out", err)
		}
		return autherr.Wrap(autherr.KindNetworkFailure, "token endpoint unreachable", err)
	}

	// A 2xx body without access_token surfaces as a plain error from the
	// oauth2 package; there is no typed error to match on.
	if strings.Contains(err.Error(), "missing access_token") {
		return autherr.Wrap(autherr.KindMalformedResponse, "token response missing access_token", err)
	}

	return autherr.Wrap(autherr.KindUnknown, "token exchange failed", err)
}
