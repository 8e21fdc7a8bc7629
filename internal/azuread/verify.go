package azuread

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/croceverde/trasporti-desk/internal/autherr"
)

// IDTokenVerifier validates ID token signatures and nonce binding against
// the tenant's published keys. Verification is opt-in (auth.verify_id_token):
// by default the application accepts tokens unverified, matching the
// historical behavior, and this type is the explicit way to close that gap.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier discovers the tenant's OIDC metadata and prepares a
// verifier bound to the client ID.
func NewIDTokenVerifier(ctx context.Context, tenantID, clientID string) (*IDTokenVerifier, error) {
	issuer := fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", tenantID)

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover issuer %s: %w", issuer, err)
	}

	return &IDTokenVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks the token's signature, issuer, audience and expiry, and
// that its nonce claim matches the one sent in the authorization request.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken, nonce string) error {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return autherr.Wrap(autherr.KindMalformedResponse, "id token verification failed", err)
	}

	if nonce != "" && idToken.Nonce != nonce {
		return autherr.New(autherr.KindStateMismatch, "id token nonce does not match the pending session")
	}

	return nil
}
