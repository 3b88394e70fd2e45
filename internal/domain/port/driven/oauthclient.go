package driven

import (
	"context"

	"github.com/ericfisherdev/segsync/internal/domain/model"
)

// OAuthClient defines the driven port for the platform's OAuth2 endpoints.
// Both exchange methods return a credential with IssuedAt left zero; the
// token service stamps it from its own clock before persisting.
type OAuthClient interface {
	// AuthorizeURL builds the redirect-based authorization URL the operator
	// must visit to obtain a one-time code.
	AuthorizeURL(state string) string

	// ExchangeCode trades a one-time authorization code for a token pair.
	ExchangeCode(ctx context.Context, code string) (model.Credential, error)

	// Refresh trades a refresh token for a new token pair. Refresh tokens
	// are single-use: after a successful call the old token is invalid.
	Refresh(ctx context.Context, refreshToken string) (model.Credential, error)
}
