// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// DefaultRefreshThreshold is how long an access token is reused before being
// refreshed. The platform issues tokens with a 30 minute lifetime; the margin
// stays strictly under that so a token validated here cannot expire before
// the API call that uses it.
const DefaultRefreshThreshold = 25 * time.Minute

// CodePrompt obtains a one-time authorization code out-of-band. The
// composition root supplies an implementation that shows the URL to the
// operator and reads the code back.
type CodePrompt func(authorizeURL string) (string, error)

// TokenService manages the OAuth2 credential lifecycle: first-run
// authorization-code exchange, cached reuse inside the refresh threshold,
// and transparent refresh beyond it. It holds the single live credential for
// the process and writes through to the store on every change.
type TokenService struct {
	store     driven.CredentialStore
	oauth     driven.OAuthClient
	prompt    CodePrompt
	threshold time.Duration
	now       func() time.Time

	cred *model.Credential // in-memory copy of the live credential
}

// NewTokenService creates a TokenService with the given refresh threshold.
func NewTokenService(store driven.CredentialStore, oauth driven.OAuthClient, prompt CodePrompt, threshold time.Duration) *TokenService {
	return NewTokenServiceWithClock(store, oauth, prompt, threshold, time.Now)
}

// NewTokenServiceWithClock creates a TokenService with an injected clock.
// Intended for testing time-dependent refresh behavior.
func NewTokenServiceWithClock(store driven.CredentialStore, oauth driven.OAuthClient, prompt CodePrompt, threshold time.Duration, now func() time.Time) *TokenService {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return &TokenService{
		store:     store,
		oauth:     oauth,
		prompt:    prompt,
		threshold: threshold,
		now:       now,
	}
}

// AccessToken returns a bearer token valid for at least the remainder of the
// refresh threshold. Inside the threshold the cached token is returned with
// no network call; beyond it the refresh flow runs; with no prior session the
// full authorization-code flow runs. Any acquisition failure is fatal for the
// run: nothing can proceed without a credential.
func (s *TokenService) AccessToken(ctx context.Context) (string, error) {
	if s.cred == nil {
		cred, err := s.store.Load(ctx)
		switch {
		case errors.Is(err, driven.ErrNoSession):
			return s.authorize(ctx)
		case err != nil:
			return "", fmt.Errorf("load credential: %w", err)
		}
		s.cred = cred
	}

	if s.cred.Age(s.now()) <= s.threshold {
		return s.cred.AccessToken, nil
	}

	return s.refresh(ctx)
}

// authorize runs the first-use authorization-code flow: the operator visits
// the authorization URL, pastes the one-time code back, and the code is
// exchanged for a token pair.
func (s *TokenService) authorize(ctx context.Context) (string, error) {
	state := uuid.NewString()

	code, err := s.prompt(s.oauth.AuthorizeURL(state))
	if err != nil {
		return "", fmt.Errorf("obtain authorization code: %w", err)
	}

	cred, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	slog.Info("authorization code exchanged")
	return s.adopt(ctx, cred)
}

// refresh exchanges the current refresh token for a new pair. Refresh tokens
// are single-use: the new pair replaces the old one in memory before any
// further call can observe it, so a spent token is never sent twice.
func (s *TokenService) refresh(ctx context.Context) (string, error) {
	cred, err := s.oauth.Refresh(ctx, s.cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	slog.Info("access token refreshed", "previous_age", s.cred.Age(s.now()).Round(time.Second))
	return s.adopt(ctx, cred)
}

// adopt stamps issuance on a freshly exchanged credential, makes it the live
// one, and writes it through to the store. The in-memory copy is installed
// even when the write fails: the old refresh token is already spent, and
// dropping the new pair would force a re-authorization for nothing. A failed
// write only costs persistence across restarts, so it is logged, not fatal.
func (s *TokenService) adopt(ctx context.Context, cred model.Credential) (string, error) {
	cred.IssuedAt = s.now()
	s.cred = &cred

	if err := s.store.Save(ctx, cred); err != nil {
		slog.Error("credential save failed, continuing with in-memory credential", "error", err)
	}

	return cred.AccessToken, nil
}
