package snapchat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

const (
	defaultAuthorizeURL = "https://accounts.snapchat.com/login/oauth2/authorize"
	defaultTokenURL     = "https://accounts.snapchat.com/accounts/oauth2/access_token"

	// marketingScope grants access to the audience-management API.
	marketingScope = "snapchat-marketing-api"
)

// OAuthConfig configures the OAuth adapter. AuthorizeURL and TokenURL may be
// overridden for tests.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
}

// Compile-time interface satisfaction check.
var _ driven.OAuthClient = (*OAuth)(nil)

// OAuth implements the driven.OAuthClient port against the platform's OAuth2
// endpoints. Returned credentials carry a zero IssuedAt; the token service
// stamps issuance from its own clock.
type OAuth struct {
	config OAuthConfig
	http   *http.Client
}

// NewOAuth creates an OAuth adapter, filling in the production endpoint URLs
// when not overridden.
func NewOAuth(config OAuthConfig) *OAuth {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	return &OAuth{config: config, http: http.DefaultClient}
}

// AuthorizeURL builds the redirect-based authorization URL the operator must
// visit to obtain a one-time code.
func (o *OAuth) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {o.config.ClientID},
		"redirect_uri":  {o.config.RedirectURI},
		"response_type": {"code"},
		"scope":         {marketingScope},
		"state":         {state},
	}
	return o.config.AuthorizeURL + "?" + params.Encode()
}

// ExchangeCode trades a one-time authorization code for a token pair.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (model.Credential, error) {
	return o.requestToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {o.config.ClientID},
		"client_secret": {o.config.ClientSecret},
		"redirect_uri":  {o.config.RedirectURI},
	})
}

// Refresh trades a refresh token for a new token pair. The old refresh token
// is invalid the instant this succeeds; callers must persist the new pair
// before issuing any further refresh.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (model.Credential, error) {
	return o.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {o.config.ClientID},
		"client_secret": {o.config.ClientSecret},
		"redirect_uri":  {o.config.RedirectURI},
	})
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// requestToken POSTs a form to the token endpoint and decodes the pair.
func (o *OAuth) requestToken(ctx context.Context, form url.Values) (model.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Credential{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.http.Do(req)
	if err != nil {
		return model.Credential{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Credential{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.Credential{}, &driven.APIError{
			Op:     "token " + form.Get("grant_type"),
			Status: resp.StatusCode,
			Body:   truncate(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.Credential{}, fmt.Errorf("parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return model.Credential{}, fmt.Errorf("token response missing access or refresh token")
	}

	return model.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}, nil
}
