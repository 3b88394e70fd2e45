// Package snapchat implements the SegmentGateway and OAuthClient ports
// against the Snapchat Marketing API.
package snapchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

const defaultBaseURL = "https://adsapi.snapchat.com/v1"

// maxErrorBody caps how much of an error response body is carried in an APIError.
const maxErrorBody = 512

// TokenSource supplies the current bearer token for a request. The token
// service implements it, so every call transparently uses a fresh token.
type TokenSource func(ctx context.Context) (string, error)

// Compile-time interface satisfaction check.
var _ driven.SegmentGateway = (*Client)(nil)

// Client implements the driven.SegmentGateway port over the Marketing API's
// REST surface. It is stateless: one method per remote operation, no retries.
// A non-success status becomes a *driven.APIError with the parsed body
// attached, since a partial remote mutation cannot be rolled back.
type Client struct {
	http    *http.Client
	baseURL string
	token   TokenSource
}

// NewClient creates a Client with an in-memory caching transport (ETag-based
// conditional requests for the listing calls).
func NewClient(token TokenSource) *Client {
	return &Client{
		http:    &http.Client{Transport: httpcache.NewMemoryCacheTransport()},
		baseURL: defaultBaseURL,
		token:   token,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, token TokenSource) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
	}
}

// Response envelopes. The API wraps each entity in a keyed sub-object.

type organizationsResponse struct {
	Organizations []struct {
		Organization struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"organization"`
	} `json:"organizations"`
}

type adAccountsResponse struct {
	AdAccounts []struct {
		AdAccount struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"adaccount"`
	} `json:"adaccounts"`
}

type segmentsResponse struct {
	Segments []struct {
		Segment struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"segment"`
	} `json:"segments"`
}

type segmentPayload struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	SourceType      string `json:"source_type"`
	RetentionInDays int    `json:"retention_in_days"`
}

type segmentsRequest struct {
	Segments []segmentPayload `json:"segments"`
}

type usersRequest struct {
	Users []userUpload `json:"users"`
}

type userUpload struct {
	Schema []string   `json:"schema"`
	Data   [][]string `json:"data"`
}

type usersResponse struct {
	Users []struct {
		User struct {
			NumberUploadedUsers int `json:"number_uploaded_users"`
		} `json:"user"`
	} `json:"users"`
}

// ListOrganizations returns the organizations the authenticated user belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var resp organizationsResponse
	if err := c.do(ctx, http.MethodGet, "/me/organizations", nil, &resp, "list organizations"); err != nil {
		return nil, err
	}

	orgs := make([]model.Organization, 0, len(resp.Organizations))
	for _, o := range resp.Organizations {
		orgs = append(orgs, model.Organization{ID: o.Organization.ID, Name: o.Organization.Name})
	}
	return orgs, nil
}

// ListAdAccounts returns the ad accounts under the given organization.
func (c *Client) ListAdAccounts(ctx context.Context, orgID string) ([]model.AdAccount, error) {
	var resp adAccountsResponse
	path := fmt.Sprintf("/organizations/%s/adaccounts", orgID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, "list ad accounts"); err != nil {
		return nil, err
	}

	accounts := make([]model.AdAccount, 0, len(resp.AdAccounts))
	for _, a := range resp.AdAccounts {
		accounts = append(accounts, model.AdAccount{ID: a.AdAccount.ID, Name: a.AdAccount.Name})
	}
	return accounts, nil
}

// ListSegments returns a name -> id mapping of the segments in the ad account.
// Names are unique per ad account on the platform side.
func (c *Client) ListSegments(ctx context.Context, adAccountID string) (map[string]string, error) {
	var resp segmentsResponse
	path := fmt.Sprintf("/adaccounts/%s/segments", adAccountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, "list segments"); err != nil {
		return nil, err
	}

	segments := make(map[string]string, len(resp.Segments))
	for _, s := range resp.Segments {
		segments[s.Segment.Name] = s.Segment.ID
	}
	return segments, nil
}

// CreateSegment creates a first-party segment and returns its assigned id.
func (c *Client) CreateSegment(ctx context.Context, adAccountID string, def model.SegmentDefinition) (string, error) {
	req := segmentsRequest{Segments: []segmentPayload{mapDefinition(def, "")}}

	var resp segmentsResponse
	path := fmt.Sprintf("/adaccounts/%s/segments", adAccountID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp, "create segment"); err != nil {
		return "", err
	}

	if len(resp.Segments) == 0 || resp.Segments[0].Segment.ID == "" {
		return "", fmt.Errorf("create segment %s: response contained no segment id", def.Name)
	}
	return resp.Segments[0].Segment.ID, nil
}

// UpdateSegment re-sends the segment's full metadata under an existing id.
// The PUT replaces name, description, and retention; it is not a merge.
func (c *Client) UpdateSegment(ctx context.Context, adAccountID, segmentID string, def model.SegmentDefinition) error {
	req := segmentsRequest{Segments: []segmentPayload{mapDefinition(def, segmentID)}}

	path := fmt.Sprintf("/adaccounts/%s/segments", adAccountID)
	return c.do(ctx, http.MethodPut, path, req, nil, "update segment")
}

// AddMembers uploads the given emails to the segment as SHA-256 hashes under
// the EMAIL_SHA256 schema. The platform never receives a raw address.
// Membership is additive-only; there is no call to remove a single member.
func (c *Client) AddMembers(ctx context.Context, segmentID string, emails []string) (int, error) {
	data := make([][]string, 0, len(emails))
	for _, email := range emails {
		data = append(data, []string{HashIdentity(email)})
	}
	req := usersRequest{Users: []userUpload{{Schema: []string{"EMAIL_SHA256"}, Data: data}}}

	var resp usersResponse
	path := fmt.Sprintf("/segments/%s/users", segmentID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp, "add members"); err != nil {
		return 0, err
	}

	uploaded := 0
	for _, u := range resp.Users {
		uploaded += u.User.NumberUploadedUsers
	}
	return uploaded, nil
}

// DeleteAllMembers removes every member from the segment.
func (c *Client) DeleteAllMembers(ctx context.Context, segmentID string) error {
	path := fmt.Sprintf("/segments/%s/all_users", segmentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "delete all members")
}

// DeleteSegment deletes the segment itself.
func (c *Client) DeleteSegment(ctx context.Context, segmentID string) error {
	path := fmt.Sprintf("/segments/%s", segmentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "delete segment")
}

// mapDefinition converts a domain definition to the wire payload. id is set
// only on updates.
func mapDefinition(def model.SegmentDefinition, id string) segmentPayload {
	retention := def.RetentionDays
	if retention == 0 {
		retention = 180
	}
	return segmentPayload{
		ID:              id,
		Name:            def.Name,
		Description:     def.Description,
		SourceType:      "FIRST_PARTY",
		RetentionInDays: retention,
	}
}

// do performs one authenticated request. body and out may be nil. A non-2xx
// status is returned as a *driven.APIError; it is never retried here.
func (c *Client) do(ctx context.Context, method, path string, body, out any, op string) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("%s: obtain token: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	slog.Debug("ad platform call", "op", op, "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &driven.APIError{Op: op, Status: resp.StatusCode, Body: truncate(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}

	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
