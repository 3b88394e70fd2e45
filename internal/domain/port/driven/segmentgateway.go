package driven

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/segsync/internal/domain/model"
)

// APIError is a non-success response from the ad platform. Calls are not
// retried: a partial segment mutation on the remote side cannot be rolled
// back, so the parsed error body is reported upward instead.
type APIError struct {
	Op     string // which gateway operation failed
	Status int    // HTTP status code
	Body   string // response body, truncated by the adapter
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: ad platform returned %d: %s", e.Op, e.Status, e.Body)
}

// SegmentGateway defines the driven port for the ad platform's
// audience-management API. Every call carries the current bearer credential,
// supplied by the adapter's token source.
//
// Capability note: the platform exposes no member-removal primitive.
// Membership is additive-only; removing a member requires deleting the whole
// segment and recreating it. Callers must not assume add/remove symmetry.
type SegmentGateway interface {
	// ListOrganizations returns the organizations the authenticated user belongs to.
	ListOrganizations(ctx context.Context) ([]model.Organization, error)

	// ListAdAccounts returns the ad accounts under an organization.
	ListAdAccounts(ctx context.Context, orgID string) ([]model.AdAccount, error)

	// ListSegments returns a name -> id mapping of the segments in an ad account.
	ListSegments(ctx context.Context, adAccountID string) (map[string]string, error)

	// CreateSegment creates a segment and returns its platform-assigned id.
	CreateSegment(ctx context.Context, adAccountID string, def model.SegmentDefinition) (string, error)

	// UpdateSegment replaces the segment's metadata (name, description,
	// retention). This is a full replacement, not a merge.
	UpdateSegment(ctx context.Context, adAccountID, segmentID string, def model.SegmentDefinition) error

	// AddMembers pseudonymizes the given emails (lower-case, trim, SHA-256)
	// and uploads them to the segment. The platform never receives raw
	// addresses. Returns the platform's count of uploaded users.
	AddMembers(ctx context.Context, segmentID string, emails []string) (int, error)

	// DeleteAllMembers removes every member from the segment.
	DeleteAllMembers(ctx context.Context, segmentID string) error

	// DeleteSegment deletes the segment itself.
	DeleteSegment(ctx context.Context, segmentID string) error
}
