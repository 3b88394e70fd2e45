package driven

import (
	"context"

	"github.com/ericfisherdev/segsync/internal/domain/model"
)

// SegmentStore defines the driven port for local segment and membership
// persistence. All operations commit independently; there is no enclosing
// transaction across a reconciliation pass, so a crash mid-pass can leave a
// mix of synced and unsynced segments. Every operation is idempotent to make
// re-running from that mixed state safe.
type SegmentStore interface {
	// SeedMembers inserts identities keyed by unique email, skipping rows
	// whose email already exists. Existing rows are never updated. Returns
	// the number of rows actually inserted.
	SeedMembers(ctx context.Context, users []model.User) (int, error)

	// MembersMatching returns users whose username contains the fragment,
	// case-insensitively, ordered by id.
	MembersMatching(ctx context.Context, fragment string) ([]model.User, error)

	// RecordRemoteSegment upserts the segment row (no-op when the id is
	// already present) and idempotently inserts membership rows for members.
	RecordRemoteSegment(ctx context.Context, id, name string, members []model.User) error

	// DeleteRemoteSegment removes membership rows for the segment, then the
	// segment row, in that order.
	DeleteRemoteSegment(ctx context.Context, id string) error

	// Members returns the users recorded as members of the segment, ordered by id.
	Members(ctx context.Context, segmentID string) ([]model.User, error)

	// ListRemoteSegments returns all locally recorded segments ordered by name.
	ListRemoteSegments(ctx context.Context) ([]model.RemoteSegment, error)
}
