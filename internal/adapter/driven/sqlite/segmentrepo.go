package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SegmentStore = (*SegmentRepo)(nil)

// SegmentRepo is the SQLite implementation of the SegmentStore port interface.
// Each operation runs in its own transaction; there is no enclosing
// transaction across a reconciliation pass.
type SegmentRepo struct {
	db *DB
}

// NewSegmentRepo creates a new SegmentRepo backed by the given DB.
func NewSegmentRepo(db *DB) *SegmentRepo {
	return &SegmentRepo{db: db}
}

// SeedMembers inserts users keyed by unique email. Rows whose email already
// exists are skipped, never updated. Returns the number of rows inserted.
func (r *SegmentRepo) SeedMembers(ctx context.Context, users []model.User) (int, error) {
	const query = `
		INSERT INTO users (username, email)
		SELECT ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE email = ?)`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	var inserted int
	for _, u := range users {
		result, err := tx.ExecContext(ctx, query, u.Username, u.Email, u.Email)
		if err != nil {
			return 0, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("check rows affected: %w", err)
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}

	return inserted, nil
}

// MembersMatching returns users whose username contains the fragment,
// case-insensitively, ordered by id.
func (r *SegmentRepo) MembersMatching(ctx context.Context, fragment string) ([]model.User, error) {
	const query = `
		SELECT id, username, email FROM users
		WHERE LOWER(username) LIKE '%' || LOWER(?) || '%'
		ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, fragment)
	if err != nil {
		return nil, fmt.Errorf("query members matching %q: %w", fragment, err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// RecordRemoteSegment upserts the segment row and inserts membership rows
// idempotently. Re-recording the same segment with the same members is a no-op.
func (r *SegmentRepo) RecordRemoteSegment(ctx context.Context, id, name string, members []model.User) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record segment %s: %w", id, err)
	}
	defer tx.Rollback()

	const segmentQuery = `INSERT OR IGNORE INTO segments (segment_id, segment_name) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, segmentQuery, id, name); err != nil {
		return fmt.Errorf("record segment %s: %w", id, err)
	}

	const memberQuery = `INSERT OR IGNORE INTO segment_membership (user_id, segment_id) VALUES (?, ?)`
	for _, m := range members {
		if _, err := tx.ExecContext(ctx, memberQuery, m.ID, id); err != nil {
			return fmt.Errorf("record membership user=%d segment=%s: %w", m.ID, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record segment %s: %w", id, err)
	}

	return nil
}

// DeleteRemoteSegment removes membership rows for the segment, then the
// segment row. Children before parent, one transaction.
func (r *SegmentRepo) DeleteRemoteSegment(ctx context.Context, id string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete segment %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_membership WHERE segment_id = ?`, id); err != nil {
		return fmt.Errorf("delete membership for segment %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE segment_id = ?`, id); err != nil {
		return fmt.Errorf("delete segment %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete segment %s: %w", id, err)
	}

	return nil
}

// Members returns the users recorded as members of the segment, ordered by id.
func (r *SegmentRepo) Members(ctx context.Context, segmentID string) ([]model.User, error) {
	const query = `
		SELECT u.id, u.username, u.email
		FROM users u
		JOIN segment_membership m ON m.user_id = u.id
		WHERE m.segment_id = ?
		ORDER BY u.id`

	rows, err := r.db.Reader.QueryContext(ctx, query, segmentID)
	if err != nil {
		return nil, fmt.Errorf("query members of segment %s: %w", segmentID, err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return users, nil
}

// ListRemoteSegments returns all locally recorded segments ordered by name.
func (r *SegmentRepo) ListRemoteSegments(ctx context.Context) ([]model.RemoteSegment, error) {
	const query = `SELECT segment_id, segment_name FROM segments ORDER BY segment_name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []model.RemoteSegment
	for rows.Next() {
		var s model.RemoteSegment
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	return segments, nil
}
