// Package file implements the CredentialStore port as a plain text record on
// disk: issuance epoch-seconds, access token, refresh token, one per line.
// Absence of the file signals that no prior session exists.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore persists the single live credential to a text file.
// Writes replace the file atomically so a crash mid-write cannot leave a
// truncated record. There is no cross-process locking; concurrent processes
// sharing one store can race on refresh.
type CredentialStore struct {
	path string
}

// NewCredentialStore creates a store backed by the file at path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load reads the three-line record. Returns driven.ErrNoSession when the
// file does not exist.
func (s *CredentialStore) Load(ctx context.Context) (*model.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, driven.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file %s: %w", s.path, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		return nil, fmt.Errorf("credential file %s: expected 3 lines, got %d", s.path, len(lines))
	}

	issuedAt, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("credential file %s: parse issued_at: %w", s.path, err)
	}

	return &model.Credential{
		AccessToken:  strings.TrimSpace(lines[1]),
		RefreshToken: strings.TrimSpace(lines[2]),
		IssuedAt:     time.Unix(issuedAt, 0).UTC(),
	}, nil
}

// Save writes the three-line record, replacing any previous one atomically.
func (s *CredentialStore) Save(ctx context.Context, cred model.Credential) error {
	record := fmt.Sprintf("%d\n%s\n%s\n", cred.IssuedAt.Unix(), cred.AccessToken, cred.RefreshToken)

	if err := atomic.WriteFile(s.path, bytes.NewReader([]byte(record))); err != nil {
		return fmt.Errorf("write credential file %s: %w", s.path, err)
	}
	return nil
}
