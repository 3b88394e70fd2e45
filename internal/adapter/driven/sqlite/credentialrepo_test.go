package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

var testKey = []byte("0123456789abcdef0123456789abcdef") // 32 bytes

func TestCredentialRepo_Load_NoSession(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, driven.ErrNoSession)
}

func TestCredentialRepo_SaveLoad_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cred := model.Credential{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		IssuedAt:     issued,
	}
	require.NoError(t, repo.Save(ctx, cred))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-abc", got.AccessToken)
	assert.Equal(t, "refresh-xyz", got.RefreshToken)
	assert.True(t, got.IssuedAt.Equal(issued))
}

func TestCredentialRepo_Save_Overwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, model.Credential{
		AccessToken: "old-access", RefreshToken: "old-refresh", IssuedAt: t0,
	}))
	require.NoError(t, repo.Save(ctx, model.Credential{
		AccessToken: "new-access", RefreshToken: "new-refresh", IssuedAt: t0.Add(30 * time.Minute),
	}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, "new-refresh", got.RefreshToken)
	assert.True(t, got.IssuedAt.After(t0))
}

func TestCredentialRepo_ValueIsEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Credential{
		AccessToken: "secret-access", RefreshToken: "secret-refresh", IssuedAt: time.Now().UTC(),
	}))

	var raw string
	err := db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials WHERE slot = 1`).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-access")
	assert.NotContains(t, raw, "secret-refresh")
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, ErrEncryptionKeyNotSet)

	err = repo.Save(ctx, model.Credential{AccessToken: "a", RefreshToken: "r", IssuedAt: time.Now()})
	assert.ErrorIs(t, err, ErrEncryptionKeyNotSet)
}
