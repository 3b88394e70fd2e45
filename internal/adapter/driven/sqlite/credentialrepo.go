package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// ErrEncryptionKeyNotSet is returned by CredentialRepo operations when the
// repo was constructed without an encryption key.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SEGSYNC_SECRET_KEY")

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// The token pair is encrypted with AES-256-GCM before write and decrypted
// after read. A single slot row holds the one live credential; Save always
// replaces it.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Load returns the persisted credential, or driven.ErrNoSession when the
// slot is empty.
func (r *CredentialRepo) Load(ctx context.Context) (*model.Credential, error) {
	if r.key == nil {
		return nil, ErrEncryptionKeyNotSet
	}

	const query = `SELECT value, issued_at FROM credentials WHERE slot = 1`
	var encrypted string
	var issuedAt int64
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&encrypted, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}

	access, refresh, ok := strings.Cut(plaintext, "\n")
	if !ok {
		return nil, errors.New("load credential: malformed token pair")
	}

	return &model.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		IssuedAt:     time.Unix(issuedAt, 0).UTC(),
	}, nil
}

// Save persists the credential, replacing any previous one.
func (r *CredentialRepo) Save(ctx context.Context, cred model.Credential) error {
	encrypted, err := r.encrypt(cred.AccessToken + "\n" + cred.RefreshToken)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO credentials (slot, value, issued_at) VALUES (1, ?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, encrypted, cred.IssuedAt.Unix()); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
