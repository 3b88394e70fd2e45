package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/segsync/internal/domain/model"
)

// ErrNoSession is returned by CredentialStore.Load when no credential has
// ever been persisted. Callers dispatch on it with errors.Is to decide
// between the first-run authorization-code flow and a refresh.
var ErrNoSession = errors.New("no stored credential: authorization required")

// CredentialStore defines the driven port for durable credential persistence.
// The store holds at most one credential; Save always overwrites.
type CredentialStore interface {
	// Load returns the persisted credential, or ErrNoSession when none exists.
	Load(ctx context.Context) (*model.Credential, error)

	// Save persists the credential, replacing any previous one.
	Save(ctx context.Context, cred model.Credential) error
}
