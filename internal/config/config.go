// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ericfisherdev/segsync/internal/application"
	"github.com/ericfisherdev/segsync/internal/domain/model"
)

// Credential store kinds selectable via SEGSYNC_CREDENTIAL_STORE.
const (
	StoreFile = "file"
	StoreDB   = "db"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	DBPath          string
	CredentialStore string
	CredentialPath  string
	SecretKey       []byte // 32-byte AES key, required for the db store

	AdAccountID      string // empty means resolve via organizations listing
	RefreshThreshold time.Duration
	Segments         []model.SegmentDefinition
	SeedCount        int
}

// Load reads configuration from the environment (after loading a .env file
// when present) and returns a validated Config. OAuth client settings are
// required; everything else has a default. SEGSYNC_SEGMENTS is a
// comma-separated list of name:query pairs defining the desired segments in
// reconciliation order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	clientID := os.Getenv("SEGSYNC_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("SEGSYNC_CLIENT_ID is required")
	}
	clientSecret := os.Getenv("SEGSYNC_CLIENT_SECRET")
	if clientSecret == "" {
		return nil, fmt.Errorf("SEGSYNC_CLIENT_SECRET is required")
	}
	redirectURI := os.Getenv("SEGSYNC_REDIRECT_URI")
	if redirectURI == "" {
		return nil, fmt.Errorf("SEGSYNC_REDIRECT_URI is required")
	}

	dbPath := "segsync.db"
	if v, ok := os.LookupEnv("SEGSYNC_DB_PATH"); ok {
		dbPath = v
	}

	credStore := StoreFile
	if v, ok := os.LookupEnv("SEGSYNC_CREDENTIAL_STORE"); ok {
		if v != StoreFile && v != StoreDB {
			return nil, fmt.Errorf("SEGSYNC_CREDENTIAL_STORE must be %q or %q, got %q", StoreFile, StoreDB, v)
		}
		credStore = v
	}

	credPath := "credentials.txt"
	if v, ok := os.LookupEnv("SEGSYNC_CREDENTIAL_PATH"); ok {
		credPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("SEGSYNC_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("SEGSYNC_SECRET_KEY must be 64 hex characters (32 bytes)")
		}
		secretKey = key
	}
	if credStore == StoreDB && secretKey == nil {
		return nil, fmt.Errorf("SEGSYNC_SECRET_KEY is required when SEGSYNC_CREDENTIAL_STORE=db")
	}

	threshold := application.DefaultRefreshThreshold
	if v, ok := os.LookupEnv("SEGSYNC_REFRESH_THRESHOLD"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("SEGSYNC_REFRESH_THRESHOLD has invalid duration %q", v)
		}
		threshold = parsed
	}

	segmentsSpec := "Alex Segment:alex,Brad Segment:brad"
	if v, ok := os.LookupEnv("SEGSYNC_SEGMENTS"); ok {
		segmentsSpec = v
	}
	segments, err := parseSegments(segmentsSpec)
	if err != nil {
		return nil, fmt.Errorf("SEGSYNC_SEGMENTS: %w", err)
	}

	seedCount := 10
	if v, ok := os.LookupEnv("SEGSYNC_SEED_COUNT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("SEGSYNC_SEED_COUNT has invalid count %q", v)
		}
		seedCount = parsed
	}

	return &Config{
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		RedirectURI:      redirectURI,
		DBPath:           dbPath,
		CredentialStore:  credStore,
		CredentialPath:   credPath,
		SecretKey:        secretKey,
		AdAccountID:      os.Getenv("SEGSYNC_AD_ACCOUNT_ID"),
		RefreshThreshold: threshold,
		Segments:         segments,
		SeedCount:        seedCount,
	}, nil
}

// parseSegments parses "name:query" pairs. Names must be unique: the
// reconciliation engine assumes at most one definition per segment name.
func parseSegments(spec string) ([]model.SegmentDefinition, error) {
	var defs []model.SegmentDefinition
	seen := make(map[string]bool)

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, query, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		query = strings.TrimSpace(query)
		if !ok || name == "" || query == "" {
			return nil, fmt.Errorf("malformed pair %q: expected name:query", pair)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate segment name %q", name)
		}
		seen[name] = true

		defs = append(defs, model.SegmentDefinition{
			Name:        name,
			Description: fmt.Sprintf("Users matching %q", query),
			MemberQuery: query,
		})
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no segment definitions")
	}

	return defs, nil
}
