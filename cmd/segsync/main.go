package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	fileadapter "github.com/ericfisherdev/segsync/internal/adapter/driven/file"
	"github.com/ericfisherdev/segsync/internal/adapter/driven/snapchat"
	sqliteadapter "github.com/ericfisherdev/segsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/segsync/internal/application"
	"github.com/ericfisherdev/segsync/internal/config"
	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"credential_store", cfg.CredentialStore,
		"refresh_threshold", cfg.RefreshThreshold,
		"segments", len(cfg.Segments),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	segmentStore := sqliteadapter.NewSegmentRepo(db)

	var credStore driven.CredentialStore
	switch cfg.CredentialStore {
	case config.StoreDB:
		credStore = sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	default:
		credStore = fileadapter.NewCredentialStore(cfg.CredentialPath)
	}

	oauth := snapchat.NewOAuth(snapchat.OAuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
	})

	stdin := bufio.NewReader(os.Stdin)
	tokenSvc := application.NewTokenService(credStore, oauth, promptForCode(stdin), cfg.RefreshThreshold)
	gateway := snapchat.NewClient(tokenSvc.AccessToken)

	// 6. Seed sample identities so every segment query matches someone.
	if cfg.SeedCount > 0 {
		for _, def := range cfg.Segments {
			inserted, err := segmentStore.SeedMembers(ctx, sampleUsers(def.MemberQuery, cfg.SeedCount))
			if err != nil {
				return fmt.Errorf("seed members for %q: %w", def.MemberQuery, err)
			}
			if inserted > 0 {
				slog.Info("sample identities seeded", "query", def.MemberQuery, "inserted", inserted)
			}
		}
	}

	// 7. Resolve the target ad account; first API call, so this also drives
	// authorization on a first run.
	adAccountID := cfg.AdAccountID
	if adAccountID == "" {
		adAccountID, err = resolveAdAccount(ctx, gateway)
		if err != nil {
			return err
		}
	}
	slog.Info("ad account resolved", "id", adAccountID)

	syncSvc := application.NewSyncService(gateway, segmentStore, adAccountID, cfg.Segments)

	// 8. Operator menu loop.
	return menuLoop(ctx, stdin, syncSvc)
}

// promptForCode returns a CodePrompt that shows the authorization URL and
// reads the one-time code from stdin.
func promptForCode(stdin *bufio.Reader) application.CodePrompt {
	return func(authorizeURL string) (string, error) {
		fmt.Println("Authorization required. Visit the following URL, approve access,")
		fmt.Println("then paste the code from the redirect URL below.")
		fmt.Println()
		fmt.Println("  " + authorizeURL)
		fmt.Println()
		fmt.Print("Code: ")

		line, err := stdin.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read authorization code: %w", err)
		}
		code := strings.TrimSpace(line)
		if code == "" {
			return "", fmt.Errorf("empty authorization code")
		}
		return code, nil
	}
}

// sampleUsers generates n identities for a member query: usernames query0..
// queryN-1 with matching example.com addresses.
func sampleUsers(query string, n int) []model.User {
	users := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, model.User{
			Username: fmt.Sprintf("%s%d", query, i),
			Email:    fmt.Sprintf("%s%d@example.com", query, i),
		})
	}
	return users
}

// resolveAdAccount picks the first ad account of the first organization the
// authenticated user belongs to. Set SEGSYNC_AD_ACCOUNT_ID to target a
// specific account instead.
func resolveAdAccount(ctx context.Context, gateway driven.SegmentGateway) (string, error) {
	orgs, err := gateway.ListOrganizations(ctx)
	if err != nil {
		return "", fmt.Errorf("list organizations: %w", err)
	}
	if len(orgs) == 0 {
		return "", fmt.Errorf("authenticated user belongs to no organizations")
	}

	accounts, err := gateway.ListAdAccounts(ctx, orgs[0].ID)
	if err != nil {
		return "", fmt.Errorf("list ad accounts for organization %s: %w", orgs[0].ID, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("organization %s (%s) has no ad accounts", orgs[0].Name, orgs[0].ID)
	}

	slog.Info("using first ad account", "organization", orgs[0].Name, "ad_account", accounts[0].Name)
	return accounts[0].ID, nil
}

// menuLoop runs the interactive operator menu until exit or signal.
func menuLoop(ctx context.Context, stdin *bufio.Reader, syncSvc *application.SyncService) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Println()
		fmt.Println("1) Synchronize segments")
		fmt.Println("2) Delete all segments")
		fmt.Println("3) Exit")
		fmt.Print("> ")

		line, err := stdin.ReadString('\n')
		if err != nil {
			// EOF or closed stdin: treat as exit.
			return nil
		}

		switch strings.TrimSpace(line) {
		case "1":
			rep, err := syncSvc.SyncAll(ctx)
			if err != nil {
				slog.Error("sync pass aborted", "error", err)
				continue
			}
			fmt.Printf("Created %d, updated %d, failed %d\n", rep.Created, rep.Updated, rep.Failed)
		case "2":
			rep, err := syncSvc.DeleteAll(ctx)
			if err != nil {
				slog.Error("delete pass aborted", "error", err)
				continue
			}
			fmt.Printf("Deleted %d, skipped %d, failed %d\n", rep.Deleted, rep.Skipped, rep.Failed)
		case "3":
			return nil
		default:
			fmt.Println("Enter 1, 2 or 3.")
		}
	}
}
