package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// Report summarizes a reconciliation pass. Failed counts segments whose pass
// was aborted partway; their earlier steps are not rolled back, and a re-run
// is safe because every step is idempotent or additive.
type Report struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Failed  int
}

// SyncService reconciles the configured segment definitions against the ad
// platform and records the outcome locally. Segments are processed in
// configuration order, each independently: a failure logs and skips the rest
// of that segment only.
type SyncService struct {
	gateway     driven.SegmentGateway
	store       driven.SegmentStore
	defs        []model.SegmentDefinition
	adAccountID string // default account for definitions that name none
}

// NewSyncService creates a SyncService over the given definitions.
func NewSyncService(gateway driven.SegmentGateway, store driven.SegmentStore, adAccountID string, defs []model.SegmentDefinition) *SyncService {
	return &SyncService{
		gateway:     gateway,
		store:       store,
		defs:        defs,
		adAccountID: adAccountID,
	}
}

// SyncAll creates or updates every configured segment remotely, pushes the
// full desired member set, and records the remote ids locally. The remote
// listing is fetched once per ad account; a listing failure aborts the pass,
// since create-vs-update cannot be decided without it.
func (s *SyncService) SyncAll(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	listings := make(map[string]map[string]string)
	for _, def := range s.defs {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		acct := s.accountFor(def)
		remote, ok := listings[acct]
		if !ok {
			var err error
			remote, err = s.gateway.ListSegments(ctx, acct)
			if err != nil {
				return rep, fmt.Errorf("list remote segments for account %s: %w", acct, err)
			}
			listings[acct] = remote
		}

		if err := s.syncSegment(ctx, acct, def, remote, &rep); err != nil {
			slog.Error("segment sync failed", "segment", def.Name, "error", err)
			rep.Failed++
		}
	}

	slog.Info("sync pass complete",
		"segments", len(s.defs),
		"created", rep.Created,
		"updated", rep.Updated,
		"failed", rep.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return rep, nil
}

// syncSegment drives one definition from desired to synced: resolve the
// remote id (update when the name already exists, create otherwise), re-send
// the entire desired member set, then persist membership locally. The member
// re-send is deliberately additive and undiffed; the platform ignores
// already-present hashes.
func (s *SyncService) syncSegment(ctx context.Context, acct string, def model.SegmentDefinition, remote map[string]string, rep *Report) error {
	members, err := s.store.MembersMatching(ctx, def.MemberQuery)
	if err != nil {
		return fmt.Errorf("resolve members: %w", err)
	}

	id, exists := remote[def.Name]
	if exists {
		// The update replaces segment metadata wholesale, it is not a merge.
		if err := s.gateway.UpdateSegment(ctx, acct, id, def); err != nil {
			return fmt.Errorf("update remote segment %s: %w", id, err)
		}
		rep.Updated++
		slog.Info("segment updated", "segment", def.Name, "id", id)
	} else {
		id, err = s.gateway.CreateSegment(ctx, acct, def)
		if err != nil {
			return fmt.Errorf("create remote segment: %w", err)
		}
		rep.Created++
		slog.Info("segment created", "segment", def.Name, "id", id)
	}

	// An empty desired set is a valid segment; only the member call is skipped.
	if len(members) > 0 {
		emails := make([]string, 0, len(members))
		for _, m := range members {
			emails = append(emails, m.Email)
		}

		uploaded, err := s.gateway.AddMembers(ctx, id, emails)
		if err != nil {
			return fmt.Errorf("add members to segment %s: %w", id, err)
		}
		slog.Info("members pushed", "segment", def.Name, "desired", len(emails), "uploaded", uploaded)
	}

	if err := s.store.RecordRemoteSegment(ctx, id, def.Name, members); err != nil {
		return fmt.Errorf("record segment %s locally: %w", id, err)
	}

	return nil
}

// DeleteAll deletes every configured segment remotely and locally. Remote
// deletion precedes local deletion so a local record never points at a
// remote id that no longer exists; when any remote step fails, local state
// is left untouched and the segment stays synced.
func (s *SyncService) DeleteAll(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	listings := make(map[string]map[string]string)
	for _, def := range s.defs {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		acct := s.accountFor(def)
		remote, ok := listings[acct]
		if !ok {
			var err error
			remote, err = s.gateway.ListSegments(ctx, acct)
			if err != nil {
				return rep, fmt.Errorf("list remote segments for account %s: %w", acct, err)
			}
			listings[acct] = remote
		}

		id, known := remote[def.Name]
		if !known {
			slog.Warn("no remote segment to delete", "segment", def.Name)
			rep.Skipped++
			continue
		}

		if err := s.gateway.DeleteAllMembers(ctx, id); err != nil {
			slog.Error("delete remote members failed", "segment", def.Name, "id", id, "error", err)
			rep.Failed++
			continue
		}

		if err := s.gateway.DeleteSegment(ctx, id); err != nil {
			slog.Error("delete remote segment failed", "segment", def.Name, "id", id, "error", err)
			rep.Failed++
			continue
		}

		if err := s.store.DeleteRemoteSegment(ctx, id); err != nil {
			slog.Error("delete local segment failed", "segment", def.Name, "id", id, "error", err)
			rep.Failed++
			continue
		}

		rep.Deleted++
		slog.Info("segment deleted", "segment", def.Name, "id", id)
	}

	slog.Info("delete pass complete",
		"segments", len(s.defs),
		"deleted", rep.Deleted,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return rep, nil
}

func (s *SyncService) accountFor(def model.SegmentDefinition) string {
	if def.AdAccountID != "" {
		return def.AdAccountID
	}
	return s.adAccountID
}
