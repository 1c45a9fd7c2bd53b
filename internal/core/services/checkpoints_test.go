package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven/mocks"
)

func threeTiers() (*mocks.MockCheckpointBackend, *mocks.MockCheckpointBackend, *mocks.MockCheckpointBackend, *CheckpointService) {
	local := mocks.NewMockCheckpointBackend("local", false)
	cache := mocks.NewMockCheckpointBackend("cache", false)
	durable := mocks.NewMockCheckpointBackend("durable", true)
	return local, cache, durable, NewCheckpointService(nil, local, cache, durable)
}

func TestSaveCheckpointWritesAllTiers(t *testing.T) {
	local, cache, durable, svc := threeTiers()
	ctx := context.Background()

	cp := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	if err := svc.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	for _, tier := range []*mocks.MockCheckpointBackend{local, cache, durable} {
		got, err := tier.Get(ctx, "inst-1", "delta")
		if err != nil {
			t.Fatalf("tier %s missing checkpoint: %v", tier.TierName, err)
		}
		if got.Cursor != "cursor-1" {
			t.Errorf("tier %s: expected cursor-1, got %s", tier.TierName, got.Cursor)
		}
	}
}

func TestSaveCheckpointValidation(t *testing.T) {
	_, _, _, svc := threeTiers()
	err := svc.SaveCheckpoint(context.Background(), &domain.SyncCheckpoint{InstanceID: "inst-1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSaveCheckpointCacheFailureIsBestEffort(t *testing.T) {
	_, cache, durable, svc := threeTiers()
	cache.SaveErr = errors.New("redis down")

	cp := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	if err := svc.SaveCheckpoint(context.Background(), cp); err != nil {
		t.Fatalf("expected cache failure swallowed, got %v", err)
	}
	if durable.SaveCount() != 1 {
		t.Errorf("expected durable write, got %d", durable.SaveCount())
	}
}

func TestSaveCheckpointDurableFailureReturned(t *testing.T) {
	_, _, durable, svc := threeTiers()
	durable.SaveErr = errors.New("postgres down")

	cp := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	if err := svc.SaveCheckpoint(context.Background(), cp); err == nil {
		t.Fatal("expected error when durable tier fails")
	}
}

func TestGetCheckpointBackfillsUpperTiers(t *testing.T) {
	local, cache, durable, svc := threeTiers()
	ctx := context.Background()

	// Simulate a cold start: only the durable tier has the record
	seed := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	seed.SetMeta(domain.MetaDeltaLink, "link-1")
	if err := durable.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.GetCheckpoint(ctx, "inst-1", "delta")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if got.Cursor != "cursor-1" {
		t.Errorf("expected cursor-1, got %s", got.Cursor)
	}

	// Both faster tiers now hold the record
	if local.Len() != 1 {
		t.Error("expected local tier backfilled")
	}
	if cache.Len() != 1 {
		t.Error("expected cache tier backfilled")
	}
}

func TestGetCheckpointSkipsBrokenTier(t *testing.T) {
	_, cache, durable, svc := threeTiers()
	ctx := context.Background()

	cache.GetErr = errors.New("redis down")
	seed := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	if err := durable.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.GetCheckpoint(ctx, "inst-1", "delta")
	if err != nil {
		t.Fatalf("expected broken tier skipped, got %v", err)
	}
	if got.Cursor != "cursor-1" {
		t.Errorf("expected cursor-1, got %s", got.Cursor)
	}
}

func TestGetCheckpointMiss(t *testing.T) {
	_, _, _, svc := threeTiers()
	_, err := svc.GetCheckpoint(context.Background(), "inst-1", "delta")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearCheckpointAllTiers(t *testing.T) {
	local, cache, durable, svc := threeTiers()
	ctx := context.Background()

	cp := domain.NewCheckpoint("inst-1", "delta", "cursor-1")
	if err := svc.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	if err := svc.ClearCheckpoint(ctx, "inst-1", "delta"); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	for _, tier := range []*mocks.MockCheckpointBackend{local, cache, durable} {
		if tier.Len() != 0 {
			t.Errorf("tier %s still holds checkpoints", tier.TierName)
		}
	}
}

func TestClearAllCheckpointsScopedToInstance(t *testing.T) {
	_, _, durable, svc := threeTiers()
	ctx := context.Background()

	for _, resource := range []string{"delta", "gmail:a@x.com", "calendar:primary"} {
		if err := svc.SaveCheckpoint(ctx, domain.NewCheckpoint("inst-1", resource, "c")); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}
	}
	if err := svc.SaveCheckpoint(ctx, domain.NewCheckpoint("inst-2", "delta", "c")); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	if err := svc.ClearAllCheckpoints(ctx, "inst-1"); err != nil {
		t.Fatalf("ClearAllCheckpoints: %v", err)
	}

	if durable.Len() != 1 {
		t.Errorf("expected only inst-2 checkpoint left, got %d", durable.Len())
	}
	if _, err := svc.GetCheckpoint(ctx, "inst-2", "delta"); err != nil {
		t.Errorf("inst-2 checkpoint should survive: %v", err)
	}
}

func TestHistoryIDRoundTrip(t *testing.T) {
	_, _, _, svc := threeTiers()
	ctx := context.Background()

	got, err := svc.GetHistoryID(ctx, "inst-1", "user@example.com")
	if err != nil {
		t.Fatalf("GetHistoryID: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty history ID before save, got %q", got)
	}

	if err := svc.SaveHistoryID(ctx, "inst-1", "user@example.com", "99001", 50); err != nil {
		t.Fatalf("SaveHistoryID: %v", err)
	}
	got, err = svc.GetHistoryID(ctx, "inst-1", "user@example.com")
	if err != nil {
		t.Fatalf("GetHistoryID: %v", err)
	}
	if got != "99001" {
		t.Errorf("expected 99001, got %q", got)
	}

	// Processed counts accumulate across saves
	if err := svc.SaveHistoryID(ctx, "inst-1", "user@example.com", "99050", 25); err != nil {
		t.Fatalf("SaveHistoryID: %v", err)
	}
	cp, err := svc.GetCheckpoint(ctx, "inst-1", "gmail:user@example.com")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if cp.ProcessedCount != 75 {
		t.Errorf("expected cumulative count 75, got %d", cp.ProcessedCount)
	}
}

func TestTypedHelpersUseDistinctResources(t *testing.T) {
	_, _, _, svc := threeTiers()
	ctx := context.Background()

	if err := svc.SaveDeltaLink(ctx, "inst-1", "drive:changes", "delta-link", 1); err != nil {
		t.Fatalf("SaveDeltaLink: %v", err)
	}
	if err := svc.SaveSyncToken(ctx, "inst-1", "primary", "sync-token", 1); err != nil {
		t.Fatalf("SaveSyncToken: %v", err)
	}
	if err := svc.SavePageToken(ctx, "inst-1", "contacts", "page-token", 1); err != nil {
		t.Fatalf("SavePageToken: %v", err)
	}

	link, _ := svc.GetDeltaLink(ctx, "inst-1", "drive:changes")
	if link != "delta-link" {
		t.Errorf("expected delta-link, got %q", link)
	}
	token, _ := svc.GetSyncToken(ctx, "inst-1", "primary")
	if token != "sync-token" {
		t.Errorf("expected sync-token, got %q", token)
	}
	page, _ := svc.GetPageToken(ctx, "inst-1", "contacts")
	if page != "page-token" {
		t.Errorf("expected page-token, got %q", page)
	}
}
