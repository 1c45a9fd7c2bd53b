package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// CheckpointService provides durable, resumable cursors per (instance,
// resource) over an ordered list of storage tiers: typically a
// process-local map, a shared cache, and a durable store. Reads walk the
// tiers top-down and backfill faster tiers on a miss; saves write through
// every tier but only a durable-tier failure fails the call.
//
// Consistency across tiers is eventual: cache staleness after a crash is
// bounded by the cache TTL, and a cold start with an empty local map
// always falls through to the durable store.
type CheckpointService struct {
	tiers  []driven.CheckpointBackend
	logger *slog.Logger
}

// NewCheckpointService creates a checkpoint service over the given tiers,
// ordered fastest first. At least one tier must be durable for saves to
// mean anything, but the same structure works with 1, 2, or 3 tiers.
func NewCheckpointService(logger *slog.Logger, tiers ...driven.CheckpointBackend) *CheckpointService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointService{tiers: tiers, logger: logger}
}

// GetCheckpoint retrieves the checkpoint for (instance, resource),
// consulting tiers top-down. A hit on a lower tier backfills every tier
// above it before returning. Returns domain.ErrNotFound if no tier has it.
func (s *CheckpointService) GetCheckpoint(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error) {
	for i, tier := range s.tiers {
		cp, err := tier.Get(ctx, instanceID, resource)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			// A broken tier must not mask a deeper hit
			s.logger.Warn("checkpoint tier read failed",
				"tier", tier.Name(),
				"instance_id", instanceID,
				"resource", resource,
				"error", err,
			)
			continue
		}

		for _, upper := range s.tiers[:i] {
			if err := upper.Save(ctx, cp.Clone()); err != nil {
				s.logger.Warn("checkpoint backfill failed",
					"tier", upper.Name(),
					"instance_id", instanceID,
					"error", err,
				)
			}
		}
		return cp, nil
	}

	return nil, domain.ErrNotFound
}

// SaveCheckpoint writes the checkpoint through all tiers as one atomic
// record per tier. Cache-tier writes are best-effort; the durable-tier
// write is awaited so a crash immediately after return cannot silently
// lose the checkpoint.
func (s *CheckpointService) SaveCheckpoint(ctx context.Context, cp *domain.SyncCheckpoint) error {
	if cp.InstanceID == "" || cp.Resource == "" {
		return fmt.Errorf("%w: checkpoint requires instance_id and resource", domain.ErrInvalidInput)
	}
	cp.UpdatedAt = time.Now()

	var durableErr error
	for _, tier := range s.tiers {
		err := tier.Save(ctx, cp.Clone())
		if err == nil {
			continue
		}
		if tier.Durable() {
			durableErr = fmt.Errorf("save checkpoint to %s: %w", tier.Name(), err)
		} else {
			s.logger.Warn("checkpoint cache write failed",
				"tier", tier.Name(),
				"instance_id", cp.InstanceID,
				"resource", cp.Resource,
				"error", err,
			)
		}
	}
	return durableErr
}

// ClearCheckpoint removes one resource's checkpoint from every tier.
func (s *CheckpointService) ClearCheckpoint(ctx context.Context, instanceID, resource string) error {
	var errs []error
	for _, tier := range s.tiers {
		if err := tier.Delete(ctx, instanceID, resource); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ClearAllCheckpoints removes every checkpoint for an instance from every
// tier. Used on full-resync requests and instance teardown.
func (s *CheckpointService) ClearAllCheckpoints(ctx context.Context, instanceID string) error {
	var errs []error
	for _, tier := range s.tiers {
		if err := tier.DeleteAll(ctx, instanceID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// The typed helpers below are thin wrappers over the generic get/save that
// route provider-specific tokens through the metadata bag, keeping the
// store itself protocol-agnostic.

// GetHistoryID returns the saved Gmail history ID for a mailbox, or empty
// string if none is saved.
func (s *CheckpointService) GetHistoryID(ctx context.Context, instanceID, mailbox string) (string, error) {
	cp, err := s.GetCheckpoint(ctx, instanceID, "gmail:"+mailbox)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cp.Meta(domain.MetaHistoryID), nil
}

// SaveHistoryID records the Gmail history ID for a mailbox.
func (s *CheckpointService) SaveHistoryID(ctx context.Context, instanceID, mailbox, historyID string, processed int) error {
	cp := s.loadOrNew(ctx, instanceID, "gmail:"+mailbox, historyID)
	cp.Cursor = historyID
	cp.SetMeta(domain.MetaHistoryID, historyID)
	cp.ProcessedCount += processed
	return s.SaveCheckpoint(ctx, cp)
}

// GetDeltaLink returns the saved Microsoft Graph delta link for a resource.
func (s *CheckpointService) GetDeltaLink(ctx context.Context, instanceID, resource string) (string, error) {
	cp, err := s.GetCheckpoint(ctx, instanceID, resource)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cp.Meta(domain.MetaDeltaLink), nil
}

// SaveDeltaLink records the Microsoft Graph delta link for a resource.
func (s *CheckpointService) SaveDeltaLink(ctx context.Context, instanceID, resource, deltaLink string, processed int) error {
	cp := s.loadOrNew(ctx, instanceID, resource, deltaLink)
	cp.Cursor = deltaLink
	cp.SetMeta(domain.MetaDeltaLink, deltaLink)
	cp.ProcessedCount += processed
	return s.SaveCheckpoint(ctx, cp)
}

// GetSyncToken returns the saved Google Calendar sync token for a calendar.
func (s *CheckpointService) GetSyncToken(ctx context.Context, instanceID, calendarID string) (string, error) {
	cp, err := s.GetCheckpoint(ctx, instanceID, "calendar:"+calendarID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cp.Meta(domain.MetaSyncToken), nil
}

// SaveSyncToken records the Google Calendar sync token for a calendar.
func (s *CheckpointService) SaveSyncToken(ctx context.Context, instanceID, calendarID, token string, processed int) error {
	cp := s.loadOrNew(ctx, instanceID, "calendar:"+calendarID, token)
	cp.Cursor = token
	cp.SetMeta(domain.MetaSyncToken, token)
	cp.ProcessedCount += processed
	return s.SaveCheckpoint(ctx, cp)
}

// GetPageToken returns the saved pagination token for a resource.
func (s *CheckpointService) GetPageToken(ctx context.Context, instanceID, resource string) (string, error) {
	cp, err := s.GetCheckpoint(ctx, instanceID, resource)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cp.Meta(domain.MetaPageToken), nil
}

// SavePageToken records the pagination token for a resource.
func (s *CheckpointService) SavePageToken(ctx context.Context, instanceID, resource, token string, processed int) error {
	cp := s.loadOrNew(ctx, instanceID, resource, token)
	cp.Cursor = token
	cp.SetMeta(domain.MetaPageToken, token)
	cp.ProcessedCount += processed
	return s.SaveCheckpoint(ctx, cp)
}

func (s *CheckpointService) loadOrNew(ctx context.Context, instanceID, resource, cursor string) *domain.SyncCheckpoint {
	cp, err := s.GetCheckpoint(ctx, instanceID, resource)
	if err != nil {
		return domain.NewCheckpoint(instanceID, resource, cursor)
	}
	return cp
}
