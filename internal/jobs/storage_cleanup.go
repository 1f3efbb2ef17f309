package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/glossa-works/glossa/internal/telemetry"
)

// StorageSegmentRepository is the persistence surface the storage sweep
// needs.
type StorageSegmentRepository interface {
	// ListOrphanStorageSourceIDs returns source ids holding storage
	// segments that no translation references anymore.
	ListOrphanStorageSourceIDs(ctx context.Context) ([]string, error)

	// DeleteStorageSegments removes all storage-segment versions of a
	// source and returns the number of rows deleted.
	DeleteStorageSegments(ctx context.Context, sourceID string) (int64, error)
}

// StorageSweeper reclaims leftover storage segments. A reference source
// accumulates order-0 working rows while a multi-source translation is in
// flight; once the translation's source links are gone (the target was
// deleted), those rows serve nothing and are deleted here. The aligned
// annotations written against those rows are kept.
type StorageSweeper struct {
	repo StorageSegmentRepository
}

func NewStorageSweeper(repo StorageSegmentRepository) *StorageSweeper {
	return &StorageSweeper{repo: repo}
}

// Sweep deletes orphaned storage segments, one source at a time. A delete
// failure for one source is reported and skipped so the rest still get
// reclaimed.
func (s *StorageSweeper) Sweep(ctx context.Context) error {
	ids, err := s.repo.ListOrphanStorageSourceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list orphan storage segments: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	log.Printf("storage sweep: %d orphaned sources", len(ids))

	for _, id := range ids {
		deleted, err := s.repo.DeleteStorageSegments(ctx, id)
		if err != nil {
			log.Printf("storage sweep: delete failed for source %s: %v", id, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		log.Printf("storage sweep: deleted %d versions for source %s", deleted, id)
	}

	return nil
}
