package repository

import (
	"context"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
)

// CandidateQuery selects media items for a batch run.
type CandidateQuery struct {
	// Limit < 0 means no limit.
	Limit  int
	Offset int
	// IncludeSynced also returns items that already have a committed record.
	IncludeSynced bool
}

// MediaLibrary resolves media items owned by the hosting application.
type MediaLibrary interface {
	// ListItemIDs returns candidate ids in ascending order.
	ListItemIDs(ctx context.Context, q CandidateQuery) ([]int64, error)
	// GetItem returns domain.ErrItemNotFound for unknown ids.
	GetItem(ctx context.Context, id int64) (*domain.MediaItem, error)
}

// SyncRecordStore persists SyncRecords. A missing record is reported as
// (nil, false, nil) so callers can tell "absent" from "present but false".
type SyncRecordStore interface {
	GetSyncRecord(ctx context.Context, itemID int64) (*domain.SyncRecord, bool, error)
	// SaveSyncRecord writes every field of the record in one commit.
	SaveSyncRecord(ctx context.Context, rec *domain.SyncRecord) error
	DeleteSyncRecord(ctx context.Context, itemID int64) error
	PurgeSyncRecords(ctx context.Context) (int64, error)
}

// MediaRepository is the full media library capability.
type MediaRepository interface {
	MediaLibrary
	SyncRecordStore
}
