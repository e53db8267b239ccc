package repository

import (
	"context"

	"github.com/doorcount/backend/domain"
)

// EventFilter scopes event queries. Zero values mean "no constraint"; results
// are always ordered by occurred_at ascending.
type EventFilter struct {
	BusinessDate string
	ArchiveID    string
	LiveOnly     bool
	Limit        int
}

type EventRepository interface {
	Insert(ctx context.Context, event *domain.Event) (*domain.Event, error)
	List(ctx context.Context, filter EventFilter) ([]domain.Event, error)
	CountLive(ctx context.Context) (int, error)
	// TagForArchive stamps every live (untagged) row with the archive id and
	// returns how many rows were tagged.
	TagForArchive(ctx context.Context, archiveID string) (int64, error)
	// ClearArchiveTag reverts TagForArchive for an archive that failed to commit.
	ClearArchiveTag(ctx context.Context, archiveID string) error
	// DeleteByArchive removes rows stamped with the archive id. Idempotent.
	DeleteByArchive(ctx context.Context, archiveID string) (int64, error)
	// PurgeCommitted removes leftover rows whose archive summary already
	// exists, making an interrupted reset safe to retry.
	PurgeCommitted(ctx context.Context) (int64, error)
	// ReclaimOrphans clears tags that reference no archive summary, returning
	// rows abandoned by an interrupted reset to the live set.
	ReclaimOrphans(ctx context.Context) (int64, error)
}
