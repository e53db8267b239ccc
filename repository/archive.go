package repository

import (
	"context"

	"github.com/doorcount/backend/domain"
)

type ArchiveRepository interface {
	// Create persists the summary and its interval breakdown atomically.
	Create(ctx context.Context, summary *domain.ArchiveSummary, intervals []domain.ArchiveInterval) error
	List(ctx context.Context, limit, offset int) ([]domain.ArchiveSummary, error)
	Get(ctx context.Context, id string) (*domain.ArchiveSummary, []domain.ArchiveInterval, error)
}
