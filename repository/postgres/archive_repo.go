package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/repository"
)

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository returns a Postgres-backed implementation of ArchiveRepository.
func NewArchiveRepository(pool *pgxpool.Pool) repository.ArchiveRepository {
	return &archiveRepository{pool: pool}
}

func (r *archiveRepository) Create(ctx context.Context, summary *domain.ArchiveSummary, intervals []domain.ArchiveInterval) error {
	if summary == nil || summary.ID == "" {
		return domain.ErrInvalidPayload
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const summaryQuery = `
	INSERT INTO historical_entries (
		id, business_date, start_time, end_time,
		total_entries, total_exits,
		male_entries, female_entries, male_exits, female_exits,
		final_count
	)
	VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at
	`
	if err := tx.QueryRow(ctx, summaryQuery,
		summary.ID,
		summary.BusinessDate,
		summary.StartTime,
		summary.EndTime,
		summary.TotalEntries,
		summary.TotalExits,
		summary.MaleEntries,
		summary.FemaleEntries,
		summary.MaleExits,
		summary.FemaleExits,
		summary.FinalCount,
	).Scan(&summary.CreatedAt); err != nil {
		return err
	}

	const intervalQuery = `
	INSERT INTO historical_intervals (
		id, archive_id, position, interval_start, interval_end,
		male_entries, female_entries, male_exits, female_exits,
		entries, exits, running_total
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for i := range intervals {
		iv := &intervals[i]
		if iv.ID == "" {
			iv.ID = uuid.NewString()
		}
		iv.ArchiveID = summary.ID
		if _, err := tx.Exec(ctx, intervalQuery,
			iv.ID,
			iv.ArchiveID,
			i,
			iv.IntervalStart,
			iv.IntervalEnd,
			iv.MaleEntries,
			iv.FemaleEntries,
			iv.MaleExits,
			iv.FemaleExits,
			iv.Entries,
			iv.Exits,
			iv.RunningTotal,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *archiveRepository) List(ctx context.Context, limit, offset int) ([]domain.ArchiveSummary, error) {
	const query = `
	SELECT id, to_char(business_date, 'YYYY-MM-DD'), start_time, end_time,
	       total_entries, total_exits,
	       male_entries, female_entries, male_exits, female_exits,
	       final_count, created_at
	FROM historical_entries
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2
	`
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ArchiveSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, rows.Err()
}

func (r *archiveRepository) Get(ctx context.Context, id string) (*domain.ArchiveSummary, []domain.ArchiveInterval, error) {
	const summaryQuery = `
	SELECT id, to_char(business_date, 'YYYY-MM-DD'), start_time, end_time,
	       total_entries, total_exits,
	       male_entries, female_entries, male_exits, female_exits,
	       final_count, created_at
	FROM historical_entries
	WHERE id = $1
	`
	summary, err := scanSummary(r.pool.QueryRow(ctx, summaryQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrArchiveNotFound
		}
		return nil, nil, err
	}

	const intervalQuery = `
	SELECT id, archive_id, interval_start, interval_end,
	       male_entries, female_entries, male_exits, female_exits,
	       entries, exits, running_total
	FROM historical_intervals
	WHERE archive_id = $1
	ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, intervalQuery, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var intervals []domain.ArchiveInterval
	for rows.Next() {
		var iv domain.ArchiveInterval
		if err := rows.Scan(
			&iv.ID,
			&iv.ArchiveID,
			&iv.IntervalStart,
			&iv.IntervalEnd,
			&iv.MaleEntries,
			&iv.FemaleEntries,
			&iv.MaleExits,
			&iv.FemaleExits,
			&iv.Entries,
			&iv.Exits,
			&iv.RunningTotal,
		); err != nil {
			return nil, nil, err
		}
		intervals = append(intervals, iv)
	}
	return summary, intervals, rows.Err()
}

func scanSummary(row scanner) (*domain.ArchiveSummary, error) {
	var summary domain.ArchiveSummary
	if err := row.Scan(
		&summary.ID,
		&summary.BusinessDate,
		&summary.StartTime,
		&summary.EndTime,
		&summary.TotalEntries,
		&summary.TotalExits,
		&summary.MaleEntries,
		&summary.FemaleEntries,
		&summary.MaleExits,
		&summary.FemaleExits,
		&summary.FinalCount,
		&summary.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}
