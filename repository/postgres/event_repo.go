package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns a Postgres-backed implementation of EventRepository.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Insert(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	if event == nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO entries (id, gender, kind, occurred_at, business_date, session_id, count_before_reset)
	VALUES ($1, $2, $3, COALESCE($4, NOW()), $5::date, $6, $7)
	RETURNING occurred_at
	`

	var occurredAt interface{}
	if !event.OccurredAt.IsZero() {
		occurredAt = event.OccurredAt
	}

	if err := r.pool.QueryRow(ctx, query,
		event.ID,
		event.Gender,
		event.Kind,
		occurredAt,
		event.BusinessDate,
		nullString(event.SessionID),
		event.CountBeforeReset,
	).Scan(&event.OccurredAt); err != nil {
		return nil, err
	}

	return event, nil
}

func (r *eventRepository) List(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	const query = `
	SELECT id, gender, kind, occurred_at, to_char(business_date, 'YYYY-MM-DD'),
	       COALESCE(session_id, ''), count_before_reset, COALESCE(archive_id::text, '')
	FROM entries
	WHERE ($1 = '' OR business_date = $1::date)
	  AND ($2 = '' OR archive_id::text = $2)
	  AND (NOT $3 OR archive_id IS NULL)
	ORDER BY occurred_at ASC
	LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query,
		filter.BusinessDate,
		filter.ArchiveID,
		filter.LiveOnly,
		clampLimit(filter.Limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *eventRepository) CountLive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM entries WHERE archive_id IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *eventRepository) TagForArchive(ctx context.Context, archiveID string) (int64, error) {
	const query = `UPDATE entries SET archive_id = $1 WHERE archive_id IS NULL`
	tag, err := r.pool.Exec(ctx, query, archiveID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *eventRepository) ClearArchiveTag(ctx context.Context, archiveID string) error {
	const query = `UPDATE entries SET archive_id = NULL WHERE archive_id = $1`
	_, err := r.pool.Exec(ctx, query, archiveID)
	return err
}

func (r *eventRepository) DeleteByArchive(ctx context.Context, archiveID string) (int64, error) {
	const query = `DELETE FROM entries WHERE archive_id = $1`
	tag, err := r.pool.Exec(ctx, query, archiveID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *eventRepository) PurgeCommitted(ctx context.Context) (int64, error) {
	const query = `
	DELETE FROM entries
	WHERE archive_id IS NOT NULL
	  AND archive_id IN (SELECT id FROM historical_entries)
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *eventRepository) ReclaimOrphans(ctx context.Context) (int64, error) {
	const query = `
	UPDATE entries
	SET archive_id = NULL
	WHERE archive_id IS NOT NULL
	  AND archive_id NOT IN (SELECT id FROM historical_entries)
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEvent(row scanner) (*domain.Event, error) {
	var event domain.Event
	if err := row.Scan(
		&event.ID,
		&event.Gender,
		&event.Kind,
		&event.OccurredAt,
		&event.BusinessDate,
		&event.SessionID,
		&event.CountBeforeReset,
		&event.ArchiveID,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
