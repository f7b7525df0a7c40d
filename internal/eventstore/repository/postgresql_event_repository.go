// Package repository implements data persistence for the event store.
// Repositories support both PostgreSQL and MySQL over an append-only events
// table with a unique (aggregate_type, aggregate_id, version) constraint
// that serializes concurrent appends to the same aggregate.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/database"
	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

// PostgreSQLEventRepository implements stored event persistence for PostgreSQL.
type PostgreSQLEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLEventRepository creates a new PostgreSQL event repository instance.
func NewPostgreSQLEventRepository(db *sql.DB) *PostgreSQLEventRepository {
	return &PostgreSQLEventRepository{db: db}
}

// Insert appends a stored event. A duplicate (aggregate_type, aggregate_id,
// version) maps to domain.ErrVersionConflict so the caller can retry.
func (r *PostgreSQLEventRepository) Insert(ctx context.Context, event *domain.StoredEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO events (id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		event.EventData,
		nullableJSON(event.Metadata),
		event.Version,
		event.OccurredOn,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return apperrors.Wrap(err, "failed to insert event")
	}
	return nil
}

// MaxVersion returns the highest stored version for the aggregate, 0 if the
// aggregate has no events yet.
func (r *PostgreSQLEventRepository) MaxVersion(
	ctx context.Context,
	aggregateType, aggregateID string,
) (uint, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COALESCE(MAX(version), 0)
			  FROM events
			  WHERE aggregate_type = $1 AND aggregate_id = $2`

	var version uint
	if err := querier.QueryRowContext(ctx, query, aggregateType, aggregateID).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max version")
	}
	return version, nil
}

// GetByAggregate retrieves every event of an aggregate ascending by version.
// An empty aggregateType matches any type for the aggregate id.
func (r *PostgreSQLEventRepository) GetByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = $1 AND ($2 = '' OR aggregate_type = $2)
			  ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events by aggregate")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// GetAfterVersion retrieves the aggregate's events with version strictly
// greater than version, ascending.
func (r *PostgreSQLEventRepository) GetAfterVersion(
	ctx context.Context,
	aggregateID, aggregateType string,
	version uint,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = $1 AND ($2 = '' OR aggregate_type = $2) AND version > $3
			  ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType, version)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events after version")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// GetByType retrieves events of one type across aggregates ascending by
// occurrence time, optionally bounded below by since.
func (r *PostgreSQLEventRepository) GetByType(
	ctx context.Context,
	eventType string,
	since *time.Time,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE event_type = $1 AND ($2::timestamptz IS NULL OR occurred_on >= $2)
			  ORDER BY occurred_on ASC, version ASC`

	rows, err := querier.QueryContext(ctx, query, eventType, since)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events by type")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// GetPage retrieves one offset/limit page of an aggregate's events ascending
// by version. Used by streaming reads.
func (r *PostgreSQLEventRepository) GetPage(
	ctx context.Context,
	aggregateID, aggregateType string,
	offset, limit int,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = $1 AND ($2 = '' OR aggregate_type = $2)
			  ORDER BY version ASC
			  LIMIT $3 OFFSET $4`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events page")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// ListForMigration retrieves the stored events matching a migration filter,
// ordered by aggregate then version so rewrites are deterministic.
func (r *PostgreSQLEventRepository) ListForMigration(
	ctx context.Context,
	filter domain.MigrationFilter,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE ($1 = '' OR aggregate_id = $1)
			    AND ($2 = '' OR aggregate_type = $2)
			    AND ($3 = 0 OR version < $3)
			  ORDER BY aggregate_type ASC, aggregate_id ASC, version ASC`

	rows, err := querier.QueryContext(ctx, query, filter.AggregateID, filter.AggregateType, filter.BeforeVersion)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events for migration")
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// CountByAggregate returns the number of stored events for the aggregate.
func (r *PostgreSQLEventRepository) CountByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*)
			  FROM events
			  WHERE aggregate_id = $1 AND ($2 = '' OR aggregate_type = $2)`

	var count int
	if err := querier.QueryRowContext(ctx, query, aggregateID, aggregateType).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count events")
	}
	return count, nil
}

// UpdateData rewrites a stored event's payload and metadata in place. Only
// migrations are allowed to call this.
func (r *PostgreSQLEventRepository) UpdateData(
	ctx context.Context,
	id uuid.UUID,
	eventData, metadata json.RawMessage,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE events
			  SET event_data = $1, metadata = $2
			  WHERE id = $3`

	_, err := querier.ExecContext(ctx, query, eventData, nullableJSON(metadata), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update event data")
	}
	return nil
}

// scanEvents reads stored events from rows.
func scanEvents(rows *sql.Rows) ([]domain.StoredEvent, error) {
	var events []domain.StoredEvent
	for rows.Next() {
		var event domain.StoredEvent
		var metadata sql.Null[[]byte]

		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&event.EventData,
			&metadata,
			&event.Version,
			&event.OccurredOn,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan event")
		}
		if metadata.Valid {
			event.Metadata = metadata.V
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate events")
	}
	return events, nil
}

// nullableJSON maps empty metadata to NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// PostgreSQL: "duplicate key value violates unique constraint" or "pq: duplicate key"
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}
