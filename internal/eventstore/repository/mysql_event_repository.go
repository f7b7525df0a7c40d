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

// MySQLEventRepository implements stored event persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via
// database.GetTx().
type MySQLEventRepository struct {
	db *sql.DB
}

// NewMySQLEventRepository creates a new MySQL event repository instance.
func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}

// Insert appends a stored event. A duplicate (aggregate_type, aggregate_id,
// version) maps to domain.ErrVersionConflict so the caller can retry.
func (r *MySQLEventRepository) Insert(ctx context.Context, event *domain.StoredEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO events (id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		event.EventData,
		nullableJSON(event.Metadata),
		event.Version,
		event.OccurredOn,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return apperrors.Wrap(err, "failed to insert event")
	}
	return nil
}

// MaxVersion returns the highest stored version for the aggregate, 0 if the
// aggregate has no events yet.
func (r *MySQLEventRepository) MaxVersion(
	ctx context.Context,
	aggregateType, aggregateID string,
) (uint, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COALESCE(MAX(version), 0)
			  FROM events
			  WHERE aggregate_type = ? AND aggregate_id = ?`

	var version uint
	if err := querier.QueryRowContext(ctx, query, aggregateType, aggregateID).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max version")
	}
	return version, nil
}

// GetByAggregate retrieves every event of an aggregate ascending by version.
// An empty aggregateType matches any type for the aggregate id.
func (r *MySQLEventRepository) GetByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = ? AND (? = '' OR aggregate_type = ?)
			  ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType, aggregateType)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events by aggregate")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEvents(rows)
}

// GetAfterVersion retrieves the aggregate's events with version strictly
// greater than version, ascending.
func (r *MySQLEventRepository) GetAfterVersion(
	ctx context.Context,
	aggregateID, aggregateType string,
	version uint,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = ? AND (? = '' OR aggregate_type = ?) AND version > ?
			  ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType, aggregateType, version)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events after version")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEvents(rows)
}

// GetByType retrieves events of one type across aggregates ascending by
// occurrence time, optionally bounded below by since.
func (r *MySQLEventRepository) GetByType(
	ctx context.Context,
	eventType string,
	since *time.Time,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE event_type = ? AND (? IS NULL OR occurred_on >= ?)
			  ORDER BY occurred_on ASC, version ASC`

	rows, err := querier.QueryContext(ctx, query, eventType, since, since)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events by type")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEvents(rows)
}

// GetPage retrieves one offset/limit page of an aggregate's events ascending
// by version. Used by streaming reads.
func (r *MySQLEventRepository) GetPage(
	ctx context.Context,
	aggregateID, aggregateType string,
	offset, limit int,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE aggregate_id = ? AND (? = '' OR aggregate_type = ?)
			  ORDER BY version ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType, aggregateType, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events page")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEvents(rows)
}

// ListForMigration retrieves the stored events matching a migration filter,
// ordered by aggregate then version so rewrites are deterministic.
func (r *MySQLEventRepository) ListForMigration(
	ctx context.Context,
	filter domain.MigrationFilter,
) ([]domain.StoredEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, occurred_on
			  FROM events
			  WHERE (? = '' OR aggregate_id = ?)
			    AND (? = '' OR aggregate_type = ?)
			    AND (? = 0 OR version < ?)
			  ORDER BY aggregate_type ASC, aggregate_id ASC, version ASC`

	rows, err := querier.QueryContext(
		ctx,
		query,
		filter.AggregateID, filter.AggregateID,
		filter.AggregateType, filter.AggregateType,
		filter.BeforeVersion, filter.BeforeVersion,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query events for migration")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEvents(rows)
}

// CountByAggregate returns the number of stored events for the aggregate.
func (r *MySQLEventRepository) CountByAggregate(
	ctx context.Context,
	aggregateID, aggregateType string,
) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*)
			  FROM events
			  WHERE aggregate_id = ? AND (? = '' OR aggregate_type = ?)`

	var count int
	if err := querier.QueryRowContext(ctx, query, aggregateID, aggregateType, aggregateType).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count events")
	}
	return count, nil
}

// UpdateData rewrites a stored event's payload and metadata in place. Only
// migrations are allowed to call this.
func (r *MySQLEventRepository) UpdateData(
	ctx context.Context,
	id uuid.UUID,
	eventData, metadata json.RawMessage,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE events
			  SET event_data = ?, metadata = ?
			  WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event id")
	}

	_, err = querier.ExecContext(ctx, query, eventData, nullableJSON(metadata), idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update event data")
	}
	return nil
}

// scanMySQLEvents reads stored events from rows, unmarshaling BINARY(16) ids.
func scanMySQLEvents(rows *sql.Rows) ([]domain.StoredEvent, error) {
	var events []domain.StoredEvent
	for rows.Next() {
		var event domain.StoredEvent
		var idBytes []byte
		var metadata sql.Null[[]byte]

		err := rows.Scan(
			&idBytes,
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

		if err := event.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal event id")
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

// isMySQLUniqueViolation checks if the error is a MySQL unique constraint violation
func isMySQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// MySQL: "Error 1062: Duplicate entry"
	return strings.Contains(errMsg, "duplicate entry") || strings.Contains(errMsg, "1062")
}
