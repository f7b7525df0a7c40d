package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/posflow/posflow/internal/database"
	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

// MySQLSnapshotRepository implements snapshot persistence for MySQL.
// Uses BINARY(16) for UUID storage with transaction support via
// database.GetTx().
type MySQLSnapshotRepository struct {
	db *sql.DB
}

// NewMySQLSnapshotRepository creates a new MySQL snapshot repository instance.
func NewMySQLSnapshotRepository(db *sql.DB) *MySQLSnapshotRepository {
	return &MySQLSnapshotRepository{db: db}
}

// Insert persists a new snapshot.
func (r *MySQLSnapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO snapshots (id, aggregate_id, aggregate_type, version, state, metadata, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := snapshot.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal snapshot id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		snapshot.AggregateID,
		snapshot.AggregateType,
		snapshot.Version,
		snapshot.State,
		nullableJSON(snapshot.Metadata),
		snapshot.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert snapshot")
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for the aggregate.
func (r *MySQLSnapshotRepository) GetLatest(
	ctx context.Context,
	aggregateID, aggregateType string,
) (*domain.Snapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, version, state, metadata, created_at
			  FROM snapshots
			  WHERE aggregate_id = ? AND aggregate_type = ?
			  ORDER BY version DESC, created_at DESC
			  LIMIT 1`

	snapshot, err := scanMySQLSnapshot(querier.QueryRowContext(ctx, query, aggregateID, aggregateType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest snapshot")
	}
	return snapshot, nil
}

// List retrieves every snapshot for the aggregate, newest first.
func (r *MySQLSnapshotRepository) List(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.Snapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, version, state, metadata, created_at
			  FROM snapshots
			  WHERE aggregate_id = ? AND aggregate_type = ?
			  ORDER BY version DESC, created_at DESC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var snapshots []domain.Snapshot
	for rows.Next() {
		var snapshot domain.Snapshot
		var idBytes []byte
		var metadata sql.Null[[]byte]

		err := rows.Scan(
			&idBytes,
			&snapshot.AggregateID,
			&snapshot.AggregateType,
			&snapshot.Version,
			&snapshot.State,
			&metadata,
			&snapshot.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan snapshot")
		}

		if err := snapshot.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal snapshot id")
		}
		if metadata.Valid {
			snapshot.Metadata = metadata.V
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate snapshots")
	}
	return snapshots, nil
}

// DeleteByIDs removes the given snapshots, returning how many were deleted.
func (r *MySQLSnapshotRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	querier := database.GetTx(ctx, r.db)

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		idBytes, err := id.MarshalBinary()
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to marshal snapshot id")
		}
		placeholders[i] = "?"
		args[i] = idBytes
	}

	query := `DELETE FROM snapshots WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete snapshots")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read deleted snapshot count")
	}
	return int(deleted), nil
}

// scanMySQLSnapshot reads a single snapshot row, unmarshaling the BINARY(16) id.
func scanMySQLSnapshot(row *sql.Row) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	var idBytes []byte
	var metadata sql.Null[[]byte]

	err := row.Scan(
		&idBytes,
		&snapshot.AggregateID,
		&snapshot.AggregateType,
		&snapshot.Version,
		&snapshot.State,
		&metadata,
		&snapshot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := snapshot.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	if metadata.Valid {
		snapshot.Metadata = metadata.V
	}
	return &snapshot, nil
}
