package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/posflow/posflow/internal/database"
	apperrors "github.com/posflow/posflow/internal/errors"
	"github.com/posflow/posflow/internal/eventstore/domain"
)

// PostgreSQLSnapshotRepository implements snapshot persistence for PostgreSQL.
type PostgreSQLSnapshotRepository struct {
	db *sql.DB
}

// NewPostgreSQLSnapshotRepository creates a new PostgreSQL snapshot repository instance.
func NewPostgreSQLSnapshotRepository(db *sql.DB) *PostgreSQLSnapshotRepository {
	return &PostgreSQLSnapshotRepository{db: db}
}

// Insert persists a new snapshot.
func (r *PostgreSQLSnapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO snapshots (id, aggregate_id, aggregate_type, version, state, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		snapshot.ID,
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
func (r *PostgreSQLSnapshotRepository) GetLatest(
	ctx context.Context,
	aggregateID, aggregateType string,
) (*domain.Snapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, version, state, metadata, created_at
			  FROM snapshots
			  WHERE aggregate_id = $1 AND aggregate_type = $2
			  ORDER BY version DESC, created_at DESC
			  LIMIT 1`

	snapshot, err := scanSnapshot(querier.QueryRowContext(ctx, query, aggregateID, aggregateType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get latest snapshot")
	}
	return snapshot, nil
}

// List retrieves every snapshot for the aggregate, newest first.
func (r *PostgreSQLSnapshotRepository) List(
	ctx context.Context,
	aggregateID, aggregateType string,
) ([]domain.Snapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_id, aggregate_type, version, state, metadata, created_at
			  FROM snapshots
			  WHERE aggregate_id = $1 AND aggregate_type = $2
			  ORDER BY version DESC, created_at DESC`

	rows, err := querier.QueryContext(ctx, query, aggregateID, aggregateType)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var snapshots []domain.Snapshot
	for rows.Next() {
		var snapshot domain.Snapshot
		var metadata sql.Null[[]byte]

		err := rows.Scan(
			&snapshot.ID,
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
func (r *PostgreSQLSnapshotRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM snapshots WHERE id = ANY($1)`

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	result, err := querier.ExecContext(ctx, query, pq.Array(raw))
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete snapshots")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read deleted snapshot count")
	}
	return int(deleted), nil
}

// scanSnapshot reads a single snapshot row.
func scanSnapshot(row *sql.Row) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	var metadata sql.Null[[]byte]

	err := row.Scan(
		&snapshot.ID,
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
	if metadata.Valid {
		snapshot.Metadata = metadata.V
	}
	return &snapshot, nil
}
