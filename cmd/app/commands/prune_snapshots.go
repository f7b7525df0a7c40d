package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/posflow/posflow/internal/eventstore/usecase"
)

// RunPruneSnapshots deletes old snapshots for an aggregate, keeping only the
// keep most recent (0 keeps the store default).
func RunPruneSnapshots(
	ctx context.Context,
	store usecase.EventStore,
	logger *slog.Logger,
	writer io.Writer,
	aggregateID string,
	aggregateType string,
	keep int,
) error {
	logger.Info("pruning snapshots",
		slog.String("aggregate_id", aggregateID),
		slog.String("aggregate_type", aggregateType),
		slog.Int("keep", keep),
	)

	deleted, err := store.PruneSnapshots(ctx, aggregateID, aggregateType, keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	fmt.Fprintf(writer, "Deleted %d snapshot(s) for %s/%s\n", deleted, aggregateType, aggregateID)
	return nil
}
