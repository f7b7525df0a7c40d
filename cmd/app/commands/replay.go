package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/posflow/posflow/internal/eventstore/domain"
	"github.com/posflow/posflow/internal/eventstore/usecase"
)

// replayEvent is one entry of the printed timeline.
type replayEvent struct {
	EventType  string          `json:"event_type"`
	Version    uint            `json:"version"`
	OccurredOn time.Time       `json:"occurred_on"`
	Data       json.RawMessage `json:"data"`
}

// replayOutput is the JSON document printed by the replay command.
type replayOutput struct {
	AggregateID   string        `json:"aggregate_id"`
	AggregateType string        `json:"aggregate_type"`
	Version       uint          `json:"version"`
	Events        []replayEvent `json:"events"`
}

// RunReplay folds an aggregate's upcasted history into a timeline and writes
// it to the given writer as indented JSON.
func RunReplay(
	ctx context.Context,
	store usecase.EventStore,
	logger *slog.Logger,
	writer io.Writer,
	aggregateID string,
	aggregateType string,
) error {
	logger.Info("replaying aggregate",
		slog.String("aggregate_id", aggregateID),
		slog.String("aggregate_type", aggregateType),
	)

	reducer := func(state any, event domain.StoredEvent) any {
		timeline, _ := state.([]replayEvent)
		return append(timeline, replayEvent{
			EventType:  event.EventType,
			Version:    event.Version,
			OccurredOn: event.OccurredOn,
			Data:       event.EventData,
		})
	}

	aggregate, err := store.Replay(ctx, aggregateID, reducer, []replayEvent{}, aggregateType)
	if err != nil {
		return fmt.Errorf("failed to replay aggregate: %w", err)
	}

	timeline, _ := aggregate.State.([]replayEvent)
	output := replayOutput{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       aggregate.Version,
		Events:        timeline,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to encode replay output: %w", err)
	}

	return nil
}
