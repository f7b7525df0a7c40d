package usecase

import (
	"context"
	"iter"

	"github.com/posflow/posflow/internal/eventstore/domain"
)

// DefaultStreamBatchSize is the page size used by StreamEvents when none is
// given.
const DefaultStreamBatchSize = 100

// StreamEvents yields the aggregate's upcasted events in batches via offset
// pagination. The sequence is lazy: each page is fetched only when the
// consumer asks for it, and iteration stops on the first empty or short
// batch or when the consumer breaks out.
func (uc *eventStoreUseCase) StreamEvents(
	ctx context.Context,
	aggregateID, aggregateType string,
	batchSize int,
) iter.Seq2[[]domain.StoredEvent, error] {
	if batchSize <= 0 {
		batchSize = DefaultStreamBatchSize
	}

	return func(yield func([]domain.StoredEvent, error) bool) {
		offset := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := uc.eventRepo.GetPage(ctx, aggregateID, aggregateType, offset, batchSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}

			if !yield(uc.upcastAll(page), nil) {
				return
			}
			if len(page) < batchSize {
				return
			}
			offset += batchSize
		}
	}
}
