package usecase

import (
	"context"
	"fmt"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
)

// PublishFaultsUseCase queues fault-history records for the indexing worker.
type PublishFaultsUseCase struct {
	queue ports.FaultQueue
}

func NewPublishFaultsUseCase(queue ports.FaultQueue) *PublishFaultsUseCase {
	return &PublishFaultsUseCase{queue: queue}
}

// Publish defaults blank fields, skips records without an id and returns how many were queued.
func (uc *PublishFaultsUseCase) Publish(ctx context.Context, records []domain.FaultRecord) (int, error) {
	published := 0
	for _, rec := range prepareRecords(records) {
		if err := uc.queue.PublishFaultRecord(ctx, rec); err != nil {
			return published, fmt.Errorf("publish fault record %s: %w", rec.ID, err)
		}
		published++
	}
	return published, nil
}

func prepareRecords(records []domain.FaultRecord) []domain.FaultRecord {
	out := make([]domain.FaultRecord, 0, len(records))
	for _, rec := range records {
		rec = rec.WithDefaults()
		if rec.ID == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}
