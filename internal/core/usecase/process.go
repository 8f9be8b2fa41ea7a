package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
)

const defaultIndexBatchSize = 64

// IndexFaultsUseCase embeds fault-history records and upserts them into the fault index.
type IndexFaultsUseCase struct {
	embedder  ports.Embedder
	index     ports.FaultIndex
	batchSize int
}

func NewIndexFaultsUseCase(embedder ports.Embedder, index ports.FaultIndex, batchSize int) *IndexFaultsUseCase {
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexFaultsUseCase{
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
	}
}

// Index returns the number of records written. Records without an id are skipped.
func (uc *IndexFaultsUseCase) Index(ctx context.Context, records []domain.FaultRecord) (int, error) {
	prepared := prepareRecords(records)
	indexed := 0
	for start := 0; start < len(prepared); start += uc.batchSize {
		end := min(start+uc.batchSize, len(prepared))
		if err := uc.indexBatch(ctx, prepared[start:end]); err != nil {
			return indexed, err
		}
		indexed += end - start
	}
	return indexed, nil
}

// IndexRecord handles one queued record; used as the worker's subscription handler.
func (uc *IndexFaultsUseCase) IndexRecord(ctx context.Context, record domain.FaultRecord) error {
	n, err := uc.Index(ctx, []domain.FaultRecord{record})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "index fault record", errors.New("record has no id"))
	}
	return nil
}

func (uc *IndexFaultsUseCase) indexBatch(ctx context.Context, batch []domain.FaultRecord) error {
	texts := make([]string, 0, len(batch))
	for _, rec := range batch {
		texts = append(texts, rec.EmbeddingText())
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.WrapError(domain.ErrEmbeddingUnavailable, "embed fault records", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(domain.ErrEmbeddingUnavailable, "embed fault records",
			fmt.Errorf("got %d vectors for %d records", len(vectors), len(batch)))
	}

	if err := uc.index.Upsert(ctx, batch, vectors); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "upsert fault records", err)
	}
	return nil
}
