package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

func TestIndexFaultsEmbedsInBatches(t *testing.T) {
	embedder := &embedderFake{}
	index := &indexFake{}
	uc := NewIndexFaultsUseCase(embedder, index, 2)

	records := []domain.FaultRecord{
		{ID: "1", Equipment: "Cooling Pump #1", Fault: "Overheat", Cause: "Clogged filter", Resolution: "Cleaned"},
		{ID: "2"},
		{ID: ""},
		{ID: "3"},
	}
	n, err := uc.Index(context.Background(), records)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 indexed, got %d", n)
	}
	if embedder.calls != 2 {
		t.Fatalf("expected 2 embedding batches, got %d", embedder.calls)
	}
	if len(index.upserted) != 3 || len(index.vectors) != 3 {
		t.Fatalf("expected 3 upserted records and vectors, got %d/%d", len(index.upserted), len(index.vectors))
	}
	if index.upserted[0].EmbeddingText() != "Cooling Pump #1 - Overheat - Clogged filter - Cleaned" {
		t.Fatalf("unexpected embedding text %q", index.upserted[0].EmbeddingText())
	}
}

func TestIndexFaultsRejectsVectorCountMismatch(t *testing.T) {
	embedder := &embedderFake{vectors: [][]float32{{1}}}
	uc := NewIndexFaultsUseCase(embedder, &indexFake{}, 10)

	_, err := uc.Index(context.Background(), []domain.FaultRecord{{ID: "1"}, {ID: "2"}})
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestIndexFaultsWrapsIndexError(t *testing.T) {
	uc := NewIndexFaultsUseCase(&embedderFake{}, &indexFake{err: errors.New("boom")}, 10)

	_, err := uc.Index(context.Background(), []domain.FaultRecord{{ID: "1"}})
	if !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestIndexRecordRejectsMissingID(t *testing.T) {
	uc := NewIndexFaultsUseCase(&embedderFake{}, &indexFake{}, 10)

	if err := uc.IndexRecord(context.Background(), domain.FaultRecord{ID: " "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := uc.IndexRecord(context.Background(), domain.FaultRecord{ID: "F-9"}); err != nil {
		t.Fatalf("IndexRecord() error = %v", err)
	}
}
