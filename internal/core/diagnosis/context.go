package diagnosis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

const (
	// NoSimilarFaults is the rendered context when retrieval found nothing.
	// The generator treats it as absent context.
	NoSimilarFaults = "No similar historical faults were found"

	MaxContextRecords = 5
)

// ContextBlock is the grounding evidence handed to the generator.
type ContextBlock struct {
	Records []domain.RetrievedRecord
	Text    string
}

func (b ContextBlock) Empty() bool {
	return len(b.Records) == 0
}

// AssembleContext orders records by descending score, keeps at most MaxContextRecords
// and renders one line per record.
func AssembleContext(records []domain.RetrievedRecord) ContextBlock {
	if len(records) == 0 {
		return ContextBlock{Text: NoSimilarFaults}
	}

	ordered := append([]domain.RetrievedRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})
	if len(ordered) > MaxContextRecords {
		ordered = ordered[:MaxContextRecords]
	}

	lines := make([]string, 0, len(ordered))
	for idx, rec := range ordered {
		lines = append(lines, fmt.Sprintf(
			"%d. equipment: %s, fault: %s, cause: %s, resolution: %s (similarity %.2f)",
			idx+1,
			oneLine(rec.Equipment),
			oneLine(rec.FaultText),
			oneLine(rec.Cause),
			oneLine(rec.Resolution),
			rec.Score,
		))
	}
	return ContextBlock{Records: ordered, Text: strings.Join(lines, "\n")}
}

func oneLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
