package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

// StatsDimension selects the fault-history column a frequency count groups by.
type StatsDimension string

const (
	StatsByEquipment StatsDimension = "equipment"
	StatsByFault     StatsDimension = "fault"
)

func ParseStatsDimension(v string) (StatsDimension, error) {
	switch d := StatsDimension(strings.ToLower(strings.TrimSpace(v))); d {
	case StatsByEquipment, StatsByFault:
		return d, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse stats dimension",
			fmt.Errorf("unknown dimension %q (want equipment or fault)", v))
	}
}

type FrequencyCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountFaults tallies records by dimension, most frequent first with ties ordered by name.
// Blank values count under the fault-history placeholders.
func CountFaults(records []domain.FaultRecord, by StatsDimension) []FrequencyCount {
	totals := make(map[string]int)
	for _, r := range records {
		r = r.WithDefaults()
		key := r.Equipment
		if by == StatsByFault {
			key = r.Fault
		}
		totals[key]++
	}

	out := make([]FrequencyCount, 0, len(totals))
	for name, n := range totals {
		out = append(out, FrequencyCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
