package usecase

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

var statsRecords = []domain.FaultRecord{
	{ID: "F-1", Equipment: "Cooling Pump #2", Fault: "Low Pressure - Blocked filter"},
	{ID: "F-2", Equipment: "Emergency Generator", Fault: "Low Pressure - Blocked filter"},
	{ID: "F-3", Equipment: "Cooling Pump #2", Fault: "Leaking - Seal worn out"},
	{ID: "F-4", Equipment: " Emergency Generator ", Fault: "Overheat - Wiring fault"},
	{ID: "F-5", Equipment: "Battery Bank", Fault: ""},
	{ID: "F-6", Equipment: "", Fault: "Leaking - Seal worn out"},
}

func TestCountFaultsByEquipment(t *testing.T) {
	got := CountFaults(statsRecords, StatsByEquipment)
	want := []FrequencyCount{
		{Name: "Cooling Pump #2", Count: 2},
		{Name: "Emergency Generator", Count: 2},
		{Name: "Battery Bank", Count: 1},
		{Name: "Unknown Equipment", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("equipment counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCountFaultsByDescription(t *testing.T) {
	got := CountFaults(statsRecords, StatsByFault)
	want := []FrequencyCount{
		{Name: "Leaking - Seal worn out", Count: 2},
		{Name: "Low Pressure - Blocked filter", Count: 2},
		{Name: "Overheat - Wiring fault", Count: 1},
		{Name: "Unknown Fault", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fault counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCountFaultsEmptyInputReturnsEmptySlice(t *testing.T) {
	got := CountFaults(nil, StatsByEquipment)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestParseStatsDimension(t *testing.T) {
	for in, want := range map[string]StatsDimension{"equipment": StatsByEquipment, " Fault ": StatsByFault} {
		got, err := ParseStatsDimension(in)
		if err != nil || got != want {
			t.Fatalf("ParseStatsDimension(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStatsDimension("ship"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
