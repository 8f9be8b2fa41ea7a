package domain

import "strings"

// UnrestrictedScope is the ship value that disables ship filtering.
const UnrestrictedScope = "All"

type EquipmentCategory string

const (
	EquipmentSteeringGearPump   EquipmentCategory = "SteeringGearPump"
	EquipmentEmergencyGenerator EquipmentCategory = "EmergencyGenerator"
	EquipmentMainGenerator      EquipmentCategory = "MainGenerator"
	EquipmentCoolingPump        EquipmentCategory = "CoolingPump"
	EquipmentHydraulicPump      EquipmentCategory = "HydraulicPump"
	EquipmentHVACSystem         EquipmentCategory = "HVACSystem"
	EquipmentMainEngine         EquipmentCategory = "MainEngine"
	EquipmentCompressor         EquipmentCategory = "Compressor"
	EquipmentBreakerPanel       EquipmentCategory = "BreakerPanel"
	EquipmentBatteryBank        EquipmentCategory = "BatteryBank"
	EquipmentGenerator          EquipmentCategory = "Generator"
	EquipmentUnknown            EquipmentCategory = "Unknown"
)

// FaultQuery is the normalized form of one incoming fault report.
type FaultQuery struct {
	RawText          string            `json:"raw_text"`
	NormalizedText   string            `json:"normalized_text"`
	DisplayText      string            `json:"display_text"`
	Scope            string            `json:"scope,omitempty"`
	Equipment        EquipmentCategory `json:"inferred_equipment"`
	EquipmentAliases []string          `json:"equipment_aliases,omitempty"`
}

// IsUnrestrictedScope reports whether scope leaves search unfiltered by ship.
func IsUnrestrictedScope(scope string) bool {
	scope = strings.TrimSpace(scope)
	return scope == "" || strings.EqualFold(scope, UnrestrictedScope)
}

// ScopeLabel returns the scope as shown to callers.
func ScopeLabel(scope string) string {
	if IsUnrestrictedScope(scope) {
		return UnrestrictedScope
	}
	return strings.TrimSpace(scope)
}

// SearchFilter is a conjunction of metadata predicates. Empty fields are not applied.
type SearchFilter struct {
	Equipment []string
	Ship      string
}

func NewSearchFilter(aliases []string, scope string) SearchFilter {
	filter := SearchFilter{}
	if len(aliases) > 0 {
		filter.Equipment = append([]string(nil), aliases...)
	}
	if !IsUnrestrictedScope(scope) {
		filter.Ship = strings.TrimSpace(scope)
	}
	return filter
}

func (f SearchFilter) IsEmpty() bool {
	return len(f.Equipment) == 0 && f.Ship == ""
}

// RetrievedRecord is one historical fault returned by similarity search.
type RetrievedRecord struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Equipment  string  `json:"equipment"`
	FaultText  string  `json:"fault"`
	Cause      string  `json:"cause"`
	Resolution string  `json:"resolution"`
	Ship       string  `json:"ship,omitempty"`
}

// FaultRecord is a fault-history row as ingested into the index.
type FaultRecord struct {
	ID         string `json:"id"`
	Equipment  string `json:"equipment"`
	Fault      string `json:"fault"`
	Cause      string `json:"cause"`
	Resolution string `json:"resolution"`
	Ship       string `json:"ship,omitempty"`
}

// WithDefaults fills blank descriptive fields with the fault-history placeholders.
func (r FaultRecord) WithDefaults() FaultRecord {
	r.ID = strings.TrimSpace(r.ID)
	r.Equipment = defaultIfBlank(r.Equipment, "Unknown Equipment")
	r.Fault = defaultIfBlank(r.Fault, "Unknown Fault")
	r.Cause = defaultIfBlank(r.Cause, "Unknown Cause")
	r.Resolution = defaultIfBlank(r.Resolution, "Not specified")
	r.Ship = strings.TrimSpace(r.Ship)
	return r
}

// EmbeddingText is the text embedded for a record at ingestion time.
func (r FaultRecord) EmbeddingText() string {
	return r.Equipment + " - " + r.Fault + " - " + r.Cause + " - " + r.Resolution
}

func defaultIfBlank(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return fallback
	}
	return v
}
