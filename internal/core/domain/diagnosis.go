package domain

import (
	"fmt"
	"strings"
	"time"
)

type Confidence string

const (
	ConfidenceHigh    Confidence = "High"
	ConfidenceMedium  Confidence = "Medium"
	ConfidenceLow     Confidence = "Low"
	ConfidenceUnknown Confidence = "Unknown"
)

// ParseConfidence maps any casing of High/Medium/Low to its level; everything else is Unknown.
func ParseConfidence(v string) Confidence {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceUnknown
	}
}

type Provenance string

const (
	ProvenanceAI   Provenance = "ai"
	ProvenanceMock Provenance = "mock"
)

type RootCause struct {
	Cause       string     `json:"cause"`
	Probability Confidence `json:"probability"`
}

// DiagnosisResult is the structured diagnosis produced by the generator or the fallback.
type DiagnosisResult struct {
	Diagnosis            string      `json:"diagnosis"`
	Confidence           Confidence  `json:"confidence"`
	RootCauses           []RootCause `json:"root_causes"`
	ResolutionPlan       []string    `json:"resolution_plan"`
	PreventativeActions  []string    `json:"preventative_actions"`
	Disclaimer           string      `json:"disclaimer"`
	Provenance           Provenance  `json:"provenance"`
	SimilarFaultsContext string      `json:"similar_faults_context"`
	FallbackReason       string      `json:"fallback_reason,omitempty"`
}

// Diagnosis is the response returned to callers: the result plus request metadata.
// Title is the display-cased fault text used as the report heading.
type Diagnosis struct {
	TraceID          string            `json:"trace_id"`
	Ship             string            `json:"ship"`
	Title            string            `json:"title"`
	FaultDescription string            `json:"fault_description"`
	Equipment        EquipmentCategory `json:"equipment"`
	CreatedAt        time.Time         `json:"created_at"`
	DiagnosisResult
}

// Markdown renders the structured result as the free-text report used by text clients.
func (d Diagnosis) Markdown() string {
	var b strings.Builder
	if d.Title != "" {
		fmt.Fprintf(&b, "### %s\n\n", d.Title)
	}
	fmt.Fprintf(&b, "**Diagnosis:** %s\n", d.Diagnosis)
	fmt.Fprintf(&b, "**Confidence:** %s\n", d.Confidence)
	if len(d.RootCauses) > 0 {
		causes := make([]string, 0, len(d.RootCauses))
		for _, rc := range d.RootCauses {
			causes = append(causes, fmt.Sprintf("%s (%s)", rc.Cause, rc.Probability))
		}
		fmt.Fprintf(&b, "**Cause:** %s\n", strings.Join(causes, "; "))
	}
	if len(d.ResolutionPlan) > 0 {
		b.WriteString("**Resolution:**\n")
		for i, step := range d.ResolutionPlan {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	if len(d.PreventativeActions) > 0 {
		b.WriteString("**Prevention:**\n")
		for _, action := range d.PreventativeActions {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}
	if d.SimilarFaultsContext != "" {
		fmt.Fprintf(&b, "\n**Similar Past Faults:**\n%s\n", d.SimilarFaultsContext)
	}
	if !IsUnrestrictedScope(d.Ship) {
		fmt.Fprintf(&b, "\n**Ship:** %s\n", d.Ship)
	}
	switch d.Provenance {
	case ProvenanceMock:
		fmt.Fprintf(&b, "\n**Status:** Mock response (%s)\n", d.FallbackReason)
	default:
		b.WriteString("\n**Status:** AI-powered response\n")
	}
	if d.Disclaimer != "" {
		fmt.Fprintf(&b, "\n_%s_\n", d.Disclaimer)
	}
	return b.String()
}

// DiagnosisLogEntry is the audit record persisted for every diagnosis.
type DiagnosisLogEntry struct {
	TraceID        string            `json:"trace_id"`
	Ship           string            `json:"ship"`
	Equipment      EquipmentCategory `json:"equipment"`
	Provenance     Provenance        `json:"provenance"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	FaultText      string            `json:"fault_text"`
	Result         DiagnosisResult   `json:"result"`
	CreatedAt      time.Time         `json:"created_at"`
}

// User is an authenticated caller; Ship is the scope used for filtering.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Ship     string `json:"ship"`
}
