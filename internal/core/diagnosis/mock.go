package diagnosis

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

//go:embed templates.yaml
var templatesYAML []byte

const (
	// ReasonNoCredentials marks a mock result produced because no provider is configured.
	ReasonNoCredentials = "no credentials configured"
	// ReasonGenerationFailedPrefix starts every reason produced by GenerationFailedReason.
	ReasonGenerationFailedPrefix = "generation service failed: "

	unknownFault    = "Unknown fault"
	maxReasonDetail = 50
)

// GenerationFailedReason builds the fallback reason for a failed provider call.
func GenerationFailedReason(err error) string {
	detail := "unknown error"
	if err != nil {
		detail = strings.Join(strings.Fields(err.Error()), " ")
	}
	if r := []rune(detail); len(r) > maxReasonDetail {
		detail = string(r[:maxReasonDetail])
	}
	return ReasonGenerationFailedPrefix + detail
}

type mockTemplate struct {
	Name       string   `yaml:"name"`
	AllOf      []string `yaml:"all_of"`
	AnyOf      []string `yaml:"any_of"`
	Diagnosis  string   `yaml:"diagnosis"`
	Confidence string   `yaml:"confidence"`
	RootCauses []struct {
		Cause       string `yaml:"cause"`
		Probability string `yaml:"probability"`
	} `yaml:"root_causes"`
	ResolutionPlan      []string `yaml:"resolution_plan"`
	PreventativeActions []string `yaml:"preventative_actions"`
}

func (t mockTemplate) matches(text string) bool {
	for _, kw := range t.AllOf {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(t.AnyOf) == 0 {
		return true
	}
	for _, kw := range t.AnyOf {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// MockGenerator is the deterministic keyword-template fallback. It makes no external calls.
type MockGenerator struct {
	templates []mockTemplate
}

func NewMockGenerator() *MockGenerator {
	var table struct {
		Templates []mockTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &table); err != nil {
		panic(fmt.Sprintf("load templates.yaml: %v", err))
	}
	if n := len(table.Templates); n == 0 || len(table.Templates[n-1].AllOf)+len(table.Templates[n-1].AnyOf) != 0 {
		panic("templates.yaml: last template must be a catch-all")
	}
	return &MockGenerator{templates: table.Templates}
}

// Generate always returns a complete mock-provenance result.
func (m *MockGenerator) Generate(faultText string, block ContextBlock, reason string) domain.DiagnosisResult {
	fault := strings.Join(strings.Fields(faultText), " ")
	if fault == "" {
		fault = unknownFault
	}
	lower := strings.ToLower(fault)

	tmpl := m.templates[len(m.templates)-1]
	for _, t := range m.templates {
		if t.matches(lower) {
			tmpl = t
			break
		}
	}

	result := domain.DiagnosisResult{
		Diagnosis:            strings.ReplaceAll(tmpl.Diagnosis, "{fault}", fault),
		Confidence:           domain.ParseConfidence(tmpl.Confidence),
		RootCauses:           make([]domain.RootCause, 0, len(tmpl.RootCauses)),
		ResolutionPlan:       append([]string{}, tmpl.ResolutionPlan...),
		PreventativeActions:  append([]string{}, tmpl.PreventativeActions...),
		Disclaimer:           DefaultDisclaimer,
		Provenance:           domain.ProvenanceMock,
		SimilarFaultsContext: block.Text,
		FallbackReason:       reason,
	}
	for _, rc := range tmpl.RootCauses {
		result.RootCauses = append(result.RootCauses, domain.RootCause{
			Cause:       rc.Cause,
			Probability: domain.ParseConfidence(rc.Probability),
		})
	}
	if result.SimilarFaultsContext == "" {
		result.SimilarFaultsContext = NoSimilarFaults
	}
	if result.FallbackReason == "" {
		result.FallbackReason = ReasonNoCredentials
	}
	return result
}
