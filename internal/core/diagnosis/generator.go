package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
)

const (
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.2

	DefaultDisclaimer = "This diagnosis is advisory. Verify on site and follow the vessel's maintenance procedures before acting."
)

type GeneratorOption func(*Generator)

func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// Generator asks the language model for a structured diagnosis and validates the reply.
type Generator struct {
	model       ports.LanguageModel
	maxTokens   int
	temperature float64
}

func NewGenerator(model ports.LanguageModel, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:       model,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns an ai-provenance result or an error wrapping ErrMalformedGeneration
// or the model's own failure.
func (g *Generator) Generate(ctx context.Context, q domain.FaultQuery, block ContextBlock) (domain.DiagnosisResult, error) {
	raw, err := g.model.Complete(ctx, ports.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildDiagnosisPrompt(q, block),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		JSON:        true,
	})
	if err != nil {
		return domain.DiagnosisResult{}, fmt.Errorf("complete diagnosis: %w", err)
	}
	return ParseGeneration(raw, block)
}

type generation struct {
	Diagnosis  string `json:"diagnosis"`
	Confidence any    `json:"confidence"`
	RootCauses []struct {
		Cause       string `json:"cause"`
		Probability any    `json:"probability"`
	} `json:"root_causes"`
	ResolutionPlan      []string `json:"resolution_plan"`
	PreventativeActions []string `json:"preventative_actions"`
	Disclaimer          string   `json:"disclaimer"`
}

// ParseGeneration strictly decodes a model reply into a DiagnosisResult.
func ParseGeneration(raw string, block ContextBlock) (domain.DiagnosisResult, error) {
	const op = "parse generation"

	body := stripCodeFence(raw)
	if body == "" {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, errors.New("empty reply"))
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, err)
	}
	if doc == nil {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, errors.New("reply is not an object"))
	}
	if err := validateResult(doc); err != nil {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, err)
	}
	var gen generation
	if err := json.Unmarshal(normalized, &gen); err != nil {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, err)
	}

	diagnosis := strings.TrimSpace(gen.Diagnosis)
	if diagnosis == "" {
		return domain.DiagnosisResult{}, domain.WrapError(domain.ErrMalformedGeneration, op, errors.New("diagnosis is blank"))
	}

	result := domain.DiagnosisResult{
		Diagnosis:            diagnosis,
		Confidence:           levelOf(gen.Confidence),
		RootCauses:           make([]domain.RootCause, 0, len(gen.RootCauses)),
		ResolutionPlan:       nonBlank(gen.ResolutionPlan),
		PreventativeActions:  nonBlank(gen.PreventativeActions),
		Disclaimer:           strings.TrimSpace(gen.Disclaimer),
		Provenance:           domain.ProvenanceAI,
		SimilarFaultsContext: block.Text,
	}
	for _, rc := range gen.RootCauses {
		cause := strings.TrimSpace(rc.Cause)
		if cause == "" {
			continue
		}
		result.RootCauses = append(result.RootCauses, domain.RootCause{
			Cause:       cause,
			Probability: levelOf(rc.Probability),
		})
	}
	if result.Disclaimer == "" {
		result.Disclaimer = DefaultDisclaimer
	}
	if result.SimilarFaultsContext == "" {
		result.SimilarFaultsContext = NoSimilarFaults
	}
	return result, nil
}

// levelOf maps a decoded confidence value to its level; non-strings are Unknown.
func levelOf(v any) domain.Confidence {
	s, ok := v.(string)
	if !ok {
		return domain.ConfidenceUnknown
	}
	return domain.ParseConfidence(s)
}

func stripCodeFence(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
