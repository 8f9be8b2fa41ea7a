package diagnosis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
)

type fakeModel struct {
	reply string
	err   error
	calls int
	last  ports.CompletionRequest
}

func (f *fakeModel) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

const validReply = `{
  "diagnosis": "Cooling pump overheating caused by restricted suction.",
  "confidence": "high",
  "root_causes": [{"cause": "Clogged suction strainer", "probability": "High"}],
  "resolution_plan": ["Isolate the pump", "Clean the strainer"],
  "preventative_actions": ["Weekly strainer inspection"],
  "disclaimer": "Verify before acting."
}`

func TestGenerateSendsBoundedJSONRequest(t *testing.T) {
	model := &fakeModel{reply: validReply}
	g := NewGenerator(model)

	q := domain.FaultQuery{NormalizedText: "cooling pump overheating", Equipment: domain.EquipmentCoolingPump}
	block := AssembleContext([]domain.RetrievedRecord{{Score: 0.8, Equipment: "Cooling Pump #1", FaultText: "Overheat"}})

	result, err := g.Generate(context.Background(), q, block)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}
	if !model.last.JSON || model.last.MaxTokens != DefaultMaxTokens || model.last.Temperature != DefaultTemperature {
		t.Fatalf("unexpected request settings %+v", model.last)
	}
	if !strings.Contains(model.last.Prompt, "cooling pump overheating") || !strings.Contains(model.last.Prompt, "Cooling Pump #1") {
		t.Fatalf("prompt missing fault or context: %s", model.last.Prompt)
	}
	if result.Provenance != domain.ProvenanceAI {
		t.Fatalf("expected ai provenance, got %s", result.Provenance)
	}
	if result.SimilarFaultsContext != block.Text {
		t.Fatalf("expected context block text, got %q", result.SimilarFaultsContext)
	}
}

func TestGenerateWithEmptyContextDoesNotInventRecords(t *testing.T) {
	model := &fakeModel{reply: validReply}
	g := NewGenerator(model)

	result, err := g.Generate(context.Background(), domain.FaultQuery{NormalizedText: "odd noise"}, AssembleContext(nil))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(model.last.Prompt, NoSimilarFaults) {
		t.Fatalf("sentinel must not be presented to the model as a fault record")
	}
	if result.SimilarFaultsContext != NoSimilarFaults {
		t.Fatalf("expected sentinel context, got %q", result.SimilarFaultsContext)
	}
}

func TestGenerateAppliesOptions(t *testing.T) {
	model := &fakeModel{reply: validReply}
	g := NewGenerator(model, WithMaxTokens(256), WithTemperature(0))

	if _, err := g.Generate(context.Background(), domain.FaultQuery{NormalizedText: "x"}, AssembleContext(nil)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if model.last.MaxTokens != 256 || model.last.Temperature != 0 {
		t.Fatalf("options not applied: %+v", model.last)
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	boom := errors.New("connection refused")
	g := NewGenerator(&fakeModel{err: boom})

	_, err := g.Generate(context.Background(), domain.FaultQuery{NormalizedText: "x"}, AssembleContext(nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestParseGenerationNormalizesFields(t *testing.T) {
	block := AssembleContext(nil)
	got, err := ParseGeneration(validReply, block)
	if err != nil {
		t.Fatalf("ParseGeneration() error = %v", err)
	}
	want := domain.DiagnosisResult{
		Diagnosis:            "Cooling pump overheating caused by restricted suction.",
		Confidence:           domain.ConfidenceHigh,
		RootCauses:           []domain.RootCause{{Cause: "Clogged suction strainer", Probability: domain.ConfidenceHigh}},
		ResolutionPlan:       []string{"Isolate the pump", "Clean the strainer"},
		PreventativeActions:  []string{"Weekly strainer inspection"},
		Disclaimer:           "Verify before acting.",
		Provenance:           domain.ProvenanceAI,
		SimilarFaultsContext: NoSimilarFaults,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseGeneration() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGenerationDefaultsOptionalFields(t *testing.T) {
	raw := "```json\n{\"diagnosis\": \"Seal failure\", \"confidence\": \"certain\", \"root_causes\": [{\"cause\": \"Worn seal\", \"probability\": \"likely\"}], \"disclaimer\": null}\n```"

	got, err := ParseGeneration(raw, AssembleContext(nil))
	if err != nil {
		t.Fatalf("ParseGeneration() error = %v", err)
	}
	if got.Confidence != domain.ConfidenceUnknown || got.RootCauses[0].Probability != domain.ConfidenceUnknown {
		t.Fatalf("expected Unknown levels, got %+v", got)
	}
	if got.ResolutionPlan == nil || len(got.ResolutionPlan) != 0 {
		t.Fatalf("expected empty resolution plan, got %#v", got.ResolutionPlan)
	}
	if got.PreventativeActions == nil || len(got.PreventativeActions) != 0 {
		t.Fatalf("expected empty preventative actions, got %#v", got.PreventativeActions)
	}
	if got.Disclaimer != DefaultDisclaimer {
		t.Fatalf("expected default disclaimer, got %q", got.Disclaimer)
	}
}

func TestParseGenerationNonStringLevelsBecomeUnknown(t *testing.T) {
	replies := []string{
		`{"diagnosis": "Pump seal failure", "confidence": 0.9, "root_causes": [{"cause": "Worn seal", "probability": 0.7}]}`,
		`{"diagnosis": "Pump seal failure", "confidence": true, "root_causes": [{"cause": "Worn seal", "probability": {"p": 1}}]}`,
		`{"diagnosis": "Pump seal failure", "confidence": ["High"], "root_causes": [{"cause": "Worn seal", "probability": null}]}`,
	}
	for _, raw := range replies {
		got, err := ParseGeneration(raw, AssembleContext(nil))
		if err != nil {
			t.Fatalf("ParseGeneration(%s) error = %v", raw, err)
		}
		if got.Provenance != domain.ProvenanceAI || got.Diagnosis != "Pump seal failure" {
			t.Fatalf("expected the ai answer to be kept, got %+v", got)
		}
		if got.Confidence != domain.ConfidenceUnknown {
			t.Fatalf("expected Unknown confidence for %s, got %s", raw, got.Confidence)
		}
		if len(got.RootCauses) != 1 || got.RootCauses[0].Probability != domain.ConfidenceUnknown {
			t.Fatalf("expected Unknown probability for %s, got %+v", raw, got.RootCauses)
		}
	}
}

func TestGeneratePromptQuotesOriginalWording(t *testing.T) {
	model := &fakeModel{reply: validReply}
	q := domain.FaultQuery{
		RawText:        "  Radar display blank   after purifier vibrating ",
		NormalizedText: "radar display bank after purifier vibration",
	}

	if _, err := NewGenerator(model).Generate(context.Background(), q, AssembleContext(nil)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(model.last.Prompt, "Fault report:\nRadar display blank after purifier vibrating\n") {
		t.Fatalf("prompt must quote the caller's wording:\n%s", model.last.Prompt)
	}
	if strings.Contains(model.last.Prompt, "bank") {
		t.Fatalf("prompt must not carry the matching copy:\n%s", model.last.Prompt)
	}
}

func TestBuildDiagnosisPromptTruncatesByRune(t *testing.T) {
	q := domain.FaultQuery{RawText: strings.Repeat("é", maxPromptFault+10)}

	prompt := buildDiagnosisPrompt(q, AssembleContext(nil))
	if !utf8.ValidString(prompt) {
		t.Fatalf("prompt is not valid UTF-8")
	}
	if got := strings.Count(prompt, "é"); got != maxPromptFault {
		t.Fatalf("expected %d runes kept, got %d", maxPromptFault, got)
	}
}

func TestParseGenerationRejectsMalformedReplies(t *testing.T) {
	cases := map[string]string{
		"not json":          "The pump is probably broken.",
		"empty":             "   ",
		"array":             `[{"diagnosis": "x"}]`,
		"null":              "null",
		"missing diagnosis": `{"confidence": "High", "root_causes": []}`,
		"missing causes":    `{"diagnosis": "x", "confidence": "High"}`,
		"null diagnosis":    `{"diagnosis": null, "confidence": "High", "root_causes": []}`,
		"blank diagnosis":   `{"diagnosis": "   ", "confidence": "High", "root_causes": []}`,
		"extra key":         `{"diagnosis": "x", "confidence": "High", "root_causes": [], "severity": "major"}`,
		"wrong type":        `{"diagnosis": "x", "confidence": "High", "root_causes": "pump"}`,
	}
	for name, raw := range cases {
		_, err := ParseGeneration(raw, AssembleContext(nil))
		if !domain.IsKind(err, domain.ErrMalformedGeneration) {
			t.Fatalf("%s: expected ErrMalformedGeneration, got %v", name, err)
		}
	}
}
