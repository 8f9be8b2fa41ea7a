package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/core/diagnosis"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

func TestNewWithoutProviderServesMockDiagnoses(t *testing.T) {
	cfg := config.Config{
		LLMProvider:      config.ProviderNone,
		QdrantURL:        "http://127.0.0.1:1",
		QdrantCollection: "fault_history",
		RetryMaxAttempts: 2,
	}
	app, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Embedder != nil || app.IndexUC != nil || app.History != nil {
		t.Fatalf("expected no provider, indexer or history without configuration")
	}

	d, err := app.DiagnoseUC.Diagnose(context.Background(), "Main engine overheating", "Iona")
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if d.Provenance != domain.ProvenanceMock || d.FallbackReason != diagnosis.ReasonNoCredentials {
		t.Fatalf("expected no-credentials mock, got %s %q", d.Provenance, d.FallbackReason)
	}
	if d.Ship != "Iona" || d.Equipment != domain.EquipmentMainEngine {
		t.Fatalf("unexpected diagnosis metadata %+v", d)
	}
}

func TestNewProvidersOpenAIWithoutKeyDisablesAI(t *testing.T) {
	embedder, model, err := newProviders(config.Config{LLMProvider: config.ProviderOpenAI}, nil)
	if err != nil {
		t.Fatalf("newProviders() error = %v", err)
	}
	if embedder != nil || model != nil {
		t.Fatalf("expected nil providers without an api key")
	}
}

func TestNewProvidersOllama(t *testing.T) {
	embedder, model, err := newProviders(config.Config{LLMProvider: config.ProviderOllama, OllamaURL: "http://localhost:11434"}, nil)
	if err != nil {
		t.Fatalf("newProviders() error = %v", err)
	}
	if embedder == nil || model == nil {
		t.Fatalf("expected ollama providers")
	}
}

func TestNewProvidersRejectsUnknownProvider(t *testing.T) {
	if _, _, err := newProviders(config.Config{LLMProvider: "watson"}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewNormalizerLoadsDictionaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("# custom\nwindlass\n"), 0o600); err != nil {
		t.Fatalf("write dictionary: %v", err)
	}
	n, err := newNormalizer(path)
	if err != nil {
		t.Fatalf("newNormalizer() error = %v", err)
	}
	q, err := n.Normalize("windlas")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if q.NormalizedText != "windlass" {
		t.Fatalf("expected correction from custom dictionary, got %q", q.NormalizedText)
	}

	if _, err := newNormalizer(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing dictionary")
	}
}

func TestNewAuthRequiresSecret(t *testing.T) {
	app := &App{Config: config.Config{JWTSecret: "short"}}
	if _, _, err := app.NewAuth(); err == nil {
		t.Fatalf("expected error for short jwt secret")
	}
}
