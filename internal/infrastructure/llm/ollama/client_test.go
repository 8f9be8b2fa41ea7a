package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/resilience"
)

func TestCompleteSendsJSONFormatAndOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"diagnosis\":\"x\"}  "}`))
	}))
	defer server.Close()

	model := NewLanguageModel(New(server.URL, "llama3", "nomic-embed-text"))
	out, err := model.Complete(context.Background(), ports.CompletionRequest{
		System:      "be strict",
		Prompt:      "cooling pump overheating",
		MaxTokens:   800,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"diagnosis":"x"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if payload["format"] != "json" || payload["system"] != "be strict" || payload["model"] != "llama3" {
		t.Fatalf("unexpected payload %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_predict"] != float64(800) || options["temperature"] != 0.2 {
		t.Fatalf("unexpected options %v", options)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRetriesOnceThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{BreakerEnabled: false})
	embedder := NewEmbedder(New(server.URL, "gen", "embed", WithResilience(exec)))

	vector, err := embedder.EmbedQuery(context.Background(), "cooling pump")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 || calls.Load() != 2 {
		t.Fatalf("expected one retry and a 3-dim vector, got calls=%d vector=%v", calls.Load(), vector)
	}
}

func TestEmbedRejectsMissingVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	if _, err := embedder.EmbedQuery(context.Background(), "x"); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}
