package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithResilience(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("ollama embed", err, resilience.ClassifyHTTPError)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	for i, vector := range response.Embeddings {
		if len(vector) == 0 {
			return nil, fmt.Errorf("ollama embed: empty embedding at index %d", i)
		}
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// LanguageModel completes prompts with /api/generate.
type LanguageModel struct {
	client *Client
}

func NewLanguageModel(client *Client) *LanguageModel {
	return &LanguageModel{client: client}
}

func (m *LanguageModel) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	reqBody := map[string]any{
		"model":  m.client.genModel,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		reqBody["system"] = req.System
	}
	if req.JSON {
		reqBody["format"] = "json"
	}
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	reqBody["options"] = options

	var response struct {
		Response string `json:"response"`
	}
	err := m.client.executor.Execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return m.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapTemporaryIfNeeded("ollama generate", err, resilience.ClassifyHTTPError)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	return resilience.DoJSON(ctx, c.httpClient, resilience.JSONCall{
		Provider:  "ollama",
		Operation: operation,
		Method:    http.MethodPost,
		URL:       c.baseURL + path,
		Body:      payload,
	}, out)
}
