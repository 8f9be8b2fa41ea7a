package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/resilience"
)

// Payload keys stored with every fault point. Filters only use equipment and ship.
const (
	payloadFaultID    = "fault_id"
	payloadEquipment  = "equipment"
	payloadFault      = "fault"
	payloadCause      = "cause"
	payloadResolution = "resolution"
	payloadShip       = "ship"
	payloadText       = "text"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
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

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PointID derives a stable point id from the fault entry id so re-ingestion overwrites.
func PointID(faultID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fault:"+faultID)).String()
}

func (c *Client) Upsert(ctx context.Context, records []domain.FaultRecord, vectors [][]float32) error {
	if len(records) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("records/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(records))
	for i, rec := range records {
		payload := map[string]any{
			payloadFaultID:    rec.ID,
			payloadEquipment:  rec.Equipment,
			payloadFault:      rec.Fault,
			payloadCause:      rec.Cause,
			payloadResolution: rec.Resolution,
			payloadText:       rec.EmbeddingText(),
		}
		if rec.Ship != "" {
			payload[payloadShip] = rec.Ship
		}
		points = append(points, point{
			ID:      PointID(rec.ID),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	err := c.executor.Execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporaryIfNeeded("qdrant upsert", err, resilience.ClassifyHTTPError)
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedRecord, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFaultFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.executor.Execute(ctx, "qdrant.search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, reqBody, &searchResp, "search")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("qdrant search", err, resilience.ClassifyHTTPError)
	}

	out := make([]domain.RetrievedRecord, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		id := getStringPayload(r.Payload, payloadFaultID)
		if id == "" && r.ID != nil {
			id = fmt.Sprintf("%v", r.ID)
		}
		out = append(out, domain.RetrievedRecord{
			ID:         id,
			Score:      clampScore(r.Score),
			Equipment:  getStringPayload(r.Payload, payloadEquipment),
			FaultText:  getStringPayload(r.Payload, payloadFault),
			Cause:      getStringPayload(r.Payload, payloadCause),
			Resolution: getStringPayload(r.Payload, payloadResolution),
			Ship:       getStringPayload(r.Payload, payloadShip),
		})
	}
	return out, nil
}

// buildFaultFilter ANDs an equipment membership match with a ship equality match.
func buildFaultFilter(filter domain.SearchFilter) map[string]any {
	if filter.IsEmpty() {
		return nil
	}
	must := make([]map[string]any, 0, 2)
	if len(filter.Equipment) > 0 {
		must = append(must, map[string]any{
			"key":   payloadEquipment,
			"match": map[string]any{"any": filter.Equipment},
		})
	}
	if filter.Ship != "" {
		must = append(must, map[string]any{
			"key":   payloadShip,
			"match": map[string]any{"value": filter.Ship},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	if err != nil && !isAlreadyExists(err) {
		return err
	}

	for _, field := range []string{payloadEquipment, payloadShip} {
		indexBody := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		indexPath := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
		if err := c.doJSON(ctx, http.MethodPut, indexPath, indexBody, nil, "create payload index"); err != nil && !isAlreadyExists(err) {
			return err
		}
	}

	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	return resilience.DoJSON(ctx, c.httpClient, resilience.JSONCall{
		Provider:  "qdrant",
		Operation: operation,
		Method:    method,
		URL:       c.baseURL + path,
		Body:      payload,
	}, out)
}

// isAlreadyExists accepts 409, and the 400 some qdrant versions return for an existing collection.
func isAlreadyExists(err error) bool {
	var statusErr *resilience.HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	if statusErr.StatusCode == http.StatusConflict {
		return true
	}
	return statusErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(statusErr.Body), "already exists")
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
