package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
	"github.com/vectorscan/fault-diagnosis/internal/observability/metrics"
)

const maxRequestBodyBytes = 64 << 10

type Router struct {
	cfg       config.Config
	diagnoser ports.FaultDiagnoser
	history   ports.DiagnosisHistory
	users     ports.Authenticator
	tokens    ports.TokenService
	metrics   *metrics.HTTPServerMetrics
}

// NewRouter builds the API. history may be nil when the audit log is disabled.
func NewRouter(
	cfg config.Config,
	diagnoser ports.FaultDiagnoser,
	history ports.DiagnosisHistory,
	users ports.Authenticator,
	tokens ports.TokenService,
) *Router {
	return &Router{
		cfg:       cfg,
		diagnoser: diagnoser,
		history:   history,
		users:     users,
		tokens:    tokens,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/auth/login", rt.login)
	mux.Handle("/v1/me", rt.requireUser(rt.me))
	mux.Handle("/v1/diagnose", rt.requireUser(rt.diagnose))
	mux.Handle("/v1/diagnoses", rt.requireUser(rt.listDiagnoses))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	var onLimited func(string)
	if rt.metrics != nil {
		onLimited = rt.metrics.RecordRateLimited
	}
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onLimited)
	handler = corsMiddleware(handler, rt.cfg.CORSAllowedOrigins)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type diagnoseRequest struct {
	FaultDescription string `json:"fault_description"`
	FaultInput       string `json:"fault_input"`
	ShipFilter       string `json:"ship_filter"`
}

func (req diagnoseRequest) faultText() string {
	if strings.TrimSpace(req.FaultDescription) != "" {
		return req.FaultDescription
	}
	return req.FaultInput
}

func (rt *Router) diagnose(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req diagnoseRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	d, err := rt.diagnoser.Diagnose(r.Context(), req.faultText(), effectiveScope(user, req.ShipFilter))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) listDiagnoses(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "diagnosis history is not enabled"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := rt.history.ListRecent(r.Context(), effectiveScope(user, r.URL.Query().Get("ship")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.DiagnosisLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnoses": entries})
}

// effectiveScope lets only unrestricted callers narrow the search to another ship.
func effectiveScope(user domain.User, requested string) string {
	if domain.IsUnrestrictedScope(user.Ship) && strings.TrimSpace(requested) != "" {
		return domain.ScopeLabel(requested)
	}
	return domain.ScopeLabel(user.Ship)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return errors.New("invalid json")
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
