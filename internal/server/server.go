// Package server exposes KPI evaluation and timelines over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/Deepak-Sangle/greenratchet/internal/usage"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// TraceHeader carries the caller's trace ID. It is echoed on every response.
const TraceHeader = "X-Trace-Id"

const maxBodyBytes = 1 << 20

// Engine is the evaluation surface the server drives.
type Engine interface {
	EvaluateAll(ctx context.Context, orgID string, defs []kpi.Definition, window usage.Window) ([]kpi.Result, []error)
	Timeline(ctx context.Context, orgID string, metric kpi.TimelineMetric, window usage.Window, months int) (kpi.Timeline, error)
}

// History lists stored results of a KPI, newest first.
type History interface {
	ListResults(ctx context.Context, kpiID string) ([]kpi.Result, error)
}

// Config configures a Server.
type Config struct {
	// ProjectionMonths is used when a timeline request omits months.
	ProjectionMonths int
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// History backs the results endpoint. Nil disables it.
	History History
}

// Server routes API requests.
type Server struct {
	engine Engine
	cfg    Config
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates a Server.
func New(engine Engine, logger zerolog.Logger, cfg Config) *Server {
	s := &Server{engine: engine, cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /v1/timeline", s.handleTimeline)
	if cfg.History != nil {
		s.mux.HandleFunc("GET /v1/kpis/{id}/results", s.handleResults)
	}
	if cfg.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP attaches a trace ID to the request context and logs the request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	traceID := r.Header.Get(TraceHeader)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	w.Header().Set(TraceHeader, traceID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(kpi.WithTraceID(r.Context(), traceID)))

	s.logger.Debug().
		Str("trace_id", traceID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("http request")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	OrganizationID string           `json:"organization_id"`
	KPIs           []kpi.Definition `json:"kpis"`
	// Window applies to definitions without their own start and end.
	Window *usage.Window `json:"window,omitempty"`
}

// EvaluateResponse carries the results that succeeded and the errors of
// those that did not.
type EvaluateResponse struct {
	Results []kpi.Result `json:"results"`
	Errors  []KPIError   `json:"errors,omitempty"`
}

// KPIError reports one failed definition.
type KPIError struct {
	KPIID   string `json:"kpi_id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// TimelineRequest is the body of POST /v1/timeline.
type TimelineRequest struct {
	OrganizationID string       `json:"organization_id"`
	Metric         string       `json:"metric"`
	Window         usage.Window `json:"window"`
	Months         *int         `json:"months,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.OrganizationID == "" || len(req.KPIs) == 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "organization_id and kpis are required")
		return
	}

	// Definitions are grouped by effective window so each group shares one
	// EvaluateAll call.
	results := make([]*kpi.Result, len(req.KPIs))
	errs := make([]error, len(req.KPIs))
	groups := make(map[usage.Window][]int)
	var order []usage.Window
	for i := range req.KPIs {
		def, err := req.KPIs[i].Normalized()
		if err != nil {
			errs[i] = err
			continue
		}
		req.KPIs[i] = def
		win, ok := def.ObservationWindow()
		if !ok {
			if req.Window == nil {
				errs[i] = &kpi.Error{Kind: kpi.ErrInvalidWindow.Kind, Message: "no window: set start and end on the KPI or a request window"}
				continue
			}
			win = *req.Window
		}
		if _, seen := groups[win]; !seen {
			order = append(order, win)
		}
		groups[win] = append(groups[win], i)
	}
	for _, win := range order {
		idx := groups[win]
		defs := make([]kpi.Definition, len(idx))
		for j, i := range idx {
			defs[j] = req.KPIs[i]
		}
		res, gerrs := s.engine.EvaluateAll(r.Context(), req.OrganizationID, defs, win)
		for j, i := range idx {
			if gerrs[j] != nil {
				errs[i] = gerrs[j]
				continue
			}
			results[i] = &res[j]
		}
	}

	resp := EvaluateResponse{Results: []kpi.Result{}}
	for i, def := range req.KPIs {
		if errs[i] != nil {
			resp.Errors = append(resp.Errors, KPIError{KPIID: def.ID, Reason: kpi.Reason(errs[i]), Message: errs[i].Error()})
			continue
		}
		resp.Results = append(resp.Results, *results[i])
	}

	status := http.StatusOK
	if len(resp.Results) == 0 {
		status = statusFor(errs[0])
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineRequest
	if !s.decode(w, r, &req) {
		return
	}
	metric, err := kpi.ParseTimelineMetric(req.Metric)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	months := s.cfg.ProjectionMonths
	if req.Months != nil {
		months = *req.Months
	}
	if months < 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "months must not be negative")
		return
	}

	tl, err := s.engine.Timeline(r.Context(), req.OrganizationID, metric, req.Window, months)
	if err != nil {
		s.writeError(w, statusFor(err), kpi.Reason(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tl)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	history, err := s.cfg.History.ListResults(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, kpi.Reason(err), err.Error())
		return
	}
	if history == nil {
		history = []kpi.Result{}
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps an evaluation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kpi.ErrInvalidWindow), errors.Is(err, kpi.ErrUnsupportedKPI):
		return http.StatusBadRequest
	case errors.Is(err, kpi.ErrNoActiveConnections):
		return http.StatusNotFound
	case errors.Is(err, kpi.ErrInsufficientData), errors.Is(err, kpi.ErrMissingGridMetric):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kpi.ErrDataSource):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, reason, msg string) {
	s.writeJSON(w, status, ErrorResponse{Reason: reason, Message: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
