// Package httpapi is a thin chi-based adaptor over the engine package,
// exposing the five operations of spec.md §6 as HTTP endpoints. It ports
// original_source/dt/api.py's endpoint bodies and error-shape conventions,
// stylistically grounded on the teacher pack's chi router idiom.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/engine"
	"github.com/dtwin/dtwin/twin/jobspec"
	"github.com/dtwin/dtwin/twin/seed"
)

// Server wraps an Engine behind an HTTP API.
type Server struct {
	engine *engine.Engine
}

// NewServer creates a Server bound to an Engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/plan", s.handlePlan)
	r.Post("/observe", s.handleObserve)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/topology/virtual", s.handleVirtualTopology)
	r.Route("/plan/{planID}/verify", func(r chi.Router) {
		r.Get("/", s.handleGetVerify)
		r.Post("/", s.handlePostVerify)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type planRequest struct {
	Job      jobspec.Spec `json:"job"`
	Strategy string       `json:"strategy"`
	DryRun   bool         `json:"dry_run"`
}

type placementResponse struct {
	StageID    string            `json:"stage_id"`
	NodeName   string            `json:"node_name"`
	ExecFormat twin.ExecFormat   `json:"exec_format"`
}

type planResponse struct {
	PlanID              string                       `json:"plan_id"`
	Placements          map[string]placementResponse `json:"placements"`
	PredictedLatencyMs  float64                      `json:"predicted_latency_ms"`
	PredictedEnergyKwh  float64                      `json:"predicted_energy_kwh"`
	RiskScore           float64                      `json:"risk_score"`
	ShadowPlan          map[string]string            `json:"shadow_plan"`
}

// handlePlan implements POST /plan (spec.md §6's plan operation).
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	// Safety-net re-seed, mirroring original_source/dt/api.py's
	// "ensure state is seeded" check before planning.
	if len(s.engine.Snapshot()) == 0 {
		if err := seed.Into(s.engine.State()); err != nil {
			logrus.WithError(err).Warn("httpapi: re-seed on empty state failed")
		}
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	job, err := jobspec.Parse(req.Job)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "greedy"
	}

	plan, err := s.engine.Plan(r.Context(), job, strategy, req.DryRun)
	if err != nil {
		var nfp *twin.NoFeasiblePlacementError
		switch {
		case errors.As(err, &nfp):
			infeasibleTotal.Inc()
			plansTotal.WithLabelValues(strategy, "infeasible").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "no feasible placements found",
				"stages": nfp.StageIDs,
			})
		case errors.Is(err, twin.ErrBadJobSpec):
			plansTotal.WithLabelValues(strategy, "bad_spec").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, twin.ErrTimeout):
			plansTotal.WithLabelValues(strategy, "timeout").Inc()
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			plansTotal.WithLabelValues(strategy, "error").Inc()
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	plansTotal.WithLabelValues(strategy, "ok").Inc()
	planLatency.WithLabelValues(strategy).Observe(plan.LatencyMs)

	placements := make(map[string]placementResponse, len(plan.Placements))
	for id, dec := range plan.Placements {
		placements[id] = placementResponse{StageID: dec.StageID, NodeName: dec.NodeName, ExecFormat: dec.ExecFormat}
	}

	writeJSON(w, http.StatusOK, planResponse{
		PlanID:             plan.PlanID,
		Placements:         placements,
		PredictedLatencyMs: plan.LatencyMs,
		PredictedEnergyKwh: plan.EnergyKwh,
		RiskScore:          plan.RiskScore,
		ShadowPlan:         plan.ShadowPlan,
	})
}

type observeRequest struct {
	Type string `json:"type"`
	Node string `json:"node"`
}

// handleObserve implements POST /observe.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Type == "" || req.Node == "" {
		writeError(w, http.StatusBadRequest, "missing 'type' or 'node' field")
		return
	}

	var up bool
	switch req.Type {
	case "node_down":
		up = false
	case "node_up":
		up = true
	default:
		writeError(w, http.StatusBadRequest, "unknown event type: "+req.Type)
		return
	}

	if err := s.engine.ObserveAvailability(req.Node, up); err != nil {
		if errors.Is(err, twin.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "node": req.Node, "event": req.Type})
}

// handleSnapshot implements GET /snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if len(s.engine.Snapshot()) == 0 {
		if err := seed.Into(s.engine.State()); err != nil {
			logrus.WithError(err).Warn("httpapi: re-seed on empty state failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": s.engine.Snapshot()})
}

// handleVirtualTopology implements GET /topology/virtual (opaque diagnostic
// JSON, per spec.md §9's Open Question).
func (s *Server) handleVirtualTopology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"virtual_topology": s.engine.VirtualTopology()})
}

// handleGetVerify implements GET /plan/{id}/verify: read back observed
// metrics for a plan.
func (s *Server) handleGetVerify(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	observed, ok := s.engine.GetObserved(planID)
	if !ok {
		writeError(w, http.StatusNotFound, "no observed metrics found for plan "+planID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan_id": planID,
		"observed": map[string]any{
			"latency_ms":   observed.LatencyMs,
			"cpu_util":     observed.CPUUtil,
			"mem_peak_gb":  observed.MemPeakGB,
			"energy_kwh":   observed.EnergyKwh,
			"completed_at": observed.CompletedAt,
		},
	})
}

type verifyRequest struct {
	LatencyMs   float64 `json:"latency_ms"`
	CPUUtil     float64 `json:"cpu_util"`
	MemPeakGB   float64 `json:"mem_peak_gb"`
	EnergyKwh   float64 `json:"energy_kwh"`
	CompletedAt int64   `json:"completed_at"`
}

// handlePostVerify implements POST /plan/{id}/verify: records observed
// metrics for a plan (spec.md §6's record_observed).
func (s *Server) handlePostVerify(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	metrics := twin.ObservedMetrics{
		LatencyMs:   req.LatencyMs,
		CPUUtil:     req.CPUUtil,
		MemPeakGB:   req.MemPeakGB,
		EnergyKwh:   req.EnergyKwh,
		CompletedAt: req.CompletedAt,
	}
	if err := s.engine.RecordObserved(planID, metrics); err != nil {
		if errors.Is(err, twin.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "plan_id": planID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
