package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/hazyhaar/pkg/kit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/covid-pipeline/pkg/pipeline"
)

// NewRouter returns an http.Handler with all pipeline API routes. gatherer
// backs /metrics; nil uses the default gatherer.
func NewRouter(d Deps, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	h := &handler{
		runUnit:    runUnitEndpoint(d),
		listRuns:   listRunsEndpoint(d),
		tableStats: tableStatsEndpoint(d),
		runs:       d.Runs,
	}

	mux.HandleFunc("POST /v1/units/{unit}", h.handleRunUnit(pipeline.UnitIngest, pipeline.UnitTransform))
	mux.HandleFunc("POST /v1/ops/{op}", h.handleRunUnit(pipeline.OpDownload, pipeline.OpCleanup, pipeline.OpLoad))
	mux.HandleFunc("GET /v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /v1/tables", h.handleTables)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return cors(mux)
}

type handler struct {
	runUnit    kit.Endpoint
	listRuns   kit.Endpoint
	tableStats kit.Endpoint
	runs       *pipeline.RunStore
}

// --- run a unit or operation ---

type errorWithRun struct {
	Error string              `json:"error"`
	Run   *pipeline.RunRecord `json:"run,omitempty"`
}

// handleRunUnit serves both route families; allowed restricts which names the
// route accepts so /v1/ops/ingest is a 404.
func (h *handler) handleRunUnit(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("unit")
		if name == "" {
			name = r.PathValue("op")
		}
		if !slices.Contains(allowed, name) {
			writeError(w, http.StatusNotFound, "unknown unit: "+name)
			return
		}

		resp, err := h.runUnit(r.Context(), &runUnitReq{Unit: name})
		if err != nil {
			body := errorWithRun{Error: err.Error()}
			if rr, ok := resp.(runResponse); ok {
				body.Run = &rr.Run
			}
			writeJSON(w, statusFor(err), body)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// --- run history ---

func (h *handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	req := &listRunsReq{Unit: r.URL.Query().Get("unit")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	resp, err := h.listRuns(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- destination tables ---

func (h *handler) handleTables(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tableStats(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status  string                 `json:"status"`
	Latest  map[string]string      `json:"latest"`
	Sources []pipeline.SourceCheck `json:"sources"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Latest: map[string]string{}}
	for _, unit := range []string{pipeline.UnitIngest, pipeline.UnitTransform} {
		last, err := h.runs.LatestRun(unit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if last != nil {
			resp.Latest[unit] = last.Status
			if last.Status == pipeline.StatusFailed {
				resp.Status = "degraded"
			}
		}
	}
	checks, err := h.runs.ListChecks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Sources = checks
	for _, c := range checks {
		if c.Status < 200 || c.Status >= 400 {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownUnit):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrBusy), errors.Is(err, pipeline.ErrDependency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
