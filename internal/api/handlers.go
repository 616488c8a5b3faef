package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/livinlefevreloca/lectio/internal/db"
	"github.com/livinlefevreloca/lectio/internal/liturgy"
	"github.com/livinlefevreloca/lectio/internal/remote"
	"github.com/livinlefevreloca/lectio/internal/scheduler"
	"github.com/livinlefevreloca/lectio/internal/syncer"
)

// MaxJobsLimit caps the limit query parameter of GET /jobs
const MaxJobsLimit = 500

type handlers struct {
	svc    Service
	cache  CacheReader
	logger *slog.Logger
}

// DayResponse is a cached day with its readings
type DayResponse struct {
	Day      *liturgy.Day      `json:"day"`
	Readings []liturgy.Reading `json:"readings"`
}

// JobsResponse lists ledger rows
type JobsResponse struct {
	Jobs []db.SyncJob `json:"jobs"`
}

// SyncResponse reports a manual sync outcome
type SyncResponse struct {
	Date   string        `json:"date"`
	Result syncer.Result `json:"result"`
	Error  string        `json:"error,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, h.svc.Status(), http.StatusOK)
}

func (h *handlers) jobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxJobsLimit)
	}

	jobs, err := h.svc.RecentSyncJobs(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSONResponse(w, JobsResponse{Jobs: jobs}, http.StatusOK)
}

func (h *handlers) performance(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeErrorResponse(w, "window must be a positive duration such as 24h", http.StatusBadRequest)
			return
		}
		window = d
	}

	metrics, err := h.svc.PerformanceMetrics(r.Context(), window)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSONResponse(w, metrics, http.StatusOK)
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CacheStats(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSONResponse(w, stats, http.StatusOK)
}

func (h *handlers) cacheDay(w http.ResponseWriter, r *http.Request) {
	date, err := liturgy.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeErrorResponse(w, "date must be formatted YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	key := liturgy.DateKey(date)
	if !h.svc.InCacheWindow(date) {
		writeErrorResponse(w, fmt.Sprintf("%s is outside the cache window", key), http.StatusNotFound)
		return
	}

	day, err := h.cache.GetDay(r.Context(), key)
	if db.IsNotFound(err) {
		writeErrorResponse(w, fmt.Sprintf("%s is not cached", key), http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	readings, err := h.cache.GetReadings(r.Context(), key)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSONResponse(w, DayResponse{Day: day, Readings: readings}, http.StatusOK)
}

func (h *handlers) sync(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := liturgy.ParseDate(raw)
		if err != nil {
			writeErrorResponse(w, "date must be formatted YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &d
	}

	res, err := h.svc.TriggerManualSync(r.Context(), date)
	resp := SyncResponse{Result: res}
	if date != nil {
		resp.Date = liturgy.DateKey(*date)
	}

	switch {
	case err == nil:
		writeJSONResponse(w, resp, http.StatusOK)
	case errors.Is(err, scheduler.ErrNotActive):
		writeErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, scheduler.ErrOutsideWindow):
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	case remote.IsFetchError(err):
		resp.Error = err.Error()
		writeJSONResponse(w, resp, http.StatusBadGateway)
	default:
		resp.Error = err.Error()
		writeJSONResponse(w, resp, http.StatusInternalServerError)
	}
}

func (h *handlers) background(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.svc.RunBackgroundSlot(r.Context()), http.StatusOK)
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeErrorResponse(w, "internal error", http.StatusInternalServerError)
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}
