package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	statusOK           = "ok"
	statusNotReady     = "not ready"
	statusShuttingDown = "shutting down"

	calendarReady   = "ready"
	calendarPending = "not initialized"
)

// HealthChecker serves the liveness and readiness endpoints of the metrics
// listener.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
	version   string
}

// NewHealthChecker creates a HealthChecker that starts out ready. sc may be nil.
func NewHealthChecker(sc *ServerContext, version string) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now(), version: version}
	h.ready.Store(true)
	return h
}

// SetReady marks the server ready or draining.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the server accepts traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load() && !h.shuttingDown()
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Calendar string `json:"calendar"`
	TimeZone string `json:"time_zone,omitempty"`
	Version  string `json:"version,omitempty"`
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: statusOK})
	})
	mux.HandleFunc("/readyz", h.serveReadiness)
	mux.HandleFunc("/healthz/detailed", h.serveDetailed)
}

func (h *HealthChecker) serveReadiness(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{"ready": statusOK, "shutdown": statusOK}
	if !h.ready.Load() {
		checks["ready"] = statusNotReady
	}
	if h.shuttingDown() {
		checks["shutdown"] = statusShuttingDown
	}

	if !h.IsReady() {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{Status: statusNotReady, Checks: checks})
		return
	}
	writeHealth(w, http.StatusOK, HealthResponse{Status: statusOK, Checks: checks})
}

// serveDetailed reports the calendar client state. The client is created on
// first use, so a pending client does not fail the check.
func (h *HealthChecker) serveDetailed(w http.ResponseWriter, _ *http.Request) {
	resp := DetailedHealthResponse{
		Status:   statusOK,
		Uptime:   time.Since(h.startTime).Truncate(time.Second).String(),
		Calendar: calendarPending,
		Version:  h.version,
	}
	if h.sc != nil {
		if h.sc.CalendarReady() {
			resp.Calendar = calendarReady
		}
		if loc := h.sc.Config().Location; loc != nil {
			resp.TimeZone = loc.String()
		}
	}

	code := http.StatusOK
	switch {
	case !h.ready.Load():
		resp.Status, code = statusNotReady, http.StatusServiceUnavailable
	case h.shuttingDown():
		resp.Status, code = statusShuttingDown, http.StatusServiceUnavailable
	}
	writeHealth(w, code, resp)
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
