// Package api serves the board over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/db"
	"github.com/LArkema/dctransistor-project/internal/metrics"
	"github.com/LArkema/dctransistor-project/internal/poller"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

// StatusProvider exposes the latest completed cycle.
type StatusProvider interface {
	Latest() (poller.Status, bool)
	Lines() []*topology.Line
}

// Store is the read side of the cycle history and baselines.
type Store interface {
	Ping(ctx context.Context) error
	RecentCycles(ctx context.Context, limit int) ([]db.CycleRecord, error)
	GetBaseline(ctx context.Context, lineID string, hour, dayOfWeek int) (*metrics.TrainBaseline, error)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler serves board, line and history endpoints.
type Handler struct {
	status StatusProvider
	store  Store
	now    func() time.Time
}

func NewHandler(status StatusProvider, store Store) *Handler {
	return &Handler{status: status, store: store, now: time.Now}
}

// IndicatorResponse is the JSON response for GET /api/indicators/{index}
type IndicatorResponse struct {
	Index    int      `json:"index"`
	Occupied bool     `json:"occupied"`
	Lines    []string `json:"lines"`
	Cycle    uint64   `json:"cycle"`
}

// LineSummary is one entry of GET /api/lines
type LineSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Stations int    `json:"stations"`
	Trains   int    `json:"trains"`
}

// LinesResponse is the JSON response for GET /api/lines
type LinesResponse struct {
	Lines []LineSummary `json:"lines"`
	Count int           `json:"count"`
}

// LineDetailResponse is the JSON response for GET /api/lines/{lineID}
type LineDetailResponse struct {
	board.LineSnapshot
	Stations int                    `json:"stations"`
	Cycle    uint64                 `json:"cycle"`
	PolledAt time.Time              `json:"polledAt"`
	Baseline *metrics.TrainBaseline `json:"baseline,omitempty"`
}

// CyclesResponse is the JSON response for GET /api/cycles
type CyclesResponse struct {
	Cycles []db.CycleRecord `json:"cycles"`
	Count  int              `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

func (h *Handler) latest(w http.ResponseWriter) (poller.Status, bool) {
	status, ok := h.status.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "No polling cycle has completed yet", nil)
	}
	return status, ok
}

// Health handles GET /health
// Checks database connectivity and reports the last completed cycle.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"timestamp": h.now().UTC(),
	}
	if status, ok := h.status.Latest(); ok {
		body["lastCycle"] = status.Board.Cycle
		body["lastPolledAt"] = status.PolledAt
	}

	if err := h.store.Ping(ctx); err != nil {
		body["status"] = "error"
		body["database"] = "disconnected"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	body["status"] = "ok"
	body["database"] = "connected"
	writeJSON(w, http.StatusOK, body)
}

// GetBoard handles GET /api/board
// Returns the full snapshot of the last cycle.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	status, ok := h.latest(w)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, status)
}

// GetIndicator handles GET /api/indicators/{index}
func (h *Handler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer", map[string]interface{}{
			"index": raw,
		})
		return
	}

	status, ok := h.latest(w)
	if !ok {
		return
	}

	occupied, err := status.Board.IsOccupied(index)
	if errors.Is(err, board.ErrIndicatorOutOfRange) {
		writeError(w, http.StatusNotFound, "Indicator not found", map[string]interface{}{
			"index":      index,
			"indicators": len(status.Board.Indicators),
		})
		return
	}

	writeJSON(w, http.StatusOK, IndicatorResponse{
		Index:    index,
		Occupied: occupied,
		Lines:    status.Board.LinesAt(index),
		Cycle:    status.Board.Cycle,
	})
}

// GetLines handles GET /api/lines
// Line metadata is static; train counts are zero until the first cycle.
func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	status, _ := h.status.Latest()

	lines := make([]LineSummary, 0)
	for _, l := range h.status.Lines() {
		summary := LineSummary{
			ID:       l.ID(),
			Name:     l.Name(),
			Color:    l.Color().String(),
			Stations: l.Stations(),
		}
		if snap, ok := status.Board.Line(l.ID()); ok {
			summary.Trains = snap.Trains
		}
		lines = append(lines, summary)
	}

	writeJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

// GetLine handles GET /api/lines/{lineID}
// lineID may be the line code or its name. The baseline is the learned train
// count for the current hour and weekday, when one exists.
func (h *Handler) GetLine(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")

	var line *topology.Line
	for _, l := range h.status.Lines() {
		if strings.EqualFold(l.ID(), lineID) || strings.EqualFold(l.Name(), lineID) {
			line = l
			break
		}
	}
	if line == nil {
		writeError(w, http.StatusNotFound, "Line not found", map[string]interface{}{
			"lineId": lineID,
		})
		return
	}

	status, ok := h.latest(w)
	if !ok {
		return
	}
	snap, _ := status.Board.Line(line.ID())

	now := h.now()
	baseline, err := h.store.GetBaseline(r.Context(), line.ID(), now.Hour(), int(now.Weekday()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve train baseline", map[string]interface{}{
			"lineId":   line.ID(),
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, LineDetailResponse{
		LineSnapshot: snap,
		Stations:     line.Stations(),
		Cycle:        status.Board.Cycle,
		PolledAt:     status.PolledAt,
		Baseline:     baseline,
	})
}

// GetCycles handles GET /api/cycles?limit=N
// Returns recorded cycles, newest first.
func (h *Handler) GetCycles(w http.ResponseWriter, r *http.Request) {
	limit := defaultCycleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", map[string]interface{}{
				"limit": raw,
			})
			return
		}
		limit = n
	}
	if limit > maxCycleLimit {
		limit = maxCycleLimit
	}

	cycles, err := h.store.RecentCycles(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve cycles", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, CyclesResponse{Cycles: cycles, Count: len(cycles)})
}
