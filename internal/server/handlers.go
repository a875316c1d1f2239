package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/output"
)

type handlers struct {
	store   *Store
	started time.Time
	logger  *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Instruments int    `json:"instruments"`
	Uptime      string `json:"uptime"`
}

type symbolsResponse struct {
	Instruments []levels.Instrument `json:"instruments"`
	Count       int                 `json:"count"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Instruments: len(h.store.Symbols()),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handlers) listSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.store.Symbols()
	writeJSON(w, http.StatusOK, symbolsResponse{Instruments: symbols, Count: len(symbols)})
}

func (h *handlers) getLevels(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) getLevelsCSV(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", strings.ToLower(entry.Instrument.Target)+"_gex_levels.csv"))
	if err := output.WriteCSV(w, entry.Levels); err != nil {
		h.logger.Warn("failed to write csv", zap.String("target", entry.Instrument.Target), zap.Error(err))
	}
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (Entry, bool) {
	symbol := chi.URLParam(r, "symbol")
	entry, ok := h.store.Get(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no levels for " + strings.ToUpper(symbol)})
		return Entry{}, false
	}
	return entry, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
