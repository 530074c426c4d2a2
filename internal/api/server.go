// Package api exposes the query surface over HTTP: snapshot reads, the
// explicit clear, and the persisted battle history.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/engine"
	"CombatSpectra/internal/engine/statistic"
	"CombatSpectra/internal/history"
)

// BattleSink receives the final snapshot of a battle when it is cleared.
// Sinks run on their own goroutines and must never block the caller.
type BattleSink interface {
	RecordBattle(snap statistic.Snapshot)
}

// HistoryQuerier reads back persisted battles for the /history endpoint.
type HistoryQuerier interface {
	RecentBattles(ctx context.Context, limit int) ([]history.BattleSummary, error)
}

// Server is the HTTP query surface. It only ever calls the meter's snapshot
// and clear operations.
type Server struct {
	meter   *engine.Meter
	sinks   []BattleSink
	querier HistoryQuerier
	srv     *http.Server
}

// NewServer creates the query surface. querier may be nil when no history
// store is configured.
func NewServer(addr string, meter *engine.Meter, sinks []BattleSink, querier HistoryQuerier) *Server {
	s := &Server{meter: meter, sinks: sinks, querier: querier}
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the route table; split out so tests can drive the handlers
// without a listening socket.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/data", s.handleData).Methods("GET")
	r.HandleFunc("/clear", s.handleClear).Methods("GET")
	r.HandleFunc("/enemies", s.handleEnemies).Methods("GET")
	r.HandleFunc("/history", s.handleHistory).Methods("GET")
	return r
}

// Start serves until Shutdown. It blocks.
func (s *Server) Start() error {
	logrus.Infof("api: listening on %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type dataResponse struct {
	Code  int                                 `json:"code"`
	User  map[uint64]statistic.CharacterView `json:"user"`
	Enemy map[uint64]statistic.EnemyView     `json:"enemy"`
}

type enemiesResponse struct {
	Code  int                             `json:"code"`
	Enemy map[uint64]statistic.EnemyView `json:"enemy"`
}

type msgResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type historyResponse struct {
	Code    int                     `json:"code"`
	Msg     string                  `json:"msg,omitempty"`
	Battles []history.BattleSummary `json:"battles,omitempty"`
}

// handleData returns the full snapshot. Before any session exists this is an
// empty (not failed) snapshot.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	snap := s.meter.Snapshot()
	writeJSON(w, dataResponse{Code: 0, User: snap.Characters, Enemy: snap.Enemies})
}

// handleClear snapshots, clears atomically, and hands the final snapshot to
// the battle sinks (uploader, history writer) off the request path.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	snap := s.meter.Snapshot()
	s.meter.Clear()

	if len(snap.Characters) > 0 {
		for _, sink := range s.sinks {
			go sink.RecordBattle(snap)
		}
	}
	logrus.Infof("api: statistics cleared (%d characters, %.1fs elapsed)",
		len(snap.Characters), snap.Elapsed.Seconds())
	writeJSON(w, msgResponse{Code: 0, Msg: "statistics cleared"})
}

func (s *Server) handleEnemies(w http.ResponseWriter, r *http.Request) {
	snap := s.meter.Snapshot()
	writeJSON(w, enemiesResponse{Code: 0, Enemy: snap.Enemies})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		writeJSON(w, historyResponse{Code: 1, Msg: "battle history is not configured"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	battles, err := s.querier.RecentBattles(ctx, limit)
	if err != nil {
		logrus.Warnf("api: history query failed: %v", err)
		writeJSON(w, historyResponse{Code: 2, Msg: "history query failed"})
		return
	}
	writeJSON(w, historyResponse{Code: 0, Battles: battles})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("api: failed to encode response: %v", err)
	}
}
