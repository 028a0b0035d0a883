// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves read-only HTTP views of the queue and the pairs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"

	"github.com/luxfi/twap/delay"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/queue"
)

// Reader is the read surface the API exposes.
type Reader interface {
	Order(id uint64) (queue.Order, error)
	Queue() delay.QueueInfo
	Pair(addr common.Address) (delay.PairInfo, error)
	Pairs() []delay.PairInfo
	StuckFunds(addr common.Address) *uint256.Int
}

// Server routes HTTP requests to a Reader.
type Server struct {
	reader  Reader
	metrics http.Handler
	log     log.Logger
}

// New returns a server. metrics may be nil to disable /metrics.
func New(reader Reader, metrics http.Handler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.New("component", "api")
	}
	return &Server{reader: reader, metrics: metrics, log: logger}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id:[0-9]+}", s.handleOrder).Methods(http.MethodGet)
	r.HandleFunc("/pairs", s.handlePairs).Methods(http.MethodGet)
	r.HandleFunc("/pairs/{pair}", s.handlePair).Methods(http.MethodGet)
	r.HandleFunc("/stuck/{addr}", s.handleStuck).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newQueueView(s.reader.Queue()))
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := s.reader.Order(id)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

func (s *Server) handlePairs(w http.ResponseWriter, _ *http.Request) {
	pairs := s.reader.Pairs()
	views := make([]pairView, 0, len(pairs))
	for _, p := range pairs {
		views = append(views, newPairView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["pair"])
	if !ok {
		s.writeError(w, http.StatusBadRequest, errs.ErrInvalidPair)
		return
	}
	info, err := s.reader.Pair(addr)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newPairView(info))
}

func (s *Server) handleStuck(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(mux.Vars(r)["addr"])
	if !ok {
		s.writeError(w, http.StatusBadRequest, errs.ErrAddressZero)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"amount":  s.reader.StuckFunds(addr).Dec(),
	})
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(s)
	return addr, addr != (common.Address{})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrOrderNotFound), errors.Is(err, errs.ErrPairNotFound):
		return http.StatusNotFound
	case errs.ClassOf(err) == errs.Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
