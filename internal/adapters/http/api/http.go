// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/adapters/scorestore"
	"github.com/okian/tapscore/internal/domain/score"
	"github.com/okian/tapscore/internal/domain/types"
	"github.com/okian/tapscore/pkg/logger"
	"github.com/okian/tapscore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TapDependencies
	ScoreDependencies
	UserDependencies
	HealthDependencies
}

// UserRecord is the read shape returned by the user endpoints.
type UserRecord = types.UserRecord

// Server wires HTTP routes for the business API.
type Server struct {
	tapHandler    *TapHandler
	scoreHandler  *ScoreHandler
	usersHandler  *UsersHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers. A nil log falls back
// to the global logger.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	log = log.Named("api")
	return &Server{
		tapHandler:    NewTapHandler(deps, log),
		scoreHandler:  NewScoreHandler(deps, log),
		usersHandler:  NewUsersHandler(deps, log),
		healthHandler: NewHealthHandler(deps),
		statsHandler:  NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/tap", MetricsMiddleware(s.tapHandler.HandlePostTap, "tap"))
	mux.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score"))
	mux.HandleFunc("/users/uid/", MetricsMiddleware(s.usersHandler.HandleGetUser, "user"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleListUsers, "users"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// failureCode maps a backend failure to a stable error code.
func failureCode(err error) string {
	switch {
	case errors.Is(err, repository.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, scorestore.ErrRemoteStore):
		return "remote_error"
	case errors.Is(err, score.ErrInvalidScore):
		return "invalid_score"
	default:
		return "internal_error"
	}
}

// writeFailure logs err and answers with 500.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	code := failureCode(err)
	log.Error(ctx, "request failed",
		logger.String("request_id", RequestIDFromContext(ctx)),
		logger.String("code", code),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, code, err)
}
