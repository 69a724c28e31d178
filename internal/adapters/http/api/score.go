package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/tapscore/internal/domain/score"
	"github.com/okian/tapscore/pkg/logger"
)

// ScoreDependencies defines the interface for score lookups.
type ScoreDependencies interface {
	CurrentScore(ctx context.Context) (score.Result, error)
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
	log  logger.Logger
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, log logger.Logger) *ScoreHandler {
	return &ScoreHandler{deps: deps, log: log}
}

type scoreResponse struct {
	Score int64 `json:"score"`
}

// HandleGetScore handles GET /score requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.CurrentScore(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}

	switch res.Status {
	case score.StatusFound:
		writeJSON(w, http.StatusOK, scoreResponse{Score: res.Score})
	case score.StatusNoSubjectHeld:
		writeMessage(w, http.StatusNotFound, res.Status.String(),
			"No UID is currently saved. Please POST a UID to /tap first.")
	case score.StatusSubjectNotFound:
		writeMessage(w, http.StatusNotFound, res.Status.String(),
			fmt.Sprintf("User with uid '%s' not found", res.UID))
	case score.StatusScoreMissing:
		writeMessage(w, http.StatusNotFound, res.Status.String(),
			fmt.Sprintf("score not found for user with uid '%s'", res.UID))
	default:
		writeFailure(r.Context(), w, h.log, NewKind(op, fmt.Errorf("unexpected score status %s", res.Status)))
	}
}
