package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tapscore/internal/adapters/repository"
	"github.com/okian/tapscore/internal/domain/cooldown"
	"github.com/okian/tapscore/internal/domain/tap"
	"github.com/okian/tapscore/pkg/logger"
)

const maxTapBody = 1 << 16

// TapDependencies defines the interface for tap processing.
type TapDependencies interface {
	Tap(ctx context.Context, uid string) (tap.Result, error)
}

// TapHandler handles tap requests.
type TapHandler struct {
	deps TapDependencies
	log  logger.Logger
}

// NewTapHandler creates a new tap handler.
func NewTapHandler(deps TapDependencies, log logger.Logger) *TapHandler {
	return &TapHandler{deps: deps, log: log}
}

// tapRequest mirrors the OpenAPI schema for POST /tap.
type tapRequest struct {
	UID string `json:"uid"`
}

func (t tapRequest) validate() error {
	if strings.TrimSpace(t.UID) == "" {
		return errors.New("missing uid")
	}
	return nil
}

type tapResponse struct {
	Message string `json:"message"`
	UID     string `json:"uid,omitempty"`
}

// HandlePostTap handles POST /tap requests.
func (h *TapHandler) HandlePostTap(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_tap"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req tapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTapBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Tap(r.Context(), req.UID)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyUID) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}

	switch res.Status {
	case tap.StatusRateLimited:
		w.Header().Set("Retry-After", retryAfterSeconds(res.RetryAfter))
		writeMessage(w, http.StatusTooManyRequests, "rate_limited",
			fmt.Sprintf("Too many requests. Please wait %d seconds.", int(cooldown.Window.Seconds())))
	case tap.StatusToggledOff:
		writeJSON(w, http.StatusOK, tapResponse{
			Message: fmt.Sprintf("UID '%s' was already saved and has now been deleted.", res.UID),
		})
	case tap.StatusStored:
		writeJSON(w, http.StatusCreated, tapResponse{Message: "New UID saved successfully", UID: res.UID})
	default:
		writeFailure(r.Context(), w, h.log, NewKind(op, fmt.Errorf("unexpected tap status %s", res.Status)))
	}
}

// retryAfterSeconds rounds d up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
