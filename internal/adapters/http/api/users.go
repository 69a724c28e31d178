package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/tapscore/pkg/logger"
)

// UserDependencies defines the interface for remote user reads.
type UserDependencies interface {
	UserByUID(ctx context.Context, uid string) (UserRecord, bool, error)
	Users(ctx context.Context) ([]UserRecord, error)
}

// UsersHandler handles user record requests.
type UsersHandler struct {
	deps UserDependencies
	log  logger.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies, log logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, log: log}
}

// HandleGetUser handles GET /users/uid/{uid} requests.
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /users/uid/
	uid := strings.TrimPrefix(r.URL.Path, "/users/uid/")
	if uid == "" || strings.Contains(uid, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, found, err := h.deps.UserByUID(r.Context(), uid)
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	if !found {
		writeMessage(w, http.StatusNotFound, "not_found", fmt.Sprintf("User with uid '%s' not found", uid))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleListUsers handles GET /users/ requests.
func (h *UsersHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_users"
	if r.Method != http.MethodGet || r.URL.Path != "/users/" {
		http.NotFound(w, r)
		return
	}
	recs, err := h.deps.Users(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	if recs == nil {
		recs = []UserRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
