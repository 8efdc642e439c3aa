package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/binpoints/internal/auth"
	"github.com/dukerupert/binpoints/internal/store"
)

type UserHandler struct {
	userStore *store.UserStore
	logger    *slog.Logger
}

func NewUserHandler(us *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, logger: logger}
}

// Me returns the caller's account including the current balance.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.userStore.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
