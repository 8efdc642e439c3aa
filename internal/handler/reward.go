package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/binpoints/internal/model"
	"github.com/dukerupert/binpoints/internal/store"
	"github.com/dukerupert/binpoints/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, hub: hub, logger: logger}
}

func (h *RewardHandler) publish(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Publish(ev)
	}
}

type createRewardRequest struct {
	Name           string `json:"reward_name"`
	Description    string `json:"description"`
	RequiredPoints int    `json:"required_points"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRewardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "reward name is required")
		return
	}
	if req.RequiredPoints <= 0 {
		writeError(w, http.StatusBadRequest, "required points must be greater than 0")
		return
	}

	reward, err := h.rewardStore.Create(r.Context(), req.Name, req.Description, req.RequiredPoints)
	if err != nil {
		h.logger.Error("failed to create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.publish(websocket.NewEvent("reward", "created", reward.ID, nil))

	writeJSON(w, http.StatusCreated, reward)
}

// List returns the active rewards, cheapest first.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type updateRewardRequest struct {
	Name           *string         `json:"reward_name"`
	Description    *string         `json:"description"`
	RequiredPoints *int            `json:"required_points"`
	Active         json.RawMessage `json:"active"`
}

// Update applies a partial change; absent fields keep their value.
func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateRewardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := model.RewardPatch{Description: req.Description, RequiredPoints: req.RequiredPoints}

	if req.Active != nil && string(req.Active) != "null" {
		var active bool
		if err := json.Unmarshal(req.Active, &active); err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		patch.Active = &active
	}
	if req.RequiredPoints != nil && *req.RequiredPoints <= 0 {
		writeError(w, http.StatusBadRequest, "required points must be greater than 0")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "reward name is required")
			return
		}
		patch.Name = &name
	}

	reward, err := h.rewardStore.Update(r.Context(), id, patch)
	if err != nil {
		h.logger.Error("failed to update reward", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	h.publish(websocket.NewEvent("reward", "updated", id, map[string]any{"active": reward.Active}))

	writeJSON(w, http.StatusOK, reward)
}
