package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/binpoints/internal/auth"
	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/websocket"
)

// LedgerHandler serves the two point-moving workflows and the caller's
// redemption history.
type LedgerHandler struct {
	svc    *ledger.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewLedgerHandler(svc *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, hub: hub, logger: logger}
}

func (h *LedgerHandler) publish(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Publish(ev)
	}
}

type scanRequest struct {
	QRID      flexID  `json:"qr_id"`
	TrashType string  `json:"trash_type"`
	ItemCount flexInt `json:"item_count"`
}

func (h *LedgerHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.svc.Scan(r.Context(), ledger.ScanRequest{
		UserID:    auth.UserID(r.Context()),
		QRID:      int64(req.QRID),
		TrashType: req.TrashType,
		ItemCount: int(req.ItemCount),
	})
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	h.publish(websocket.NewEvent("drop", "created", res.DropID, map[string]any{
		"bin_id":        res.BinID,
		"trash_type":    req.TrashType,
		"item_count":    int(req.ItemCount),
		"points_earned": res.PointsEarned,
	}))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "trash drop recorded successfully",
		"points_earned": res.PointsEarned,
		"total_points":  res.Balance,
		"drop_id":       res.DropID,
	})
}

type redeemRequest struct {
	RewardID flexID `json:"reward_id"`
}

func (h *LedgerHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.svc.Redeem(r.Context(), ledger.RedeemRequest{
		UserID:   auth.UserID(r.Context()),
		RewardID: int64(req.RewardID),
	})
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}

	h.publish(websocket.NewEvent("redemption", "created", res.RedemptionID, map[string]any{
		"reward_id":       res.RewardID,
		"points_deducted": res.PointsDeducted,
	}))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "reward redeemed successfully",
		"points_deducted": res.PointsDeducted,
		"total_points":    res.Balance,
		"redemption_id":   res.RedemptionID,
	})
}

// History lists the redemptions of the user in the path. Callers may only
// read their own.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	// Unparseable ids become 0 and are rejected by the service.
	owner, _ := strconv.ParseInt(r.PathValue("user_id"), 10, 64)

	entries, err := h.svc.RedemptionHistory(r.Context(), auth.UserID(r.Context()), owner)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LedgerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ledger": h.svc.Stats()}
	if h.hub != nil {
		resp["feed"] = map[string]any{
			"clients": h.hub.ClientCount(),
			"dropped": h.hub.Dropped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
