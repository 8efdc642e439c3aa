package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/binpoints/internal/ledger"
	"github.com/dukerupert/binpoints/internal/model"
	"github.com/dukerupert/binpoints/internal/store"
)

const maxQRCodesPerRequest = 100

// BinHandler provisions smart bins and their QR codes. Admin only.
type BinHandler struct {
	binStore *store.BinStore
	svc      *ledger.Service
	logger   *slog.Logger
}

func NewBinHandler(bs *store.BinStore, svc *ledger.Service, logger *slog.Logger) *BinHandler {
	return &BinHandler{binStore: bs, svc: svc, logger: logger}
}

type createBinRequest struct {
	Location string `json:"location"`
}

func (h *BinHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	bin, err := h.binStore.Create(r.Context(), req.Location)
	if err != nil {
		h.logger.Error("failed to create bin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create bin")
		return
	}
	writeJSON(w, http.StatusCreated, bin)
}

func (h *BinHandler) List(w http.ResponseWriter, r *http.Request) {
	bins, err := h.binStore.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list bins", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bins")
		return
	}
	if bins == nil {
		bins = []model.Bin{}
	}
	writeJSON(w, http.StatusOK, bins)
}

type issueQRCodesRequest struct {
	Count int `json:"count"`
}

func (h *BinHandler) IssueQRCodes(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid bin_id")
		return
	}

	var req issueQRCodesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Count < 1 || req.Count > maxQRCodesPerRequest {
		writeError(w, http.StatusBadRequest, "count must be between 1 and 100")
		return
	}

	bin, err := h.binStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get bin", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get bin")
		return
	}
	if bin == nil {
		writeError(w, http.StatusNotFound, "bin not found")
		return
	}

	codes, err := h.binStore.IssueQRCodes(r.Context(), id, req.Count)
	if err != nil {
		h.logger.Error("failed to issue qr codes", "bin_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue qr codes")
		return
	}
	h.logger.Info("issued qr codes", "bin_id", id, "count", len(codes))
	writeJSON(w, http.StatusCreated, codes)
}

// ListQRCodes returns every code of the bin, newest first.
func (h *BinHandler) ListQRCodes(w http.ResponseWriter, r *http.Request) {
	// Unparseable ids become 0 and are rejected by the service.
	id, _ := parseIDParam(r)

	codes, err := h.svc.QRCodesForBin(r.Context(), id)
	if err != nil {
		writeLedgerError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}
