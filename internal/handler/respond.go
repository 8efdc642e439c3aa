package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/binpoints/internal/ledger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeLedgerError maps a ledger failure onto an HTTP status. Causes of
// store failures are logged by the ledger and never reach the client.
func writeLedgerError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		logger.Error("unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, ledger.ErrStoreUnavailable.Message)
		return
	}

	switch le.Kind {
	case ledger.KindAccessDenied:
		writeError(w, http.StatusForbidden, le.Message)
	case ledger.KindStoreUnavailable, ledger.KindUnknown:
		writeError(w, http.StatusInternalServerError, ledger.ErrStoreUnavailable.Message)
	default:
		writeError(w, http.StatusBadRequest, le.Message)
	}
}

// flexID decodes an id sent either as a JSON number or as a numeric string.
// Anything else decodes to 0, which validation rejects.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	*f = flexID(parseFlexInt(b))
	return nil
}

// flexInt is flexID for counts.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt(parseFlexInt(b))
	return nil
}

func parseFlexInt(b []byte) int64 {
	b = bytes.TrimSpace(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = bytes.TrimSpace(b[1 : len(b)-1])
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
