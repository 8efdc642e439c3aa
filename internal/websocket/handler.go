package websocket

import (
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades requests to feed connections. originPatterns
// follows ws.AcceptOptions; an empty list admits same-origin browsers and
// non-browser clients only.
func HandleWebSocket(hub *Hub, logger *slog.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Feed connections outlive the server's per-request timeouts.
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(time.Time{}); err != nil {
			logger.Debug("clear read deadline", "error", err)
		}
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			logger.Debug("clear write deadline", "error", err)
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		logger.Debug("feed client connected", "remote", r.RemoteAddr)
		NewClient(hub, conn).Run(r.Context())
		logger.Debug("feed client disconnected", "remote", r.RemoteAddr)
	}
}
