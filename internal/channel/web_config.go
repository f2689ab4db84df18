package channel

import (
	"net/http"

	"babas/internal/config"
)

// handleGetConfig returns the running config with secrets masked. The
// config is read-only over HTTP; use `babas config set` and restart.
func (w *Web) handleGetConfig(rw http.ResponseWriter, r *http.Request) {
	if w.cfg == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "config not loaded"})
		return
	}
	writeJSON(rw, http.StatusOK, config.Sanitize(w.cfg))
}
