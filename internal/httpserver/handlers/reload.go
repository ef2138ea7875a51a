package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

type reloadResponse struct {
	Status string `json:"status"`
}

// Reload triggers a manual bookmark import
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.BookmarkReloadTrigger == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "bookmark import is not configured"})
			return
		}

		select {
		case d.BookmarkReloadTrigger <- struct{}{}:
			d.Logger.Info("manual bookmark import triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, reloadResponse{Status: "triggered"})
		default:
			d.Logger.Warn("bookmark import already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, reloadResponse{Status: "pending"})
		}
	}
}
