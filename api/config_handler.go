package api

import (
	"net/http"

	"github.com/seenimoa/moodpulse/internal/config"
)

// handleGetConfig returns the running configuration.
// Secrets (API key, Redis URL) are excluded via json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.cfg,
	})
}

// handleGetConfigKeys returns the masked status of every credential.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.Credentials(s.cfg),
	})
}
