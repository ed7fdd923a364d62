package api

import (
	"net/http"
)

// handleListPreferences dumps every slot of the store's namespace as raw JSON.
// Slots that cannot be read are left out.
func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.respondWithError(w, r, http.StatusServiceUnavailable, "Failed to list preferences", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, map[string]any{
		"namespace":   s.store.Namespace(),
		"preferences": snapshot,
	})
}
