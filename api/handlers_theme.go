package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/theme"
)

type setThemeRequest struct {
	Mode   theme.Mode         `json:"mode"`
	Custom *theme.CustomTheme `json:"custom,omitempty"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, r, http.StatusOK, s.theme.State())
}

// handleSetTheme switches mode. A custom mode without a theme and without a
// previous custom theme is accepted and changes nothing.
func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req setThemeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	if err := s.theme.SetTheme(r.Context(), req.Mode, req.Custom); err != nil {
		if errors.Is(err, suiteprefs.ErrInvalidMode) || errors.Is(err, suiteprefs.ErrIncompleteTheme) {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid theme", err)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to set theme", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, s.theme.State())
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	if err := s.theme.Toggle(r.Context()); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to toggle theme", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, s.theme.State())
}

func (s *Server) handleExportTheme(w http.ResponseWriter, r *http.Request) {
	out, err := s.theme.ExportTheme()
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to export theme", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="theme.json"`)
	_, _ = io.WriteString(w, out)
}

func (s *Server) handleImportTheme(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	if !s.theme.ImportTheme(r.Context(), string(body)) {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid theme payload", nil)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, s.theme.State())
}

func (s *Server) handleThemeCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, s.root.CSS())
}

func (s *Server) handleThemePresets(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, r, http.StatusOK, theme.PredefinedThemes())
}

type documentResponse struct {
	Attributes map[string]string `json:"attributes"`
	Meta       map[string]string `json:"meta"`
}

// handleDocument reports what a page should put on its root element.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	st := s.root.State()
	s.respondWithJSON(w, r, http.StatusOK, documentResponse{Attributes: s.root.Attributes(), Meta: st.Meta})
}
