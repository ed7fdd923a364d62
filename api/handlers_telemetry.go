package api

import (
	"net/http"

	"github.com/CreativeUnicorns/suiteprefs/telemetry"
)

type consentRequest struct {
	Consent *bool `json:"consent"`
}

type consentResponse struct {
	Consent bool            `json:"consent"`
	State   telemetry.State `json:"state"`
}

func (s *Server) handleGetAnalyticsConsent(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, r, http.StatusOK, consentResponse{Consent: s.analytics.Consent(), State: s.analytics.State()})
}

func (s *Server) handleSetAnalyticsConsent(w http.ResponseWriter, r *http.Request) {
	consent, ok := s.decodeConsent(w, r)
	if !ok {
		return
	}
	s.analytics.SetConsent(r.Context(), consent)
	s.respondWithJSON(w, r, http.StatusOK, consentResponse{Consent: s.analytics.Consent(), State: s.analytics.State()})
}

func (s *Server) handleSetErrorConsent(w http.ResponseWriter, r *http.Request) {
	consent, ok := s.decodeConsent(w, r)
	if !ok {
		return
	}
	s.errors.SetConsent(r.Context(), consent)
	s.respondWithJSON(w, r, http.StatusOK, consentResponse{Consent: s.errors.Consent(), State: s.errors.State()})
}

func (s *Server) decodeConsent(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req consentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return false, false
	}
	if req.Consent == nil {
		s.respondWithError(w, r, http.StatusBadRequest, "consent is required", nil)
		return false, false
	}
	return *req.Consent, true
}

// handleTrackEvent accepts an event whatever the consent state; the gate decides
// whether it is sent, queued or dropped.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var ev telemetry.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	if ev.Name == "" {
		s.respondWithError(w, r, http.StatusBadRequest, "event name is required", nil)
		return
	}
	s.analytics.TrackEvent(r.Context(), ev)
	s.respondWithJSON(w, r, http.StatusAccepted, map[string]any{"state": s.analytics.State(), "queued": s.analytics.Queued()})
}

type captureRequest struct {
	Message string          `json:"message"`
	Level   telemetry.Level `json:"level"`
	Extra   map[string]any  `json:"extra"`
}

type captureResponse struct {
	EventID  string `json:"event_id,omitempty"`
	Accepted bool   `json:"accepted"`
}

// handleCaptureError records a client-side error report. An event that was
// sampled out or vetoed is still answered with 202 and accepted=false.
func (s *Server) handleCaptureError(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	if req.Message == "" {
		s.respondWithError(w, r, http.StatusBadRequest, "message is required", nil)
		return
	}
	if req.Level == "" {
		req.Level = telemetry.LevelError
	}
	id := s.errors.CaptureMessage(r.Context(), req.Message, req.Level, req.Extra)
	s.respondWithJSON(w, r, http.StatusAccepted, captureResponse{EventID: id, Accepted: id != ""})
}

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, r, http.StatusOK, s.errors.Breadcrumbs())
}
