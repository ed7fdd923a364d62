package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
)

type setLanguageRequest struct {
	Language i18n.Language `json:"language"`
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := s.i18n.Language()
	s.respondWithJSON(w, r, http.StatusOK, languageInfo{Code: lang, Name: i18n.LanguageName(lang)})
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req setLanguageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	if !s.i18n.SetLanguage(r.Context(), req.Language) {
		s.respondWithError(w, r, http.StatusBadRequest, "Unsupported language", suiteprefs.ErrUnsupportedLanguage)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, languageInfo{Code: req.Language, Name: i18n.LanguageName(req.Language)})
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	supported := s.i18n.SupportedLanguages()
	out := make([]languageInfo, 0, len(supported))
	for _, l := range supported {
		out = append(out, languageInfo{Code: l, Name: i18n.LanguageName(l)})
	}
	s.respondWithJSON(w, r, http.StatusOK, out)
}

type translationResponse struct {
	Key      string        `json:"key"`
	Text     string        `json:"text"`
	Language i18n.Language `json:"language"`
}

// handleTranslate uses the query parameters as interpolation params.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var params map[string]any
	if q := r.URL.Query(); len(q) > 0 {
		params = make(map[string]any, len(q))
		for name := range q {
			params[name] = q.Get(name)
		}
	}
	s.respondWithJSON(w, r, http.StatusOK, translationResponse{
		Key:      key,
		Text:     s.i18n.T(key, params),
		Language: s.i18n.Language(),
	})
}

type formatResponse struct {
	Language i18n.Language `json:"language"`
	Number   string        `json:"number,omitempty"`
	Date     string        `json:"date,omitempty"`
	Relative string        `json:"relative,omitempty"`
}

// handleFormat formats ?number=, ?date= (YYYY-MM-DD) and ?relative=&unit= in the
// current language.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := formatResponse{Language: s.i18n.Language()}

	if v := q.Get("number"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid number", err)
			return
		}
		resp.Number = s.i18n.FormatNumber(n)
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid date", err)
			return
		}
		resp.Date = s.i18n.FormatDate(d)
	}
	if v := q.Get("relative"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid relative value", err)
			return
		}
		unit := i18n.Unit(q.Get("unit"))
		if unit == "" {
			unit = i18n.UnitDay
		}
		out, err := s.i18n.FormatRelativeTime(n, unit)
		if err != nil {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid relative unit", err)
			return
		}
		resp.Relative = out
	}
	s.respondWithJSON(w, r, http.StatusOK, resp)
}
