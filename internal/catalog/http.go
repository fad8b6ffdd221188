package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"AniTrack/pkg/kit"
)

type Server struct {
	Resolver Source
	Jikan    *JikanClient
	Log      *zap.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.search)
	r.Get("/random", s.random)
	r.Get("/{malId}", s.get)
	r.Get("/{malId}/recommendations", s.recommendations)

	return r
}

type paginationResp struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	query := r.URL.Query().Get("q")
	if len(query) > 200 {
		kit.WriteError(w, r, http.StatusBadRequest, "search term too long", map[string]any{"max_len": 200})
		return
	}

	res, err := s.Jikan.SearchAnime(r.Context(), page, query)
	if err != nil {
		s.writeUpstreamError(w, r, err, "search anime")
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"data": res.Items,
		"pagination": paginationResp{
			Page:       res.Page,
			PerPage:    res.PerPage,
			Total:      res.Total,
			TotalPages: res.TotalPages,
		},
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}

	a, err := s.Resolver.Resolve(r.Context(), malID)
	if err != nil {
		s.writeUpstreamError(w, r, err, "resolve anime")
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{"data": a})
}

func (s *Server) random(w http.ResponseWriter, r *http.Request) {
	a, err := s.Jikan.RandomAnime(r.Context())
	if err != nil {
		s.writeUpstreamError(w, r, err, "random anime")
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{"data": a})
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}

	recs, err := s.Jikan.Recommendations(r.Context(), malID)
	if err != nil {
		s.writeUpstreamError(w, r, err, "anime recommendations")
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{"data": recs})
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "anime not found", nil)
	case errors.Is(err, ErrUpstreamUnavailable):
		if s.Log != nil {
			s.Log.Warn(op+" failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusBadGateway, "anime api unavailable", nil)
	default:
		if s.Log != nil {
			s.Log.Error(op+" failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func malIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	malID, err := strconv.ParseInt(chi.URLParam(r, "malId"), 10, 64)
	if err != nil || malID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "malId must be a positive integer", nil)
		return 0, false
	}
	return malID, true
}
