package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"AniTrack/internal/catalog"
	"AniTrack/pkg/kit"
)

const (
	maxBodyBytes = 1 << 20
	maxNotesLen  = 400
	maxSearchLen = 200
)

type Server struct {
	Service *Service
	Log     *zap.Logger
}

// Routes are mounted behind RequireAuth; every handler can assume a caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Post("/", s.add)
	r.Patch("/{malId}", s.update)
	r.Delete("/{malId}", s.remove)

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	search := q.Get("q")
	if len(search) > maxSearchLen {
		kit.WriteError(w, r, http.StatusBadRequest, "search term too long", map[string]any{"max_len": maxSearchLen})
		return
	}

	status := Status(q.Get("status"))
	if status != "" && !status.Valid() {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid status", map[string]any{
			"allowed": []Status{StatusWatching, StatusCompleted, StatusPlanning},
		})
		return
	}

	if page <= 0 {
		page = 1
	}

	items, total, err := s.Service.List(r.Context(), u.ID, page, search, status)
	if err != nil {
		s.writeServiceError(w, r, err, "list anime entries")
		return
	}

	totalPages := (total + PerPage - 1) / PerPage
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"animes": items},
		"pagination": map[string]any{
			"page":        page,
			"per_page":    PerPage,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

type addReq struct {
	MalID int64 `json:"mal_id"`
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req addReq
	if err := dec.Decode(&req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.MalID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "mal_id must be a positive integer", nil)
		return
	}

	if err := s.Service.Add(r.Context(), u.ID, req.MalID); err != nil {
		s.writeServiceError(w, r, err, "add anime entry")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}

	patch, err := decodePatch(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := s.Service.Update(r.Context(), u.ID, malID, patch); err != nil {
		s.writeServiceError(w, r, err, "update anime entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}

	if err := s.Service.Remove(r.Context(), u.ID, malID); err != nil {
		s.writeServiceError(w, r, err, "remove anime entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodePatch reads a partial-update body. An absent key leaves the field
// alone; a key explicitly set to null clears it where the model allows.
func decodePatch(w http.ResponseWriter, r *http.Request) (Patch, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return Patch{}, errors.New("bad body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Patch{}, errors.New("bad json")
	}

	var p Patch
	for key, val := range fields {
		isNull := string(val) == "null"

		switch key {
		case "status":
			var st Status
			if isNull || json.Unmarshal(val, &st) != nil || !st.Valid() {
				return Patch{}, errors.New("invalid status")
			}
			p.Status = &st
		case "notes":
			var notes string
			if isNull || json.Unmarshal(val, &notes) != nil || len(notes) > maxNotesLen {
				return Patch{}, errors.New("notes must be a string of at most 400 characters")
			}
			p.Notes = &notes
		case "started_date":
			if isNull {
				p.ClearStarted = true
				continue
			}
			t, err := decodeDate(val)
			if err != nil {
				return Patch{}, errors.New("started_date must be a date string")
			}
			p.StartedDate = t
		case "finished_date":
			if isNull {
				p.ClearFinished = true
				continue
			}
			t, err := decodeDate(val)
			if err != nil {
				return Patch{}, errors.New("finished_date must be a date string")
			}
			p.FinishedDate = t
		case "score":
			if isNull {
				p.ClearScore = true
				continue
			}
			var score int
			if json.Unmarshal(val, &score) != nil || score < 1 || score > 10 {
				return Patch{}, errors.New("score must be an integer in the range 1-10")
			}
			p.Score = &score
		default:
			return Patch{}, errors.New("unknown field: " + key)
		}
	}

	if p.Empty() {
		return Patch{}, errors.New("no fields to update")
	}
	return p, nil
}

func decodeDate(raw json.RawMessage) (*time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Accept bare dates as well.
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func malIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	malID, err := strconv.ParseInt(chi.URLParam(r, "malId"), 10, 64)
	if err != nil || malID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "malId must be a positive integer", nil)
		return 0, false
	}
	return malID, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ErrInvalidUserID):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid user id", nil)
	case errors.Is(err, ErrEntryNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "anime entry not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "anime not found", nil)
	case errors.Is(err, catalog.ErrUpstreamUnavailable):
		if s.Log != nil {
			s.Log.Warn(op+" failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusBadGateway, "anime api unavailable", nil)
	case errors.Is(err, context.DeadlineExceeded):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		if s.Log != nil {
			s.Log.Error(op+" failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
