package watchlist_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"AniTrack/internal/auth"
	"AniTrack/internal/watchlist"
)

const testSecret = "test-secret-test-secret-test-secret"

type httpFixture struct {
	*fixture
	ts    *httptest.Server
	token string
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()

	f := newFixture(t)
	tokens := auth.NewTokenMaker(testSecret)

	tok, err := tokens.New(f.userID, "tester", auth.TokenTTL)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	srv := &watchlist.Server{Service: f.svc}
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(watchlist.RequireAuth(tokens))
		pr.Mount("/animelist", srv.Routes())
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return &httpFixture{fixture: f, ts: ts, token: tok}
}

func (f *httpFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func (f *httpFixture) patchRaw(t *testing.T, path, body string, wantStatus int) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPatch, f.ts.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("PATCH %s %s: status %d, want %d", path, body, resp.StatusCode, wantStatus)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	f := newHTTPFixture(t)

	resp, err := http.Get(f.ts.URL + "/animelist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAddEndpoint(t *testing.T) {
	f := newHTTPFixture(t)
	f.upstreamAnime(5141, "Ergo Proxy")

	resp := f.do(t, http.MethodPost, "/animelist", map[string]any{"mal_id": 5141})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	if _, ok, _ := f.entries.Get(context.Background(), f.userID, 5141); !ok {
		t.Fatal("entry not created")
	}
}

func TestAddEndpointRejectsBadMalID(t *testing.T) {
	f := newHTTPFixture(t)

	resp := f.do(t, http.MethodPost, "/animelist", map[string]any{"mal_id": -2})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPatchDistinguishesNullFromAbsent(t *testing.T) {
	f := newHTTPFixture(t)
	f.cacheAnime(t, 9, "Monster")
	f.insertEntry(t, 9, watchlist.StatusWatching, nil)
	ctx := context.Background()

	f.patchRaw(t, "/animelist/9", `{"score": 8, "notes": "so good"}`, http.StatusNoContent)

	e, _, _ := f.entries.Get(ctx, f.userID, 9)
	if e.Score == nil || *e.Score != 8 {
		t.Fatalf("score = %v", e.Score)
	}

	// Absent score: untouched.
	f.patchRaw(t, "/animelist/9", `{"status": "completed"}`, http.StatusNoContent)
	e, _, _ = f.entries.Get(ctx, f.userID, 9)
	if e.Score == nil || *e.Score != 8 {
		t.Fatalf("absent field was modified, score = %v", e.Score)
	}
	if e.Notes != "so good" {
		t.Fatalf("notes = %q", e.Notes)
	}

	// Explicit null: cleared.
	f.patchRaw(t, "/animelist/9", `{"score": null}`, http.StatusNoContent)
	e, _, _ = f.entries.Get(ctx, f.userID, 9)
	if e.Score != nil {
		t.Fatalf("null did not clear score, got %v", *e.Score)
	}
}

func TestPatchValidation(t *testing.T) {
	f := newHTTPFixture(t)
	f.cacheAnime(t, 9, "Monster")
	f.insertEntry(t, 9, watchlist.StatusWatching, nil)

	longNotes, _ := json.Marshal(string(bytes.Repeat([]byte("x"), 401)))

	cases := []struct {
		name string
		body string
	}{
		{"score out of range", `{"score": 11}`},
		{"score zero", `{"score": 0}`},
		{"bad status", `{"status": "dropped"}`},
		{"null status", `{"status": null}`},
		{"notes too long", `{"notes": ` + string(longNotes) + `}`},
		{"unknown field", `{"rating": 5}`},
		{"empty patch", `{}`},
		{"bad date", `{"started_date": "not a date"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.patchRaw(t, "/animelist/9", tc.body, http.StatusBadRequest)
		})
	}
}

func TestPatchUnknownEntryIs404(t *testing.T) {
	f := newHTTPFixture(t)
	f.patchRaw(t, "/animelist/777", `{"score": 5}`, http.StatusNotFound)
}

func TestDeleteEndpointIsIdempotent(t *testing.T) {
	f := newHTTPFixture(t)
	f.cacheAnime(t, 5, "Hellsing")
	f.insertEntry(t, 5, watchlist.StatusWatching, nil)

	for i := 0; i < 2; i++ {
		resp := f.do(t, http.MethodDelete, "/animelist/5", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete %d: status = %d, want 204", i, resp.StatusCode)
		}
	}
}

func TestListEndpointPaginationShape(t *testing.T) {
	f := newHTTPFixture(t)
	f.cacheAnime(t, 1, "Akira")
	f.insertEntry(t, 1, watchlist.StatusCompleted, nil)

	resp := f.do(t, http.MethodGet, "/animelist?status=completed", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Animes []watchlist.ListItem `json:"animes"`
		} `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(body.Data.Animes) != 1 || body.Data.Animes[0].Anime.Title != "Akira" {
		t.Fatalf("animes = %+v", body.Data.Animes)
	}
	p := body.Pagination
	if p.Page != 1 || p.PerPage != watchlist.PerPage || p.Total != 1 || p.TotalPages != 1 {
		t.Fatalf("pagination = %+v", p)
	}
}

func TestListEndpointRejectsBadStatus(t *testing.T) {
	f := newHTTPFixture(t)

	resp := f.do(t, http.MethodGet, "/animelist?status=dropped", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
