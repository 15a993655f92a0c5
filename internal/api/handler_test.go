package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/nextplay/internal/catalog"
	"github.com/kalambet/nextplay/internal/llm"
	"github.com/kalambet/nextplay/internal/recommend"
	"github.com/kalambet/nextplay/internal/storage"
)

type mockRecommender struct {
	result recommend.Result
	err    error
	calls  int
	got    []string
}

func (m *mockRecommender) Recommend(_ context.Context, favorites []string) (recommend.Result, error) {
	m.calls++
	m.got = favorites
	return m.result, m.err
}

type mockCatalog struct {
	err         error
	reloads     int
	invalidates int
}

func (m *mockCatalog) Games(forceReload bool) ([]storage.Game, error) {
	if forceReload {
		m.reloads++
	}
	return nil, m.err
}

func (m *mockCatalog) Invalidate() { m.invalidates++ }

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doRequest(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, w.Body.String())
	}
	return body["error"]
}

func TestStatus(t *testing.T) {
	h := NewHandler(Deps{})
	w := doRequest(h, http.MethodGet, "/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`body = %v, want {"status":"ok"}`, body)
	}
}

func TestRecommend_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "favorites please"},
		{"missing favorites", `{}`},
		{"favorites null", `{"favorites": null}`},
		{"favorites string", `{"favorites": "Portal 2"}`},
		{"favorites object", `{"favorites": {"a": 1}}`},
		{"favorites number array", `{"favorites": [1, 2]}`},
		{"empty array", `{"favorites": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecommender{}
			h := NewHandler(Deps{Recommender: rec, Catalog: &mockCatalog{}})

			w := doRequest(h, http.MethodPost, "/recommend", "", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if msg := errorMessage(t, w); msg != "favorites must be a non-empty array" {
				t.Errorf("error = %q", msg)
			}
			if rec.calls != 0 {
				t.Error("pipeline invoked for an invalid request")
			}
		})
	}
}

func TestRecommend_Success(t *testing.T) {
	name := "Celeste"
	rating := 9.2
	id := "celeste"
	rec := &mockRecommender{
		result: recommend.Result{
			Summary: "platformers with heart",
			Recommendations: []recommend.RecommendedGame{
				{ID: &id, Name: &name, Genres: []string{"Platformer"}, Rating: &rating, Reason: "tight controls"},
			},
		},
	}
	h := NewHandler(Deps{Recommender: rec, Catalog: &mockCatalog{}})

	w := doRequest(h, http.MethodPost, "/recommend", "", `{"favorites": ["Hollow Knight"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if len(rec.got) != 1 || rec.got[0] != "Hollow Knight" {
		t.Errorf("pipeline received favorites %v", rec.got)
	}

	var result recommend.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("response is not a result: %v", err)
	}
	if result.Summary != "platformers with heart" {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(result.Recommendations) != 1 || *result.Recommendations[0].Name != "Celeste" {
		t.Errorf("recommendations = %+v", result.Recommendations)
	}
}

func TestRecommend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"unconfigured", llm.ErrUnconfigured, "recommendation model is not configured"},
		{"catalog down", catalog.ErrUnavailable, "game catalog is unavailable"},
		{"malformed output", recommend.ErrMalformedOutput, "model returned an unusable response"},
		{"wrapped malformed", errors.Join(errors.New("context"), recommend.ErrMalformedOutput), "model returned an unusable response"},
		{"unknown", errors.New("surprise"), "recommendation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{Recommender: &mockRecommender{err: tt.err}, Catalog: &mockCatalog{}})
			w := doRequest(h, http.MethodPost, "/recommend", "", `{"favorites": ["x"]}`)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}
			if msg := errorMessage(t, w); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	h := NewHandler(Deps{Catalog: &mockCatalog{}, Token: "secret"})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/admin/reload-candidates"},
		{http.MethodGet, "/admin/games"},
		{http.MethodPut, "/admin/games"},
		{http.MethodPost, "/admin/games"},
	} {
		w := doRequest(h, tc.method, tc.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", tc.method, tc.path, w.Code)
		}
		w = doRequest(h, tc.method, tc.path, "wrong", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token: status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestReloadCandidates(t *testing.T) {
	cat := &mockCatalog{}
	h := NewHandler(Deps{Catalog: cat, Token: "secret"})

	w := doRequest(h, http.MethodPost, "/admin/reload-candidates", "secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if cat.reloads != 1 {
		t.Errorf("forced reloads = %d, want 1", cat.reloads)
	}

	cat.err = errors.New("disk on fire")
	w = doRequest(h, http.MethodPost, "/admin/reload-candidates", "secret", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if msg := errorMessage(t, w); msg != "failed to reload candidates" {
		t.Errorf("error = %q", msg)
	}
}

func TestReplaceGames(t *testing.T) {
	store := newTestStore(t)
	cat := &mockCatalog{}
	h := NewHandler(Deps{Catalog: cat, Store: store, Token: "secret"})

	body := `[{"name": "Portal 2", "genres": ["Puzzle"], "rating": 9.5}, {"id": "h", "name": "Hades"}]`
	w := doRequest(h, http.MethodPut, "/admin/games", "secret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if cat.invalidates != 1 {
		t.Errorf("cache invalidated %d times, want 1", cat.invalidates)
	}

	games, err := store.ListGames()
	if err != nil {
		t.Fatalf("ListGames() error: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("stored %d games, want 2", len(games))
	}
	// Missing ids get generated, supplied ids are kept.
	if games[0].Name == "Portal 2" && games[0].ID == "" {
		t.Error("game without id should receive one")
	}
	if g, err := store.GetGame("h"); err != nil || g.Name != "Hades" {
		t.Errorf("GetGame(h) = %+v, %v", g, err)
	}
}

func TestReplaceGames_RejectsNameless(t *testing.T) {
	store := newTestStore(t)
	cat := &mockCatalog{}
	h := NewHandler(Deps{Catalog: cat, Store: store, Token: "secret"})

	w := doRequest(h, http.MethodPut, "/admin/games", "secret", `[{"name": "ok"}, {"rating": 5}]`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if cat.invalidates != 0 {
		t.Error("cache invalidated on a rejected request")
	}
	if n, _ := store.CountGames(); n != 0 {
		t.Errorf("store has %d games after rejected replace, want 0", n)
	}
}

func TestUpsertGame(t *testing.T) {
	store := newTestStore(t)
	cat := &mockCatalog{}
	h := NewHandler(Deps{Catalog: cat, Store: store, Token: "secret"})

	w := doRequest(h, http.MethodPost, "/admin/games", "secret", `{"name": "Tunic", "genres": ["Adventure"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var g storage.Game
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatalf("response is not a game: %v", err)
	}
	if g.ID == "" {
		t.Error("upserted game should have a generated id")
	}
	if cat.invalidates != 1 {
		t.Errorf("cache invalidated %d times, want 1", cat.invalidates)
	}

	w = doRequest(h, http.MethodPost, "/admin/games", "secret", `{"genres": ["Adventure"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("nameless upsert: status = %d, want 400", w.Code)
	}
}

func TestListGamesEndpoint(t *testing.T) {
	store := newTestStore(t)
	h := NewHandler(Deps{Catalog: &mockCatalog{}, Store: store, Token: "secret"})

	w := doRequest(h, http.MethodGet, "/admin/games", "secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty catalog body = %q, want []", got)
	}

	if err := store.UpsertGame(storage.Game{ID: "1", Name: "Hades", Genres: []string{"Roguelike"}}); err != nil {
		t.Fatalf("UpsertGame() error: %v", err)
	}
	w = doRequest(h, http.MethodGet, "/admin/games", "secret", "")
	var games []storage.Game
	if err := json.Unmarshal(w.Body.Bytes(), &games); err != nil {
		t.Fatalf("body is not a game list: %v", err)
	}
	if len(games) != 1 || games[0].Name != "Hades" {
		t.Errorf("games = %+v", games)
	}
}
