package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
)

type webEnv struct {
	*testEnv
	ws *WebServer
}

func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	e := newTestEnv(t)
	if err := SetPassword(e.game.DB, refBob, "hunter2"); err != nil {
		t.Fatal(err)
	}
	if err := SetPassword(e.game.DB, refWiz, "potrzebie"); err != nil {
		t.Fatal(err)
	}
	ws := NewWebServer(e.game, WebConfig{
		Insecure:  true,
		RateLimit: 1000,
		JWTSecret: "test-secret",
		JWTExpiry: 3600,
		Metrics:   true,
	})
	return &webEnv{testEnv: e, ws: ws}
}

// do sends a request through the full middleware chain.
func (w *webEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	w.ws.Handler().ServeHTTP(rec, req)
	return rec
}

func (w *webEnv) login(t *testing.T, name, password string) string {
	t.Helper()
	rec := w.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"name": name, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", name, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRESTLogin(t *testing.T) {
	w := newWebEnv(t)
	if tok := w.login(t, "Bob", "hunter2"); tok == "" {
		t.Fatal("empty token")
	}
	rec := w.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"name": "Bob", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", rec.Code)
	}
}

func TestRESTRequiresToken(t *testing.T) {
	w := newWebEnv(t)
	for _, path := range []string{"/api/v1/mysteries", "/api/v1/mysteries/1"} {
		if rec := w.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status %d, want 401", path, rec.Code)
		}
		if rec := w.do(t, http.MethodGet, path, "forged", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: status %d, want 401", path, rec.Code)
		}
	}
}

func TestRESTWhoAndHealth(t *testing.T) {
	w := newWebEnv(t)
	rec := w.do(t, http.MethodGet, "/api/v1/who", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("who: status %d", rec.Code)
	}
	who := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if who.Count != 2 {
		t.Errorf("who count = %d, want 2", who.Count)
	}

	rec = w.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRESTMysteryVisibility(t *testing.T) {
	w := newWebEnv(t)
	open := w.newMystery(t, "Open Case", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	closed := w.newMystery(t, "Closed Circle", "Sigil", "A chalk sigil.")
	closed.SetAccessRules([]mystery.Rule{mystery.Group("lodge")})
	if _, err := open.Grant(refBob, "1"); err != nil {
		t.Fatal(err)
	}

	bob := w.login(t, "Bob", "hunter2")
	wiz := w.login(t, "Wizard", "potrzebie")

	type listResp struct {
		Mysteries []mysteryJSON `json:"mysteries"`
		Count     int           `json:"count"`
	}
	list := decode[listResp](t, w.do(t, http.MethodGet, "/api/v1/mysteries", bob, nil))
	if list.Count != 1 || list.Mysteries[0].Title != "Open Case" {
		t.Fatalf("Bob sees %+v, want only Open Case", list.Mysteries)
	}
	if got := list.Mysteries[0]; got.Found != 1 || got.Percent != 50 || got.Completion != 0 {
		t.Errorf("Bob's summary = %+v", got)
	}

	list = decode[listResp](t, w.do(t, http.MethodGet, "/api/v1/mysteries", wiz, nil))
	if list.Count != 2 {
		t.Errorf("staff sees %d mysteries, want 2", list.Count)
	}
	if rec := w.do(t, http.MethodGet, "/api/v1/mysteries?status=bogus", wiz, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: %d, want 400", rec.Code)
	}

	if rec := w.do(t, http.MethodGet, "/api/v1/mysteries/2", bob, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Bob reading a closed mystery: %d, want 404", rec.Code)
	}

	type detailResp struct {
		Mystery mysteryJSON `json:"mystery"`
		Clues   []clueJSON  `json:"clues"`
	}
	detail := decode[detailResp](t, w.do(t, http.MethodGet, "/api/v1/mysteries/1", bob, nil))
	if len(detail.Clues) != 1 || detail.Clues[0].Name != "Rumor" {
		t.Errorf("Bob's clues = %+v, want only Rumor", detail.Clues)
	}
	if detail.Clues[0].DiscoveredBy != nil {
		t.Error("players should not see who found a clue")
	}

	detail = decode[detailResp](t, w.do(t, http.MethodGet, "/api/v1/mysteries/1", wiz, nil))
	if len(detail.Clues) != 2 {
		t.Fatalf("staff clues = %d, want 2", len(detail.Clues))
	}
	if got := detail.Clues[0].DiscoveredBy; len(got) != 1 || got[0] != int(refBob) {
		t.Errorf("discovered_by = %v, want [%d]", got, refBob)
	}
	if detail.Mystery.Completion != 50 {
		t.Errorf("completion = %d, want 50", detail.Mystery.Completion)
	}
}

func TestRESTCommandRunsAsCharacter(t *testing.T) {
	w := newWebEnv(t)
	w.newMystery(t, "Web Case", "Footprint", "A muddy footprint by the door.")
	bob := w.login(t, "Bob", "hunter2")

	rec := w.do(t, http.MethodPost, "/api/v1/command", bob, map[string]string{"command": "+mystery/search"})
	if rec.Code != http.StatusOK {
		t.Fatalf("command: status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[struct {
		Output []string `json:"output"`
	}](t, rec)
	assertContains(t, strings.Join(out.Output, "\n"), "Wits + Investigation")

	m, _ := w.game.Mysteries.Get(1)
	if !m.HasDiscovered(refBob, "1") {
		t.Error("web search should discover the clue")
	}

	if rec := w.do(t, http.MethodPost, "/api/v1/command", bob, map[string]string{"command": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank command: %d, want 400", rec.Code)
	}

	w.game.DestroyObject(refBob)
	if rec := w.do(t, http.MethodPost, "/api/v1/command", bob, map[string]string{"command": "look"}); rec.Code != http.StatusNotFound {
		t.Errorf("destroyed character: %d, want 404", rec.Code)
	}
}

func TestRESTJournalIsStaffOnly(t *testing.T) {
	w := newWebEnv(t)
	j, err := OpenJournal(t.TempDir() + "/journal.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	w.game.Journal = j
	w.game.EventBus.SubscribeGlobal(j)

	w.newMystery(t, "Logged", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	w.wiz.run(w.game, "+mystery/grant 1/1=Bob")
	j.Flush()

	bob := w.login(t, "Bob", "hunter2")
	if rec := w.do(t, http.MethodGet, "/api/v1/mysteries/1/journal", bob, nil); rec.Code != http.StatusForbidden {
		t.Errorf("player journal: %d, want 403", rec.Code)
	}

	wiz := w.login(t, "Wizard", "potrzebie")
	rec := w.do(t, http.MethodGet, "/api/v1/mysteries/1/journal?limit=5", wiz, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("staff journal: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		Entries []JournalEntry `json:"entries"`
	}](t, rec)
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp.Entries))
	}
	if e := resp.Entries[0]; e.Kind != events.EvDiscovery.String() || e.Character != refBob || e.Method != "staff" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRESTMetrics(t *testing.T) {
	w := newWebEnv(t)
	w.newMystery(t, "Counted", "Rumor", "Word on the street.")
	w.bob.run(w.game, "+mystery/search")

	rec := w.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, `chroniclemush_mysteries{status="solved"} 1`)
	assertContains(t, body, `chroniclemush_discoveries_total{method="search"} 1`)
	assertContains(t, body, "chroniclemush_investigation_rolls_total 1")
	assertContains(t, body, `chroniclemush_players_connected{transport="tcp"} 2`)
}
