package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
)

// RegisterRESTRoutes registers all REST API endpoints on the web server's mux.
// Called from WebServer.registerRoutes after the mux is created.
func (ws *WebServer) RegisterRESTRoutes() {
	ws.mux.Handle("GET /api/v1/who", ws.guard(accessAnyone, ws.handleWho))
	ws.mux.Handle("POST /api/v1/command", ws.guard(accessCharacter, ws.handleCommand))
	ws.mux.Handle("GET /api/v1/mysteries", ws.guard(accessCharacter, ws.handleMysteries))
	ws.mux.Handle("GET /api/v1/mysteries/{id}", ws.guard(accessCharacter, ws.handleMystery))
	ws.mux.Handle("GET /api/v1/mysteries/{id}/journal", ws.guard(accessStaff, ws.handleJournal))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- WHO ---

func (ws *WebServer) handleWho(w http.ResponseWriter, r *http.Request) {
	type whoEntry struct {
		Name  string `json:"name"`
		Ref   int    `json:"ref"`
		OnFor string `json:"on_for"`
		Idle  string `json:"idle"`
	}

	g := ws.game
	now := time.Now()
	var entries []whoEntry

	g.mu.Lock()
	for _, dd := range g.Conns.AllDescriptors() {
		if dd.State != ConnConnected {
			continue
		}
		entries = append(entries, whoEntry{
			Name:  g.PlayerName(dd.Player),
			Ref:   int(dd.Player),
			OnFor: FormatConnTime(now.Sub(dd.ConnTime)),
			Idle:  FormatIdleTime(now.Sub(dd.LastCmd)),
		})
	}
	g.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"players": entries,
		"count":   len(entries),
	})
}

// --- Command Execution ---

func (ws *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	d, output := newCaptureDescriptor(claims.PlayerRef, clientAddr(r))

	g := ws.game
	g.mu.Lock()
	if _, ok := g.DB.Objects[claims.PlayerRef]; !ok {
		g.mu.Unlock()
		writeError(w, http.StatusNotFound, "character not found")
		return
	}
	DispatchCommand(g, d, req.Command)
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"output": *output,
	})
}

// --- Mysteries ---

type mysteryJSON struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Difficulty  int    `json:"difficulty"`
	Status      string `json:"status"`
	Clues       int    `json:"clues"`
	Found       int    `json:"found"`
	Percent     int    `json:"percent"`
	Completion  int    `json:"completion,omitempty"`
}

type clueJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Methods      string   `json:"methods,omitempty"`
	LeadsTo      []string `json:"leads_to,omitempty"`
	DiscoveredBy []int    `json:"discovered_by,omitempty"`
}

func summarize(m *mystery.Mystery, player gamedb.DBRef, staff bool) mysteryJSON {
	s := m.Summary()
	p := m.Progress(player)
	out := mysteryJSON{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Difficulty:  s.Difficulty,
		Status:      string(s.Status),
		Clues:       s.Clues,
		Found:       p.Found,
		Percent:     p.Percent,
	}
	if staff {
		out.Completion = s.Completion
	}
	return out
}

// mysterySummaries filters list down to what player may see. Caller holds
// the world lock.
func mysterySummaries(g *Game, player gamedb.DBRef, list []*mystery.Mystery) []mysteryJSON {
	staff := IsStaff(g, player)
	out := []mysteryJSON{}
	for _, m := range list {
		if staff || visibleTo(g, m, player) {
			out = append(out, summarize(m, player, staff))
		}
	}
	return out
}

// handleMysteries lists the mysteries visible to the caller; staff see all.
func (ws *WebServer) handleMysteries(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	g := ws.game
	status := r.URL.Query().Get("status")

	g.mu.Lock()
	var list []*mystery.Mystery
	if status != "" {
		st, err := mystery.ParseStatus(status)
		if err != nil {
			g.mu.Unlock()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list = g.Mysteries.ByStatus(st)
	} else {
		list = g.Mysteries.All()
	}
	out := mysterySummaries(g, claims.PlayerRef, list)
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"mysteries": out,
		"count":     len(out),
	})
}

// handleMystery returns one mystery. Players see only the clues they
// hold; staff see every clue and who found it.
func (ws *WebServer) handleMystery(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.PathValue("id"), "#"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mystery id")
		return
	}

	g := ws.game
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := g.Mysteries.Get(id)
	staff := IsStaff(g, claims.PlayerRef)
	if err != nil || (!staff && !visibleTo(g, m, claims.PlayerRef)) {
		writeError(w, http.StatusNotFound, "mystery not found")
		return
	}

	var clues []clueJSON
	if staff {
		for _, c := range m.ClueList() {
			cj := clueJSON{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Type:        string(c.Type),
				Methods:     c.MethodNames(),
				LeadsTo:     c.LeadsTo,
			}
			for _, ref := range c.DiscoveredBy {
				cj.DiscoveredBy = append(cj.DiscoveredBy, int(ref))
			}
			clues = append(clues, cj)
		}
	} else {
		for _, cid := range m.DiscoveredClues(claims.PlayerRef) {
			c, err := m.Clue(cid)
			if err != nil {
				continue
			}
			clues = append(clues, clueJSON{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Type:        string(c.Type),
				LeadsTo:     c.LeadsTo,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mystery": summarize(m, claims.PlayerRef, staff),
		"clues":   clues,
	})
}

// handleJournal returns recent journal entries for a mystery.
func (ws *WebServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimPrefix(r.PathValue("id"), "#"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mystery id")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	g := ws.game
	g.mu.Lock()
	journal := g.Journal
	g.mu.Unlock()

	if journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}
	entries, err := journal.Recent(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("journal: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
