package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/gorilla/websocket"
)

// WebConfig holds configuration for the web server.
type WebConfig struct {
	Port        int
	Host        string
	Domain      string // Let's Encrypt domain
	Insecure    bool   // plain HTTP, no TLS at all
	CertFile    string
	KeyFile     string
	CertDir     string
	CORSOrigins []string
	RateLimit   int // requests per minute per client; 0 disables
	JWTSecret   string
	JWTExpiry   int
	Metrics     bool
}

// WebServer serves the REST API, the /ws game transport, health and
// metrics. It shares the world lock with the telnet server.
type WebServer struct {
	game      *Game
	httpSrv   *http.Server
	mux       *http.ServeMux
	auth      *AuthService
	rl        *rateLimiter
	origins   originPolicy
	upgrader  websocket.Upgrader
	metrics   *Metrics
	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewWebServer(game *Game, cfg WebConfig) *WebServer {
	ws := &WebServer{
		game:      game,
		mux:       http.NewServeMux(),
		auth:      NewAuthService(game, cfg.JWTSecret, cfg.JWTExpiry),
		rl:        newRateLimiter(cfg.RateLimit),
		origins:   newOriginPolicy(cfg.CORSOrigins),
		startTime: time.Now(),
		stop:      make(chan struct{}),
	}
	ws.upgrader = websocket.Upgrader{CheckOrigin: ws.origins.checkOrigin}
	ws.registerRoutes(cfg)
	return ws
}

func (ws *WebServer) Auth() *AuthService {
	return ws.auth
}

// Handler returns the mux wrapped in CORS and rate limiting.
func (ws *WebServer) Handler() http.Handler {
	return ws.httpSrv.Handler
}

func (ws *WebServer) registerRoutes(cfg WebConfig) {
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(ws.origins, handler)

	ws.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)
	ws.RegisterRESTRoutes()
	ws.mux.HandleFunc("GET /health", ws.handleHealth)

	if cfg.Metrics {
		ws.metrics = NewMetrics(ws.game, ws.game.StartTime)
		ws.mux.Handle("GET /metrics", ws.metrics.Handler())
	}
}

// Start listens until Stop. HTTPS is used when TLS can be set up; plain
// HTTP when Insecure is set or setup fails.
func (ws *WebServer) Start(cfg WebConfig) error {
	go ws.sweepLoop()

	if !cfg.Insecure {
		result, err := SetupTLS(TLSOptions{
			Domain:       cfg.Domain,
			CertFile:     cfg.CertFile,
			KeyFile:      cfg.KeyFile,
			CertDir:      cfg.CertDir,
			Hosts:        []string{cfg.Host},
			Organization: ws.game.MudName(),
		})
		if err != nil {
			log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config
			if result.AutocertMgr != nil {
				go serveACMEChallenges(result.AutocertMgr.HTTPHandler(nil))
			}
			log.Printf("web: listening on %s (HTTPS)", ws.httpSrv.Addr)
			return ignoreClosed(ws.httpSrv.ListenAndServeTLS("", ""))
		}
	}

	log.Printf("web: listening on %s (HTTP)", ws.httpSrv.Addr)
	return ignoreClosed(ws.httpSrv.ListenAndServe())
}

func ignoreClosed(err error) error {
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// serveACMEChallenges answers Let's Encrypt HTTP-01 challenges on :80.
func serveACMEChallenges(h http.Handler) {
	srv := &http.Server{Addr: ":80", Handler: h, ReadHeaderTimeout: 10 * time.Second}
	log.Printf("web: ACME challenge listener on :80")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("web: ACME listener: %v", err)
	}
}

func (ws *WebServer) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ws.rl.sweep(10 * time.Minute)
		case <-ws.stop:
			return
		}
	}
}

// Stop shuts the listener down, letting in-flight requests finish.
func (ws *WebServer) Stop(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stop) })
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket ---

// WSMessage is one JSON frame in either direction.
//
// Client to server: "login" (Command "connect name pw" or Token),
// "command", "mysteries", "ping".
// Server to client: "welcome", "login", "text", "mysteries", "pong",
// "error", and one frame per bus event named after its type
// ("discovery", "revelation", "roll", ...).
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Mystery int            `json:"mystery,omitempty"`
	Clue    string         `json:"clue,omitempty"`
	Command string         `json:"command,omitempty"`
	Token   string         `json:"token,omitempty"`
}

// wsConn serializes writes to one socket; gorilla allows a single writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := wc.conn.WriteJSON(msg); err != nil {
		log.Printf("ws: write %s: %v", msg.Type, err)
	}
}

func (wc *wsConn) fail(text string) {
	wc.sendJSON(WSMessage{Type: "error", Text: text})
}

// forwardedAddr prefers the proxy headers over the socket address.
func forwardedAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// handleWebSocket upgrades the request into a game session. A token in
// ?token= or the Authorization header logs the character in immediately.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = bearerToken(r); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}
	var claims *Claims
	if token != "" {
		var err error
		if claims, err = ws.auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}

	g := ws.game
	d, wc := newWSDescriptor(g, conn, forwardedAddr(r))
	g.Conns.Add(d)
	log.Printf("[ws:%d] connection from %s", d.ID, d.Addr)

	g.mu.Lock()
	if claims != nil {
		ws.loginWithClaims(d, wc, claims)
	} else {
		wc.sendJSON(WSMessage{
			Type: "welcome",
			Text: fmt.Sprintf("Welcome to %s. Send {\"type\":\"login\",\"command\":\"connect <name> <password>\"} or {\"type\":\"login\",\"token\":\"...\"}.", g.MudName()),
		})
	}
	g.mu.Unlock()

	go ws.readLoop(d, wc)
}

// newWSDescriptor builds a session whose text and events go out as JSON.
func newWSDescriptor(game *Game, conn *websocket.Conn, addr string) (*Descriptor, *wsConn) {
	wc := &wsConn{conn: conn}
	now := time.Now()
	d := &Descriptor{
		ID:        game.Conns.NextID(),
		Conn:      nullConn{},
		State:     ConnLogin,
		Player:    gamedb.Nothing,
		Addr:      addr,
		ConnTime:  now,
		LastCmd:   now,
		Retries:   3,
		Transport: TransportWebSocket,
	}
	d.SendFunc = func(msg string) {
		wc.sendJSON(WSMessage{Type: "text", Text: msg})
	}
	d.ReceiveFunc = func(ev events.Event) {
		wc.sendJSON(WSMessage{
			Type:    ev.Type.String(),
			Text:    ev.Text,
			Data:    ev.Data,
			Mystery: ev.Mystery,
			Clue:    ev.Clue,
		})
	}
	return d, wc
}

func (ws *WebServer) readLoop(d *Descriptor, wc *wsConn) {
	g := ws.game
	defer func() {
		g.mu.Lock()
		g.DisconnectPlayer(d)
		g.mu.Unlock()
		g.Conns.Remove(d)
		wc.conn.Close()
		log.Printf("[ws:%d] closed from %s", d.ID, d.Addr)
	}()

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%d] read: %v", d.ID, err)
			}
			return
		}
		d.LastCmd = time.Now()

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			wc.fail("Invalid JSON message.")
			continue
		}

		g.mu.Lock()
		ws.handleMessage(d, wc, msg)
		g.mu.Unlock()

		if d.IsClosed() {
			return
		}
	}
}

// handleMessage dispatches one client frame. Caller holds the world lock.
func (ws *WebServer) handleMessage(d *Descriptor, wc *wsConn, msg WSMessage) {
	g := ws.game
	switch msg.Type {
	case "ping":
		wc.sendJSON(WSMessage{Type: "pong"})
	case "login":
		ws.handleWSLogin(d, wc, msg)
	case "command":
		if d.State == ConnLogin {
			ws.handleWSLogin(d, wc, msg)
			return
		}
		d.CmdCount++
		DispatchCommand(g, d, msg.Command)
	case "mysteries":
		if d.State != ConnConnected {
			wc.fail("Log in first.")
			return
		}
		list := mysterySummaries(g, d.Player, g.Mysteries.All())
		wc.sendJSON(WSMessage{Type: "mysteries", Data: map[string]any{"mysteries": list, "count": len(list)}})
	default:
		wc.fail(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// handleWSLogin accepts a token or "connect <name> <password>". Caller
// holds the world lock.
func (ws *WebServer) handleWSLogin(d *Descriptor, wc *wsConn, msg WSMessage) {
	if d.State == ConnConnected {
		wc.fail("Already logged in.")
		return
	}
	if msg.Token != "" {
		claims, err := ws.auth.ValidateToken(msg.Token)
		if err != nil {
			wc.fail("Invalid token.")
			return
		}
		ws.loginWithClaims(d, wc, claims)
		return
	}

	command, user, password := ParseConnect(msg.Command)
	if !strings.HasPrefix(command, "co") || user == "" {
		wc.fail("Use: connect <name> <password>")
		return
	}
	player, err := ws.game.authenticate(user, password)
	if err != nil {
		log.Printf("[ws:%d] Failed login for %s from %s", d.ID, user, d.Addr)
		wc.fail("Invalid credentials.")
		d.Retries--
		if d.Retries <= 0 {
			wc.fail("Too many failed attempts. Disconnecting.")
			d.Close()
		}
		return
	}
	ws.completeLogin(d, wc, player)
}

// loginWithClaims binds d to the token's character if it still exists.
// Caller holds the world lock.
func (ws *WebServer) loginWithClaims(d *Descriptor, wc *wsConn, claims *Claims) {
	obj, ok := ws.game.DB.Objects[claims.PlayerRef]
	if !ok || obj.ObjType() != gamedb.TypePlayer {
		wc.fail("Character no longer exists.")
		return
	}
	ws.completeLogin(d, wc, claims.PlayerRef)
}

// completeLogin binds d to player and sends the opening frames: login
// details, the room, and any open mysteries. Caller holds the world lock.
func (ws *WebServer) completeLogin(d *Descriptor, wc *wsConn, player gamedb.DBRef) {
	g := ws.game
	g.loginPlayer(d, player)
	log.Printf("[ws:%d] Player %s connected from %s", d.ID, g.ObjName(player), d.Addr)
	wc.sendJSON(WSMessage{
		Type: "login",
		Data: map[string]any{
			"player_ref":  int(player),
			"player_name": g.PlayerName(player),
			"staff":       IsStaff(g, player),
		},
	})
	g.ShowRoom(d, g.PlayerLocation(player))
	g.announceMysteries(d)
}

// --- Auth HTTP handlers ---

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	tok, err := bearerToken(r)
	if err != nil || tok == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	fresh, err := ws.auth.RefreshToken(tok)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": fresh})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	g := ws.game
	g.mu.Lock()
	active := len(g.Mysteries.Active())
	g.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          Version,
		"uptime_seconds":   time.Since(ws.startTime).Seconds(),
		"connections":      g.Conns.Count(),
		"active_mysteries": active,
	})
}
