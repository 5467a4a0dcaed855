package server

import (
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// guest is a telnet session still at the login screen.
func guest(e *testEnv) *client {
	c := &client{}
	c.d = &Descriptor{
		ID:      e.game.Conns.NextID(),
		Conn:    nullConn{},
		State:   ConnLogin,
		Player:  gamedb.Nothing,
		Addr:    "198.51.100.7:4000",
		LastCmd: time.Now(),
		Retries: 2,
	}
	c.d.SendFunc = func(msg string) { c.out = append(c.out, msg) }
	e.game.Conns.Add(c.d)
	return c
}

func (c *client) login(s *Server, line string) string {
	c.out = nil
	s.loginScreen(c.d, line)
	return c.text()
}

func TestLoginScreenConnect(t *testing.T) {
	e := newTestEnv(t)
	if err := SetPassword(e.game.DB, refBob, "hunter2"); err != nil {
		t.Fatal(err)
	}
	s := NewServer(e.game, DefaultConfig())
	c := guest(e)

	if out := c.login(s, "connect Bob wrong"); !strings.Contains(out, "different password") {
		t.Errorf("bad password: %q", out)
	}
	if c.d.State != ConnLogin || c.d.Retries != 1 {
		t.Fatalf("state %v retries %d", c.d.State, c.d.Retries)
	}
	out := c.login(s, "connect bob hunter2")
	if !strings.Contains(out, "Welcome back, Bob!") || !strings.Contains(out, "Study Hall") {
		t.Errorf("connect output: %q", out)
	}
	if c.d.State != ConnConnected || c.d.Player != refBob {
		t.Errorf("descriptor not bound: %v #%d", c.d.State, c.d.Player)
	}
	if !e.game.DB.Objects[refBob].HasFlag2(gamedb.Flag2Connected) {
		t.Error("CONNECTED flag not set")
	}
	if !strings.Contains(e.wiz.text(), "Bob has connected.") {
		t.Errorf("room not told: %q", e.wiz.text())
	}
}

func TestLoginScreenRetriesExhausted(t *testing.T) {
	e := newTestEnv(t)
	s := NewServer(e.game, DefaultConfig())
	c := guest(e)
	c.login(s, "connect Bob nope")
	out := c.login(s, "connect Bob nope")
	if !strings.Contains(out, "Too many failed attempts") || !c.d.IsClosed() {
		t.Errorf("after last retry: %q closed=%v", out, c.d.IsClosed())
	}
}

func TestLoginScreenCreate(t *testing.T) {
	e := newTestEnv(t)
	s := NewServer(e.game, DefaultConfig())

	for _, tt := range []struct{ line, want string }{
		{"create Bob secret", "already taken"},
		{"create X secret", "too short"},
		{"create Ma#ra secret", "illegal characters"},
		{"create Mara", "Usage: create"},
	} {
		if out := guest(e).login(s, tt.line); !strings.Contains(out, tt.want) {
			t.Errorf("%q: %q, want %q", tt.line, out, tt.want)
		}
	}

	c := guest(e)
	out := c.login(s, "create Mara secret")
	if !strings.Contains(out, "Your character has been created") {
		t.Fatalf("create: %q", out)
	}
	ref := c.d.Player
	obj := e.game.DB.Objects[ref]
	if obj == nil || obj.Location != refRoom || obj.Owner != ref {
		t.Fatalf("new character = %+v", obj)
	}
	if ok, _ := CheckPassword(e.game.DB, ref, "secret"); !ok {
		t.Error("password not stored")
	}

	e.game.Conf.AllowCreate = false
	if out := guest(e).login(s, "create Sable secret"); !strings.Contains(out, "closed") {
		t.Errorf("closed creation: %q", out)
	}
}

func TestLoginScreenHelpAndQuit(t *testing.T) {
	e := newTestEnv(t)
	s := NewServer(e.game, DefaultConfig())
	c := guest(e)
	if out := c.login(s, "hello"); !strings.Contains(out, "Commands: connect, create") {
		t.Errorf("help: %q", out)
	}
	if out := c.login(s, "   "); out != "" {
		t.Errorf("blank line answered %q", out)
	}
	c.login(s, "quit")
	if !c.d.IsClosed() {
		t.Error("QUIT should close the session")
	}
}

func TestStripTelnet(t *testing.T) {
	tests := []struct{ in, want string }{
		{"look\r", "look"},
		{"\xff\xfb\x18say hi", "say hi"},
		{"\xff\xfa\x18\x00xterm\xff\xf0+mystery", "+mystery"},
		{"a\xff\xffb", "a\xffb"},
		{"\xff\xf1tab\there", "tab\there"},
		{"cut\xff\xfa\x18 no end", "cut"},
		{"del\x7f\x08x", "delx"},
	}
	for _, tt := range tests {
		if got := stripTelnet(tt.in); got != tt.want {
			t.Errorf("stripTelnet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromGameConf(t *testing.T) {
	gc := DefaultGameConf()
	gc.Port, gc.IdleTimeout, gc.MaxRetries = 7000, 90, 0
	cfg := ConfigFromGameConf(gc)
	if cfg.Port != 7000 || cfg.IdleTimeout != 90*time.Second || cfg.MaxRetries != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestStartWithNothingEnabled(t *testing.T) {
	e := newTestEnv(t)
	e.game.Conf.WebEnabled = false
	s := NewServer(e.game, Config{})
	if err := s.Start(); err == nil {
		t.Error("Start with no listeners should fail")
	}
}
