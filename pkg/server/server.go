package server

import (
	"bufio"
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

// maxLine caps one telnet input line.
const maxLine = 8192

// Config holds the telnet listener settings.
type Config struct {
	Port        int
	IdleTimeout time.Duration
	MaxRetries  int
	WelcomeText string
	Cleartext   bool
	TLS         bool
	TLSPort     int
	TLSCert     string
	TLSKey      string
	CertDir     string // self-signed certs when TLSCert is empty
}

func DefaultConfig() Config {
	return Config{
		Port:        6250,
		IdleTimeout: time.Hour,
		MaxRetries:  3,
		WelcomeText: WelcomeText,
		Cleartext:   true,
	}
}

// ConfigFromGameConf derives listener settings from the game config.
func ConfigFromGameConf(gc *GameConf) Config {
	cfg := DefaultConfig()
	cfg.Port = gc.Port
	cfg.IdleTimeout = time.Duration(gc.IdleTimeout) * time.Second
	cfg.MaxRetries = cmp.Or(gc.MaxRetries, cfg.MaxRetries)
	cfg.Cleartext = gc.Cleartext
	cfg.TLS, cfg.TLSPort = gc.TLS, gc.TLSPort
	cfg.TLSCert, cfg.TLSKey, cfg.CertDir = gc.TLSCert, gc.TLSKey, gc.CertDir
	return cfg
}

func webConfigFromGameConf(gc *GameConf) WebConfig {
	return WebConfig{
		Port:        gc.WebPort,
		Host:        gc.WebHost,
		Domain:      gc.WebDomain,
		Insecure:    gc.WebInsecure,
		CertFile:    gc.TLSCert,
		KeyFile:     gc.TLSKey,
		CertDir:     gc.CertDir,
		CORSOrigins: gc.WebCORSOrigins,
		RateLimit:   gc.WebRateLimit,
		JWTSecret:   gc.JWTSecret,
		JWTExpiry:   gc.JWTExpiry,
		Metrics:     gc.MetricsEnabled,
	}
}

// Server runs the telnet listeners and, when enabled, the web server.
type Server struct {
	Config Config
	Game   *Game

	mu        sync.Mutex
	listeners []net.Listener
	web       *WebServer
}

func NewServer(game *Game, cfg Config) *Server {
	return &Server{Config: cfg, Game: game}
}

// Start opens every configured listener and blocks until all are closed.
func (s *Server) Start() error {
	gc := s.Game.Conf
	webOn := gc != nil && gc.WebEnabled
	if !s.Config.Cleartext && !s.Config.TLS && !webOn {
		return errors.New("cleartext, TLS and web listeners are all disabled; nothing to listen on")
	}
	log.Printf("Database: %d objects, %d players, %d mysteries",
		len(s.Game.DB.Objects), len(s.Game.DB.Players()), len(s.Game.Mysteries.All()))

	var wg sync.WaitGroup
	if s.Config.Cleartext {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Port))
		if err != nil {
			return fmt.Errorf("cleartext listener: %w", err)
		}
		s.serve(&wg, "cleartext", ln)
	}
	if s.Config.TLS {
		ln, err := s.listenTLS()
		if err != nil {
			s.Stop()
			return err
		}
		s.serve(&wg, "TLS", ln)
	}

	var webErr error
	if webOn {
		cfg := webConfigFromGameConf(gc)
		ws := NewWebServer(s.Game, cfg)
		s.mu.Lock()
		s.web = ws
		s.mu.Unlock()
		wg.Go(func() {
			if err := ws.Start(cfg); err != nil {
				webErr = fmt.Errorf("web server: %w", err)
			}
		})
	}
	wg.Wait()
	return webErr
}

func (s *Server) listenTLS() (net.Listener, error) {
	res, err := SetupTLS(TLSOptions{
		CertFile:     s.Config.TLSCert,
		KeyFile:      s.Config.TLSKey,
		CertDir:      s.Config.CertDir,
		Organization: s.Game.MudName(),
	})
	if err != nil {
		return nil, fmt.Errorf("TLS setup: %w", err)
	}
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.Config.TLSPort), res.Config)
	if err != nil {
		return nil, fmt.Errorf("TLS listener: %w", err)
	}
	return ln, nil
}

// serve records ln for Stop and accepts on it until it is closed.
func (s *Server) serve(wg *sync.WaitGroup, kind string, ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	log.Printf("Listening (%s) on %s", kind, ln.Addr())
	wg.Go(func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				log.Printf("Accept error (%s): %v", kind, err)
				continue
			}
			go s.handleConnection(conn)
		}
	})
}

// Stop closes the listeners and the web server, then says goodbye to
// every session.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
	if s.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.web.Stop(ctx)
	}
	for _, d := range s.Game.Conns.AllDescriptors() {
		d.Send("Server shutting down. Goodbye!")
		d.Close()
	}
}

// handleConnection runs one telnet session from banner to disconnect.
func (s *Server) handleConnection(conn net.Conn) {
	g := s.Game
	d := NewDescriptor(g.Conns.NextID(), conn)
	d.Retries = s.Config.MaxRetries
	g.Conns.Add(d)
	log.Printf("[%d] New connection from %s", d.ID, d.Addr)

	defer func() {
		g.mu.Lock()
		g.DisconnectPlayer(d)
		g.mu.Unlock()
		g.Conns.Remove(d)
		d.Close()
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	d.SendNoNewline(s.Config.WelcomeText)

	in := bufio.NewScanner(d.Conn)
	in.Buffer(make([]byte, maxLine), maxLine)
	for !d.IsClosed() {
		if s.Config.IdleTimeout > 0 {
			d.Conn.SetReadDeadline(time.Now().Add(s.Config.IdleTimeout))
		}
		if !in.Scan() {
			var ne net.Error
			if errors.As(in.Err(), &ne) && ne.Timeout() {
				d.Send("You have been idle for too long. Goodbye!")
				log.Printf("[%d] Idle timeout", d.ID)
			}
			return
		}
		line := stripTelnet(in.Text())
		d.LastCmd = time.Now()

		g.mu.Lock()
		if d.State == ConnLogin {
			s.loginScreen(d, line)
		} else {
			d.CmdCount++
			DispatchCommand(g, d, line)
		}
		g.mu.Unlock()
	}
}

// Telnet protocol bytes.
const (
	telIAC  = 0xFF
	telSB   = 0xFA
	telSE   = 0xF0
	telWILL = 0xFB
	telDONT = 0xFE
)

// stripTelnet drops telnet negotiation (including subnegotiation blocks)
// and control characters from a line, keeping tabs and escaped 0xFF.
func stripTelnet(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == telIAC && i+1 < len(s):
			next := s[i+1]
			switch {
			case next == telIAC:
				out.WriteByte(telIAC)
				i++
			case next == telSB:
				end := strings.Index(s[i+2:], string([]byte{telIAC, telSE}))
				if end < 0 {
					return out.String()
				}
				i += end + 3
			case next >= telWILL && next <= telDONT:
				i += 2
			default:
				i++
			}
		case c == telIAC, c < 32 && c != '\t', c == 0x7F:
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
