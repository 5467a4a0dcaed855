package server

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// GameConf holds game-level configuration parameters. It is read from a
// YAML file and then overlaid with MUSH_* environment variables.
type GameConf struct {
	// --- Identity ---
	MudName string `yaml:"mud_name" env:"MUSH_NAME"`
	Port    int    `yaml:"port" env:"MUSH_PORT"`

	// --- Key rooms ---
	PlayerStartingRoom int `yaml:"player_starting_room" env:"MUSH_START_ROOM"`

	// --- Connections ---
	IdleTimeout int  `yaml:"idle_timeout" env:"MUSH_IDLE_TIMEOUT"` // seconds
	MaxRetries  int  `yaml:"max_retries"`
	Cleartext   bool `yaml:"cleartext" env:"MUSH_CLEARTEXT"`
	AllowCreate bool `yaml:"allow_create" env:"MUSH_ALLOW_CREATE"`

	// --- Storage ---
	DBPath      string `yaml:"db_path" env:"MUSH_DB"`                 // bbolt file
	TemplateDir string `yaml:"template_dir" env:"MUSH_TEMPLATES"`     // mystery templates (*.yaml)
	JournalPath string `yaml:"journal_path" env:"MUSH_JOURNAL"`       // SQLite investigation journal, empty = off
	BackupDir   string `yaml:"backup_dir" env:"MUSH_BACKUP_DIR"`      // bolt snapshots written on shutdown
	WatchFiles  bool   `yaml:"watch_templates" env:"MUSH_WATCH_TEMPLATES"`

	// --- Investigation ---
	ExceptionalAt  int `yaml:"exceptional_at" env:"MUSH_EXCEPTIONAL_AT"`   // successes for an exceptional result
	ExceptionalMax int `yaml:"exceptional_max" env:"MUSH_EXCEPTIONAL_MAX"` // clues attempted on an exceptional result
	JournalLimit   int `yaml:"journal_limit"`                              // rows shown by +mystery/journal

	// --- TLS ---
	TLS     bool   `yaml:"tls" env:"MUSH_TLS"`
	TLSPort int    `yaml:"tls_port" env:"MUSH_TLS_PORT"`
	TLSCert string `yaml:"tls_cert" env:"MUSH_TLS_CERT"`
	TLSKey  string `yaml:"tls_key" env:"MUSH_TLS_KEY"`

	// --- Web/Security ---
	WebEnabled     bool     `yaml:"web_enabled" env:"MUSH_WEB"`
	WebPort        int      `yaml:"web_port" env:"MUSH_WEB_PORT"`
	WebHost        string   `yaml:"web_host" env:"MUSH_WEB_HOST"`
	WebDomain      string   `yaml:"web_domain" env:"MUSH_WEB_DOMAIN"` // Let's Encrypt domain (empty = self-signed)
	WebInsecure    bool     `yaml:"web_insecure" env:"MUSH_WEB_INSECURE"`
	WebCORSOrigins []string `yaml:"web_cors_origins" env:"MUSH_CORS_ORIGINS" envSeparator:","`
	WebRateLimit   int      `yaml:"web_rate_limit" env:"MUSH_RATE_LIMIT"` // requests per minute per IP
	JWTSecret      string   `yaml:"jwt_secret" env:"MUSH_JWT_SECRET"`     // generated if empty
	JWTExpiry      int      `yaml:"jwt_expiry" env:"MUSH_JWT_EXPIRY"`     // seconds
	CertDir        string   `yaml:"cert_dir" env:"MUSH_CERT_DIR"`
	MetricsEnabled bool     `yaml:"metrics_enabled" env:"MUSH_METRICS"`
}

// DefaultGameConf returns a GameConf with the stock defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		MudName:            "ChronicleMUSH",
		Port:               6250,
		PlayerStartingRoom: 0,
		IdleTimeout:        3600,
		MaxRetries:         3,
		Cleartext:          true,
		AllowCreate:        true,
		DBPath:             "data/game.bolt",
		TemplateDir:        "data/mysteries",
		JournalPath:        "data/journal.sqlite",
		WatchFiles:         true,
		ExceptionalAt:      3,
		ExceptionalMax:     2,
		JournalLimit:       20,
		TLSPort:            6251,
		WebEnabled:         true,
		WebPort:            8443,
		WebRateLimit:       60,
		JWTExpiry:          86400,
		CertDir:            "certs",
		MetricsEnabled:     true,
	}
}

// LoadGameConf reads a YAML config file over the defaults. An empty path
// yields the defaults.
func LoadGameConf(path string) (*GameConf, error) {
	gc := DefaultGameConf()
	if path == "" {
		return gc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return gc, gc.Validate()
}

// ApplyEnv overlays MUSH_* environment variables onto gc.
func (gc *GameConf) ApplyEnv() error {
	if err := env.Parse(gc); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return gc.Validate()
}

// Validate rejects settings the server cannot run with.
func (gc *GameConf) Validate() error {
	if gc.ExceptionalAt < 1 {
		return fmt.Errorf("exceptional_at must be at least 1, got %d", gc.ExceptionalAt)
	}
	if gc.ExceptionalMax < 1 {
		return fmt.Errorf("exceptional_max must be at least 1, got %d", gc.ExceptionalMax)
	}
	if !gc.Cleartext && !gc.TLS && !gc.WebEnabled {
		return fmt.Errorf("no listener enabled (cleartext, tls and web are all off)")
	}
	if (gc.TLSCert == "") != (gc.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}
	return nil
}
