package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultBackendURL = "http://127.0.0.1:8080"

// Server configures the reference store backend.
type Server struct {
	Port                  string `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL"`
	RedisAddr             string `env:"REDIS_ADDR"`
	RedisPassword         string `env:"REDIS_PASSWORD"`
	RedisDB               int    `env:"REDIS_DB" envDefault:"0"`
	StatsTTLSeconds       int    `env:"STATS_TTL_SECONDS" envDefault:"30"`
	AuthSecret            string `env:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"480"`
	AdminPIN              string `env:"ADMIN_PIN"`
	AllowedOrigin         string `env:"ALLOWED_ORIGIN" envDefault:"*"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	Development           bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Terminal configures one POS terminal session.
type Terminal struct {
	BackendURL     string        `env:"BACKEND_URL" envDefault:"http://127.0.0.1:8080"`
	PIN            string        `env:"POS_PIN"`
	BranchID       string        `env:"POS_BRANCH"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"warn"`
	Development    bool          `env:"LOG_DEVELOPMENT" envDefault:"true"`
}

func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AdminPIN = strings.TrimSpace(cfg.AdminPIN)
	if cfg.StatsTTLSeconds < 1 {
		cfg.StatsTTLSeconds = 30
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	return cfg, nil
}

func (c Server) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Server) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLSeconds) * time.Second
}

func (c Server) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// LoadTerminal reads the environment first; flags given in args only fill
// values the environment left unset.
func LoadTerminal(args []string) (Terminal, error) {
	var cfg Terminal
	if err := env.Parse(&cfg); err != nil {
		return Terminal{}, fmt.Errorf("parse env: %w", err)
	}
	envCfg := cfg

	fs := flag.NewFlagSet("terminal", flag.ContinueOnError)
	fs.StringVar(&cfg.BackendURL, "b", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.PIN, "p", cfg.PIN, "employee PIN")
	fs.StringVar(&cfg.BranchID, "branch", cfg.BranchID, "branch id")
	if err := fs.Parse(args); err != nil {
		return Terminal{}, fmt.Errorf("parse flags: %w", err)
	}

	if envSet("BACKEND_URL") {
		cfg.BackendURL = envCfg.BackendURL
	}
	if envCfg.PIN != "" {
		cfg.PIN = envCfg.PIN
	}
	if envCfg.BranchID != "" {
		cfg.BranchID = envCfg.BranchID
	}

	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	cfg.PIN = strings.TrimSpace(cfg.PIN)
	if cfg.BackendURL == "" {
		cfg.BackendURL = defaultBackendURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return cfg, nil
}

func envSet(key string) bool {
	v, ok := os.LookupEnv(key)
	return ok && strings.TrimSpace(v) != ""
}
