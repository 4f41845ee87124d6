// internal/config/config.go
//
// Process configuration, read from the environment (after godotenv has
// loaded any .env file in main).

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the server.
type Config struct {
	Port            string        `env:"PORT" envDefault:"5175"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabasePath    string        `env:"DATABASE_PATH" envDefault:"./data/app.db"`
	ClientOrigin    string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Environment     string        `env:"NODE_ENV" envDefault:"development"`
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays  int           `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName      string        `env:"COOKIE_NAME" envDefault:"memory_token"`
	DailySalt       string        `env:"DAILY_SALT" envDefault:"local_dev_salt"`
	FacesFile       string        `env:"FACES_FILE"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Production reports whether cookies should be Secure / SameSite=None.
func (c Config) Production() bool { return c.Environment == "production" }

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }
