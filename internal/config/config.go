package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string        `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Port              string        `yaml:"port" env:"PORT" env-default:"8080"`
	CORSOrigins       []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	TokenTTL          time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"30m"`
	Timezone          string        `yaml:"timezone" env:"TIMEZONE" env-default:"UTC"`
	LedgerMaxAttempts int           `yaml:"ledger_max_attempts" env:"LEDGER_MAX_ATTEMPTS" env-default:"3"`
	DBMaxConns        int32         `yaml:"db_max_conns" env:"DB_MAX_CONNS" env-default:"10"`
}

// Load reads configPath when it exists and the environment otherwise. A
// .env file in the working directory is loaded first if present.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.LedgerMaxAttempts < 1 {
		return errors.New("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Location is the server time zone used when a client does not send its
// own date.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
