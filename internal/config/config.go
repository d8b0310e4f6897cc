package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the process needs at startup. It is loaded once in
// main and passed down explicitly; nothing in the codebase reads the
// environment after Load returns.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	JWT      JWTConfig      `yaml:"jwt"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// ConnString assembles the pgx connection string from the loaded parameters.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Load builds the configuration: defaults, then an optional YAML file
// (path may be empty), then GOPLAN_* environment variables, which win.
func Load(path string) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: "goplan",
			Port: "8080",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "",
			DBName:          "goplan",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
		},
		JWT: JWTConfig{
			TokenTTL: 24 * time.Hour,
		},
	}

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file %q: %w", path, err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is not set (GOPLAN_JWT_SECRET)")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.App.Port, "GOPLAN_HTTP_PORT")
	setString(&cfg.Postgres.Host, "GOPLAN_DB_HOST")
	setString(&cfg.Postgres.Port, "GOPLAN_DB_PORT")
	setString(&cfg.Postgres.User, "GOPLAN_DB_USER")
	setString(&cfg.Postgres.Password, "GOPLAN_DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "GOPLAN_DB_NAME")
	setString(&cfg.Postgres.SSLMode, "GOPLAN_DB_SSLMODE")
	setString(&cfg.JWT.Secret, "GOPLAN_JWT_SECRET")

	if v := os.Getenv("GOPLAN_JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JWT.TokenTTL = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
