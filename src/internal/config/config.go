package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=card_ledger_db;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultDriver = "postgres"
const defaultCardNumberSecret = "card-ledger-dev-secret"
const configFileName = "config.yaml"

type Config struct {
	DatabaseDriver   string
	DatabaseDSN      string
	MigrationsDir    string
	CardNumberSecret string
}

type fileConfig struct {
	DatabaseDriver   string `yaml:"databaseDriver"`
	DatabaseDSN      string `yaml:"databaseDsn"`
	MigrationsDir    string `yaml:"migrationsDir"`
	CardNumberSecret string `yaml:"cardNumberSecret"`
}

// Load resolves configuration in layers: built-in defaults, then an
// optional config.yaml in the working directory, then .env, then the
// process environment. Later layers win.
func Load() (Config, error) {
	cfg := Config{
		DatabaseDriver:   defaultDriver,
		DatabaseDSN:      defaultConnectionString,
		MigrationsDir:    filepath.Join("src", "migrations"),
		CardNumberSecret: defaultCardNumberSecret,
	}

	if err := applyFile(&cfg, configFileName); err != nil {
		return Config{}, err
	}

	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv("DATABASE_DRIVER")); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")); v != "" {
		cfg.MigrationsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CARD_NUMBER_SECRET")); v != "" {
		cfg.CardNumberSecret = v
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		cfg.DatabaseDSN = normalizeConnectionString(cfg.DatabaseDSN)
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if v := strings.TrimSpace(fc.DatabaseDriver); v != "" {
		cfg.DatabaseDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(fc.DatabaseDSN); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(fc.MigrationsDir); v != "" {
		cfg.MigrationsDir = v
	}
	if v := strings.TrimSpace(fc.CardNumberSecret); v != "" {
		cfg.CardNumberSecret = v
	}

	return nil
}

// normalizeConnectionString converts semicolon key=value connection
// strings (Host=...;Port=...) into the space-separated keyword form
// libpq expects. Strings already in keyword form pass through.
func normalizeConnectionString(raw string) string {
	if !strings.Contains(raw, ";") {
		return raw
	}

	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
