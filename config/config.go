// server/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	DefaultPort        = "8510"
	DefaultPassword    = "dev"
	DefaultStorage     = "gdrive://0AFbVhvJLQtOHUk9PVA"
	DefaultRootID      = "root"
	DefaultCacheTTL    = 30 * time.Second
	DefaultConcurrency = 5
	DefaultReminder    = "09:00"
)

type Config struct {
	Port         string
	Password     string
	PasswordHash string
	Storage      string
	RootID       string
	Credentials  []byte
	CacheTTL     time.Duration
	Concurrency  int
	TaxonomyFile string
	Peers        []string
	ServerID     string
	LogLevel     string
	LogPretty    bool
	ReminderTime string
	ReminderList string
	InitFolders  bool
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(name, fallback string) string {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Port:         get("LUMI_PORT", DefaultPort),
		Password:     get("LUMI_PASSWORD", DefaultPassword),
		PasswordHash: get("LUMI_PASSWORD_HASH", ""),
		Storage:      get("LUMI_STORAGE", DefaultStorage),
		RootID:       get("LUMI_ROOT_ID", DefaultRootID),
		TaxonomyFile: get("LUMI_TAXONOMY", ""),
		ServerID:     get("LUMI_SERVER_ID", uuid.NewString()),
		LogLevel:     get("LUMI_LOG_LEVEL", "info"),
		ReminderTime: get("LUMI_REMINDER_TIME", DefaultReminder),
		ReminderList: get("LUMI_REMINDER_LIST", ""),
	}
	if creds := get("GCP_CREDENTIALS", ""); creds != "" {
		cfg.Credentials = []byte(creds)
	}
	for _, p := range strings.Split(getenv("LUMI_PEERS"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.Peers = append(cfg.Peers, p)
		}
	}

	var err error
	if cfg.CacheTTL, err = duration(get("LUMI_CACHE_TTL", ""), DefaultCacheTTL); err != nil {
		return Config{}, fmt.Errorf("config: LUMI_CACHE_TTL: %w", err)
	}
	if cfg.Concurrency, err = positive(get("LUMI_FETCH_CONCURRENCY", ""), DefaultConcurrency); err != nil {
		return Config{}, fmt.Errorf("config: LUMI_FETCH_CONCURRENCY: %w", err)
	}
	if cfg.LogPretty, err = boolean(get("LUMI_LOG_PRETTY", "")); err != nil {
		return Config{}, fmt.Errorf("config: LUMI_LOG_PRETTY: %w", err)
	}
	if cfg.InitFolders, err = boolean(get("LUMI_INIT_FOLDERS", "")); err != nil {
		return Config{}, fmt.Errorf("config: LUMI_INIT_FOLDERS: %w", err)
	}
	return cfg, nil
}

func duration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func positive(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

func boolean(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
