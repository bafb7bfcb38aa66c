// Package config loads and persists the daemon's single JSON configuration
// document, backing up the previous revision before every overwrite.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/jg-phare/mcslauncherd/internal/auth"
)

// TaskPoolConfig tunes the per-connection task pool.
type TaskPoolConfig struct {
	MaxWorkers     int `json:"maxWorkers"`
	MaxPending     int `json:"maxPending"`
	IdleTimeoutSec int `json:"idleTimeoutSec"`
}

// Config is the daemon's full on-disk configuration.
type Config struct {
	Host                 string         `json:"host"`
	Port                 int            `json:"port"`
	MainToken            string         `json:"mainToken"`
	JWTSecret            string         `json:"jwtSecret"`
	AdminUser            string         `json:"adminUser"`
	AdminPasswordHash    string         `json:"adminPasswordHash"`
	FileDownloadSessions int            `json:"fileDownloadSessions"`
	TaskPool             TaskPoolConfig `json:"taskPool"`
	UploadDenylist       []string       `json:"uploadDenylist"`
}

// VerifyAdmin reports whether user/password match the bootstrap admin
// credential generated on first run.
func (c Config) VerifyAdmin(user, password string) bool {
	if c.AdminUser == "" || c.AdminPasswordHash == "" || user != c.AdminUser {
		return false
	}
	ok, err := auth.VerifyPassword(password, c.AdminPasswordHash)
	return err == nil && ok
}

func defaultConfig() (Config, error) {
	mainToken, err := auth.GenerateSecret(32)
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := auth.GenerateSecret(32)
	if err != nil {
		return Config{}, err
	}
	adminPassword, err := auth.GenerateSecret(16)
	if err != nil {
		return Config{}, err
	}
	adminHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return Config{}, err
	}
	// The plaintext exists only here; surface it once so the operator can
	// record it before only the hash remains.
	log.Info().Str("user", "admin").Str("password", adminPassword).
		Msg("generated bootstrap admin credential")
	return Config{
		Host:                 "0.0.0.0",
		Port:                 11433,
		MainToken:            mainToken,
		JWTSecret:            jwtSecret,
		AdminUser:            "admin",
		AdminPasswordHash:    adminHash,
		FileDownloadSessions: 32,
		TaskPool: TaskPoolConfig{
			MaxWorkers:     8,
			MaxPending:     32,
			IdleTimeoutSec: 60,
		},
	}, nil
}

// Load reads the config at path, creating it with fresh defaults (including
// freshly generated secrets) if it doesn't exist yet.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg, err := defaultConfig()
		if err != nil {
			return Config{}, err
		}
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, renaming any existing file to "<path>.bak" first,
// guarded by a file lock so concurrent daemon instances sharing a workspace
// don't race the rename.
func Save(path string, cfg Config) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("config: lock: %w", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("config: backup previous config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
