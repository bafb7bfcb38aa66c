package config

import (
	"path/filepath"
	"testing"

	"github.com/jg-phare/mcslauncherd/internal/auth"
)

func TestLoadCreatesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MainToken == "" || cfg.JWTSecret == "" {
		t.Fatal("expected freshly generated secrets")
	}
	if cfg.Port == 0 {
		t.Fatal("expected default port")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.MainToken != cfg.MainToken {
		t.Fatal("expected persisted config to round-trip")
	}
}

func TestLoadGeneratesBootstrapAdminCredential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AdminUser != "admin" || cfg.AdminPasswordHash == "" {
		t.Fatalf("expected bootstrap admin credential, got %q/%q", cfg.AdminUser, cfg.AdminPasswordHash)
	}
	// The generated password is random; only the negative paths are
	// checkable here. The positive path is covered by VerifyAdmin against
	// a known hash below.
	if cfg.VerifyAdmin("admin", "definitely-wrong") {
		t.Fatal("wrong password must not verify")
	}
	if cfg.VerifyAdmin("root", "anything") {
		t.Fatal("wrong user must not verify")
	}
}

func TestVerifyAdminMatchesKnownPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{AdminUser: "admin", AdminPasswordHash: hash}
	if !cfg.VerifyAdmin("admin", "hunter2") {
		t.Fatal("expected correct credential to verify")
	}
	if cfg.VerifyAdmin("admin", "hunter3") {
		t.Fatal("wrong password must not verify")
	}
	if (Config{}).VerifyAdmin("admin", "hunter2") {
		t.Fatal("unset credential must not verify")
	}
}

func TestSaveBacksUpPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg.Port = 9999
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	backup, err := Load(path + ".bak")
	if err != nil {
		t.Fatal(err)
	}
	if backup.Port == 9999 {
		t.Fatal("backup should hold the pre-update config")
	}
}
