package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jg-phare/mcslauncherd/internal/config"
)

func TestNewInitializesWorkspace(t *testing.T) {
	root := t.TempDir()
	a, err := New(root)
	require.NoError(t, err)
	defer a.Instances.Close()

	for _, dir := range []string{"downloads", "instances"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	data, err := os.ReadFile(filepath.Join(root, "config.json"))
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	require.NotEmpty(t, cfg.MainToken)
	require.NotEmpty(t, cfg.JWTSecret)
	require.Equal(t, a.Config.MainToken, cfg.MainToken)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	// Port 0 lets the kernel pick a free port so parallel test runs don't
	// collide on the default.
	cfg, err := config.Load(filepath.Join(root, "config.json"))
	require.NoError(t, err)
	cfg.Port = 0
	require.NoError(t, config.Save(filepath.Join(root, "config.json"), cfg))

	a, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
