// Package app assembles the daemon: configuration, the file transfer
// engine, the instance manager, the protocol dispatcher, and the driver.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jg-phare/mcslauncherd/internal/auth"
	"github.com/jg-phare/mcslauncherd/internal/config"
	"github.com/jg-phare/mcslauncherd/internal/driver"
	"github.com/jg-phare/mcslauncherd/internal/events"
	"github.com/jg-phare/mcslauncherd/internal/filetransfer"
	"github.com/jg-phare/mcslauncherd/internal/instance"
	v1 "github.com/jg-phare/mcslauncherd/internal/protocol/v1"
	"github.com/jg-phare/mcslauncherd/internal/wsconn"
)

// Name and Version identify the daemon on /info and the X-Application header.
const (
	Name    = "mcslauncherd"
	Version = "0.1.0"
)

// App is the assembled daemon.
type App struct {
	Config    config.Config
	Files     *filetransfer.Engine
	Instances *instance.Manager
	Events    *events.Bus
	Driver    *driver.Driver
}

// New loads (or initializes) the config under root and wires every
// subsystem together.
func New(root string) (*App, error) {
	cfg, err := config.Load(filepath.Join(root, "config.json"))
	if err != nil {
		return nil, err
	}

	files, err := filetransfer.New(root, cfg.UploadDenylist, cfg.FileDownloadSessions)
	if err != nil {
		return nil, err
	}

	instances, err := instance.NewManager(filepath.Join(root, filetransfer.InstancesDir), instance.NewFactory())
	if err != nil {
		return nil, err
	}
	if err := instances.Load(); err != nil {
		return nil, err
	}

	bus := events.NewBus()

	dispatcher := v1.NewDispatcher()
	v1.RegisterActions(dispatcher, v1.Deps{Files: files, Instances: instances})

	deps := wsconn.Deps{
		Dispatcher: dispatcher,
		Events:     bus,
		Registry:   wsconn.NewRegistry(),
		Pool: wsconn.PoolConfig{
			MaxWorkers:  cfg.TaskPool.MaxWorkers,
			MaxPending:  cfg.TaskPool.MaxPending,
			IdleTimeout: time.Duration(cfg.TaskPool.IdleTimeoutSec) * time.Second,
		},
	}

	drv := driver.New(driver.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		MainToken:   cfg.MainToken,
		Name:        Name,
		Version:     Version,
		VerifyAdmin: cfg.VerifyAdmin,
	}, auth.NewIssuer([]byte(cfg.JWTSecret)), deps)

	return &App{
		Config:    cfg,
		Files:     files,
		Instances: instances,
		Events:    bus,
		Driver:    drv,
	}, nil
}

// Run serves until ctx is canceled, then tears everything down.
func (a *App) Run(ctx context.Context) error {
	err := a.Driver.Run(ctx)
	a.Files.CloseAll()
	if cerr := a.Instances.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("app: close instance manager: %w", cerr)
	}
	log.Info().Msg("daemon stopped")
	return err
}
