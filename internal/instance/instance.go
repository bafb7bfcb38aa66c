// Package instance manages the set of configured Minecraft/server instances:
// their persisted configuration, runtime process, and status lifecycle.
package instance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jg-phare/mcslauncherd/internal/broadcast"
	"github.com/jg-phare/mcslauncherd/internal/procsup"
)

var (
	errNotRunning     = errors.New("instance: not running")
	errAlreadyRunning = errors.New("instance: already running")
	// ErrUUIDChanged is returned when a config reload would change the
	// instance's identity; the on-disk uuid must stay equal to its directory.
	ErrUUIDChanged = errors.New("instance: config reload changed uuid")
)

// Target kinds.
const (
	TargetJar        = "jar"
	TargetScript     = "script"
	TargetExecutable = "executable"
)

// startWindow is how long Start watches a fresh process before deciding it
// came up; a process that exits inside the window fails the start and the
// collected log lines are carried on the error.
const startWindow = 500 * time.Millisecond

// Config is the persisted, user-editable description of an instance, stored
// as daemon_instance.json inside the instance's directory.
type Config struct {
	UUID           uuid.UUID         `json:"uuid"`
	Name           string            `json:"name"`
	Tag            string            `json:"tag"` // classification tag used for factory dispatch
	Target         string            `json:"target"`
	TargetKind     string            `json:"targetKind"` // jar | script | executable
	McVersion      string            `json:"mcVersion"`
	InputEncoding  string            `json:"inputEncoding,omitempty"`
	OutputEncoding string            `json:"outputEncoding,omitempty"`
	JavaPath       string            `json:"javaPath,omitempty"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
}

// Report is a point-in-time snapshot of an instance for status queries.
// Properties and Players are reserved for a server-list-ping probe and stay
// empty until one is wired in.
type Report struct {
	Status     string            `json:"status"`
	Config     Config            `json:"config"`
	Properties map[string]string `json:"properties"`
	Players    []string          `json:"players"`
	Metrics    *procsup.Metrics  `json:"metrics,omitempty"`
}

// StartError carries the log lines collected while a process died inside the
// start window.
type StartError struct {
	Lines []string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("instance: process exited during startup: %s", strings.Join(e.Lines, " | "))
}

// Instance is one managed server: its config plus runtime state.
type Instance struct {
	strategy Strategy
	dir      string // instance directory; working dir of the child process

	mu          sync.RWMutex
	config      Config
	configMtime time.Time
	status      Status
	process     *procsup.Handle

	log      *broadcast.Channel[string]
	input    *broadcast.Channel[string]
	statusCh *broadcast.Channel[Status]

	statusMirrorStop func()
}

// New builds an Instance rooted at dir with the given config and strategy,
// and starts a goroutine mirroring status publications into Instance.Status().
func New(cfg Config, dir string, strategy Strategy) *Instance {
	inst := &Instance{
		strategy: strategy,
		dir:      dir,
		config:   cfg,
		status:   Stopped,
		log:      broadcast.New[string](),
		input:    broadcast.New[string](),
		statusCh: broadcast.New[Status](),
	}

	ch, unsub := inst.statusCh.Subscribe(8)
	inst.statusMirrorStop = unsub
	go func() {
		for s := range ch {
			inst.mu.Lock()
			inst.status = s
			inst.mu.Unlock()
		}
	}()

	return inst
}

// Config returns a copy of the instance's current configuration.
func (i *Instance) Config() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.config
}

// Dir returns the instance's on-disk directory.
func (i *Instance) Dir() string { return i.dir }

// Status returns the instance's current lifecycle status.
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Process returns the running process handle, or nil if not running.
func (i *Instance) Process() *procsup.Handle {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.process
}

// LogChannel exposes the instance's log broadcaster for connection handlers
// that stream console output to clients.
func (i *Instance) LogChannel() *broadcast.Channel[string] { return i.log }

// StatusChannel exposes the instance's status broadcaster.
func (i *Instance) StatusChannel() *broadcast.Channel[Status] { return i.statusCh }

// Send publishes a line onto the instance's stdin fan-in channel. The single
// forwarder started by Start is the only reader; it writes to the child.
func (i *Instance) Send(line string) error {
	if h := i.Process(); h == nil || h.Exited() {
		return errNotRunning
	}
	i.input.Send(line)
	return nil
}

// command resolves the OS command to run for the instance's target kind.
func (i *Instance) command(cfg Config) (command string, args []string, javaBinDir string) {
	switch cfg.TargetKind {
	case TargetJar:
		java := cfg.JavaPath
		if java == "" {
			java = "java"
		}
		args = append([]string{"-jar", cfg.Target}, cfg.Args...)
		if cfg.JavaPath != "" {
			javaBinDir = filepath.Dir(cfg.JavaPath)
		}
		return java, args, javaBinDir
	default:
		return cfg.Target, cfg.Args, ""
	}
}

// Start spawns the instance's process. If the instance is in a terminal
// status and its on-disk config changed since the last load, the config is
// reloaded first (a uuid change is rejected). The fresh process is watched
// for a short window; if it exits inside it, Start fails with the collected
// log lines.
func (i *Instance) Start() error {
	i.mu.Lock()
	if i.process != nil && !i.process.Exited() {
		i.mu.Unlock()
		return errAlreadyRunning
	}
	i.mu.Unlock()

	if err := i.reloadIfChanged(); err != nil {
		return err
	}

	i.mu.RLock()
	cfg := i.config
	i.mu.RUnlock()

	outputDecode := decoderFor(cfg.OutputEncoding)
	inputEncode := encoderFor(cfg.InputEncoding)

	// Collect startup output before the process can emit anything.
	logCh, logUnsub := i.log.Subscribe(64)

	command, args, javaBinDir := i.command(cfg)
	h, err := procsup.Spawn(context.Background(), procsup.StartInfo{
		Command:    command,
		Args:       args,
		Dir:        i.dir,
		Env:        cfg.Env,
		JavaBinDir: javaBinDir,
	}, func(line string, isStderr bool) {
		line = outputDecode(line)
		if isStderr {
			line = "[STDERR] " + line
		}
		i.strategy.OnLine(line, i.statusCh)
		i.log.Send(line)
	}, func(error) {
		i.mu.Lock()
		i.process = nil
		i.mu.Unlock()
		i.statusCh.Send(Stopped)
	})
	if err != nil {
		logUnsub()
		return err
	}

	i.strategy.OnProcessStart(i.statusCh)

	var window []string
	deadline := time.After(startWindow)
sample:
	for {
		select {
		case line := <-logCh:
			window = append(window, line)
		case <-deadline:
			break sample
		}
	}
	logUnsub()
	if h.Exited() {
		return &StartError{Lines: window}
	}

	i.mu.Lock()
	i.process = h
	i.mu.Unlock()

	// Single stdin forwarder: the fan-in point for every Send caller.
	inputCh, inputUnsub := i.input.Subscribe(16)
	go func() {
		defer inputUnsub()
		for {
			select {
			case line, ok := <-inputCh:
				if !ok {
					return
				}
				if err := h.SendLine(inputEncode(line)); err != nil {
					log.Debug().Str("instance", cfg.Name).Err(err).Msg("stdin write failed")
					return
				}
			case <-h.Done():
				return
			}
		}
	}()

	log.Info().Str("instance", cfg.Name).Str("uuid", cfg.UUID.String()).Msg("instance started")
	return nil
}

// Stop asks the strategy to stop the instance (graceful, per classification).
func (i *Instance) Stop() error {
	return i.strategy.Stop(i)
}

// Kill forcibly terminates the instance's process, if running.
func (i *Instance) Kill() error {
	h := i.Process()
	if h == nil {
		return errNotRunning
	}
	return h.Kill()
}

// Report snapshots the instance's status, config, and process metrics.
func (i *Instance) Report() Report {
	i.mu.RLock()
	cfg := i.config
	status := i.status
	h := i.process
	i.mu.RUnlock()

	r := Report{
		Status:     status.String(),
		Config:     cfg,
		Properties: map[string]string{},
		Players:    []string{},
	}
	if h != nil && !h.Exited() {
		if m, err := procsup.SampleMetrics(h.Pid); err == nil {
			r.Metrics = &m
		}
	}
	return r
}

// reloadIfChanged re-reads the config from disk when the instance is in a
// terminal status and the file's mtime advanced past the last load.
func (i *Instance) reloadIfChanged() error {
	if i.dir == "" {
		return nil
	}

	i.mu.RLock()
	last := i.configMtime
	terminal := i.status == Stopped || i.status == Crashed
	prevUUID := i.config.UUID
	i.mu.RUnlock()
	if !terminal {
		return nil
	}

	cfg, mtime, err := readConfig(i.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !mtime.After(last) {
		return nil
	}
	if cfg.UUID != prevUUID {
		return ErrUUIDChanged
	}

	i.mu.Lock()
	i.config = cfg
	i.configMtime = mtime
	i.mu.Unlock()
	return nil
}

// Close stops the status mirror and closes the instance's broadcasters.
func (i *Instance) Close() {
	i.log.Close()
	i.input.Close()
	i.statusCh.Close()
}
