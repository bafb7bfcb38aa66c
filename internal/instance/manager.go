package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const configFileName = "daemon_instance.json"

// Manager owns every configured instance, keyed by UUID.
type Manager struct {
	root    string
	factory *Factory

	mu        sync.RWMutex
	instances map[uuid.UUID]*Instance

	watcher *fsnotify.Watcher
	dirty   sync.Map // uuid.UUID -> struct{}, set by the watcher, consumed by ReloadDirty
}

// NewManager creates a Manager rooted at root (the daemon's
// "<workspace>/instances" directory).
func NewManager(root string, factory *Factory) (*Manager, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("instance: create watcher: %w", err)
	}
	m := &Manager{
		root:      root,
		factory:   factory,
		instances: make(map[uuid.UUID]*Instance),
		watcher:   watcher,
	}
	go m.watchLoop()
	return m, nil
}

func (m *Manager) watchLoop() {
	for event := range m.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		dir := filepath.Dir(event.Name)
		id, err := uuid.Parse(filepath.Base(dir))
		if err != nil {
			continue
		}
		m.dirty.Store(id, struct{}{})
	}
}

// Load scans root for instance directories and constructs an Instance for
// each, using the factory to pick the strategy for its classification tag.
// A directory whose name disagrees with the config's uuid is rejected.
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("instance: read root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.root, e.Name())
		cfg, mtime, err := readConfig(dir)
		if err != nil {
			log.Warn().Str("dir", dir).Err(err).Msg("skipping instance dir")
			continue
		}
		if cfg.UUID.String() != e.Name() {
			log.Warn().Str("dir", dir).Str("uuid", cfg.UUID.String()).Msg("instance uuid disagrees with directory name, skipping")
			continue
		}
		strategy, ok := m.factory.Resolve(cfg.Tag, cfg.McVersion)
		if !ok {
			strategy = Universal
		}
		inst := New(cfg, dir, strategy)
		inst.configMtime = mtime

		m.mu.Lock()
		m.instances[cfg.UUID] = inst
		m.mu.Unlock()

		_ = m.watcher.Add(dir)
	}
	return nil
}

func readConfig(dir string) (Config, time.Time, error) {
	path := filepath.Join(dir, configFileName)
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, time.Time{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, time.Time{}, err
	}
	return cfg, info.ModTime(), nil
}

// Get returns the instance with id, or ok=false.
func (m *Manager) Get(id uuid.UUID) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// List returns all managed instances.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out
}

// Add registers a new instance with the strategy resolved via the factory
// for (source, tag, version), and persists its config to disk.
func (m *Manager) Add(source string, cfg Config) (*Instance, error) {
	strategy, ok := m.factory.ResolveSource(source, cfg.Tag, cfg.McVersion)
	if !ok {
		return nil, fmt.Errorf("instance: no constructor for tag %q version %q", cfg.Tag, cfg.McVersion)
	}

	m.mu.Lock()
	if _, exists := m.instances[cfg.UUID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("instance: %s already exists", cfg.UUID)
	}
	m.mu.Unlock()

	dir := filepath.Join(m.root, cfg.UUID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("instance: create dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, configFileName), data, 0o644); err != nil {
		return nil, fmt.Errorf("instance: write config: %w", err)
	}

	inst := New(cfg, dir, strategy)
	m.mu.Lock()
	m.instances[cfg.UUID] = inst
	m.mu.Unlock()

	_ = m.watcher.Add(dir)
	log.Info().Str("uuid", cfg.UUID.String()).Str("name", cfg.Name).Msg("instance added")
	return inst, nil
}

// Remove drops id from the manager and deletes its on-disk directory. A
// running instance cannot be removed.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if ok {
		if h := inst.Process(); h != nil && !h.Exited() {
			m.mu.Unlock()
			return fmt.Errorf("instance: %s is running", id)
		}
		delete(m.instances, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance: %s not found", id)
	}
	inst.Close()
	return os.RemoveAll(filepath.Join(m.root, id.String()))
}

// TotalReport snapshots every managed instance.
func (m *Manager) TotalReport() map[string]Report {
	out := make(map[string]Report)
	for _, inst := range m.List() {
		out[inst.Config().UUID.String()] = inst.Report()
	}
	return out
}

// ReloadDirty reloads every instance the filesystem watcher flagged as
// changed since the last call, deferring to the instance's authoritative
// mtime check.
func (m *Manager) ReloadDirty() {
	m.dirty.Range(func(key, _ interface{}) bool {
		id := key.(uuid.UUID)
		m.dirty.Delete(key)
		if inst, ok := m.Get(id); ok {
			_ = inst.reloadIfChanged()
		}
		return true
	})
}

// Close stops the filesystem watcher.
func (m *Manager) Close() error {
	return m.watcher.Close()
}
