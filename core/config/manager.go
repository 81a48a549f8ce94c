package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/adalundhe/subspace/core/storage"
	"gopkg.in/yaml.v3"
)

// Manager holds the current configuration snapshot. Readers call Get and
// never observe a partially loaded Config.
type Manager struct {
	current     atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectRoot string
	extra       []string
	watchers    []func(*Config)
	watcherMu   sync.RWMutex
	closeOnce   sync.Once
	closed      atomic.Bool
}

type Config struct {
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Log        LogConfig        `yaml:"log"`
}

type RecognizerConfig struct {
	Algorithm      string      `yaml:"algorithm"`
	Metric         string      `yaml:"metric"`
	Components     int         `yaml:"components"`
	K              int         `yaml:"k"`
	Regularization float64     `yaml:"regularization"`
	Graph          GraphConfig `yaml:"graph"`
	CacheSize      int         `yaml:"cache_size"`
	Workers        int         `yaml:"workers"`
}

// GraphConfig tunes the neighbor graph used by locality-preserving projection.
type GraphConfig struct {
	Neighbors  int     `yaml:"neighbors"`
	Radius     float64 `yaml:"radius"`
	HeatKernel float64 `yaml:"heat_kernel"`
}

type DatasetConfig struct {
	Path    string  `yaml:"path"`
	Store   string  `yaml:"store"`
	Holdout float64 `yaml:"holdout"`
	Seed    uint64  `yaml:"seed"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{
		dirs:        dirs,
		projectRoot: ".",
	}
	m.current.Store(DefaultConfig())
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Recognizer: RecognizerConfig{
			Algorithm:  "pca",
			Metric:     "euclidean",
			Components: 2,
			K:          3,
			Graph: GraphConfig{
				Neighbors: 5,
			},
			CacheSize: 1024,
		},
		Dataset: DatasetConfig{
			Holdout: 0.2,
			Seed:    1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load rebuilds the configuration from defaults, the user config file, the
// project config file, any explicitly named files (later files win) and the
// environment, then publishes it to watchers. Missing files are skipped.
func (m *Manager) Load(files ...string) error {
	if m.closed.Load() {
		return fmt.Errorf("config manager closed")
	}
	if len(files) > 0 {
		m.extra = append([]string(nil), files...)
	}

	cfg := DefaultConfig()

	if m.dirs != nil {
		if err := m.loadYAMLFile(m.dirs.ConfigDir("config.yaml"), cfg, false); err != nil {
			return fmt.Errorf("user config: %w", err)
		}
	}

	projectDirs := storage.ResolveProjectDirs(m.projectRoot)
	if err := m.loadYAMLFile(projectDirs.Config, cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	for _, path := range m.extra {
		if err := m.loadYAMLFile(path, cfg, true); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}

	m.applyEnvironment(cfg)

	m.current.Store(cfg)
	m.notifyWatchers(cfg)

	return nil
}

func (m *Manager) loadYAMLFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("SUBSPACE_ALGORITHM"); v != "" {
		cfg.Recognizer.Algorithm = strings.ToLower(v)
	}
	if v := os.Getenv("SUBSPACE_METRIC"); v != "" {
		cfg.Recognizer.Metric = strings.ToLower(v)
	}
	if v := os.Getenv("SUBSPACE_COMPONENTS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Recognizer.Components = n
		}
	}
	if v := os.Getenv("SUBSPACE_K"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Recognizer.K = n
		}
	}
	if v := os.Getenv("SUBSPACE_REGULARIZATION"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Recognizer.Regularization = f
		}
	}
	if v := os.Getenv("SUBSPACE_DB"); v != "" {
		cfg.Dataset.Store = v
	}
	if v := os.Getenv("SUBSPACE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SUBSPACE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
}

// Merge overlays the non-zero fields of overlay onto a copy of the current
// snapshot and publishes the result.
func (m *Manager) Merge(overlay *Config) *Config {
	next := *m.Get()
	if overlay != nil {
		DeepMerge(&next, overlay)
	}
	m.current.Store(&next)
	m.notifyWatchers(&next)
	return &next
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.watcherMu.Lock()
		m.watchers = nil
		m.watcherMu.Unlock()
	})
	return nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
