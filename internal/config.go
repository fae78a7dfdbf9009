package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	IndexBackendJSON   = "json"
	IndexBackendSQLite = "sqlite"

	GeneratorCanned = "canned"
	GeneratorLLM    = "llm"

	EvolutionNone = "none"
	EvolutionGit  = "git"
)

type SchedulerConfig struct {
	Workers          int           `yaml:"workers"`
	CycleInterval    time.Duration `yaml:"cycle_interval"`
	WorkerInterval   time.Duration `yaml:"worker_interval"`
	DreamProbability float64       `yaml:"dream_probability"`
	JoinTimeout      time.Duration `yaml:"join_timeout"`
	ResultBuffer     int           `yaml:"result_buffer"`
	TaskBuffer       int           `yaml:"task_buffer"`
	Autonomous       bool          `yaml:"autonomous"`
	PersistResults   bool          `yaml:"persist_results"`
	SourceRef        string        `yaml:"source_ref,omitempty"`
	MetricsPath      string        `yaml:"metrics_path,omitempty"`
}

type MemoryConfig struct {
	CacheSize    int    `yaml:"cache_size"`
	CoreDir      string `yaml:"core_dir"`
	ArchiveDir   string `yaml:"archive_dir"`
	IndexPath    string `yaml:"index_path"`
	IndexBackend string `yaml:"index_backend"`
}

type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs,omitempty"`
}

type ProviderConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type GeneratorConfig struct {
	Backend              string         `yaml:"backend"`
	Thoughts             []string       `yaml:"thoughts,omitempty"`
	Dreams               []string       `yaml:"dreams,omitempty"`
	AcceptProbability    float64        `yaml:"accept_probability"`
	ChangeProbability    float64        `yaml:"change_probability"`
	DiscoveryProbability float64        `yaml:"discovery_probability"`
	Provider             ProviderConfig `yaml:"provider,omitempty"`
}

type EvolutionConfig struct {
	Backend       string `yaml:"backend"`
	RepoPath      string `yaml:"repo_path,omitempty"`
	AllowMutation bool   `yaml:"allow_mutation"`
	Author        string `yaml:"author,omitempty"`
	Email         string `yaml:"email,omitempty"`
}

type SpoolConfig struct {
	Dir            string        `yaml:"dir"`
	Debounce       time.Duration `yaml:"debounce"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
	Ignore         []string      `yaml:"ignore,omitempty"`
}

type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Memory    MemoryConfig    `yaml:"memory"`
	Logging   LoggingConfig   `yaml:"logging"`
	Generator GeneratorConfig `yaml:"generator"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Spool     SpoolConfig     `yaml:"spool"`
}

func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Workers:          4,
			CycleInterval:    time.Second,
			WorkerInterval:   500 * time.Millisecond,
			DreamProbability: 0.2,
			JoinTimeout:      5 * time.Second,
			ResultBuffer:     256,
			TaskBuffer:       64,
			Autonomous:       true,
			PersistResults:   true,
			MetricsPath:      "logs/metrics.yaml",
		},
		Memory: MemoryConfig{
			CacheSize:    1024,
			CoreDir:      "memory/core",
			ArchiveDir:   "memory/archive",
			IndexPath:    "memory/core/.index.json",
			IndexBackend: IndexBackendJSON,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Generator: GeneratorConfig{
			Backend:              GeneratorCanned,
			AcceptProbability:    0.8,
			ChangeProbability:    0.1,
			DiscoveryProbability: 0.05,
		},
		Evolution: EvolutionConfig{
			Backend: EvolutionNone,
			Author:  DefaultAuthor,
			Email:   DefaultEmail,
		},
		Spool: SpoolConfig{
			Dir:            "spool",
			Debounce:       500 * time.Millisecond,
			RescanInterval: 5 * time.Second,
			Ignore:         []string{"*.tmp", "*.swp", ".*"},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate reports the first setting that prevents startup as a *ConfigError.
func (c *Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	switch c.Generator.Backend {
	case GeneratorCanned, GeneratorLLM:
	default:
		return &ConfigError{Field: "generator.backend", Reason: fmt.Sprintf("unknown backend %q", c.Generator.Backend)}
	}
	switch c.Evolution.Backend {
	case EvolutionNone, "":
	case EvolutionGit:
		if c.Evolution.RepoPath == "" {
			return &ConfigError{Field: "evolution.repo_path", Reason: "required for git backend"}
		}
		if !filepath.IsLocal(c.Scheduler.SourceRef) {
			return &ConfigError{Field: "scheduler.source_ref", Reason: "must name a file inside the evolution repository"}
		}
	default:
		return &ConfigError{Field: "evolution.backend", Reason: fmt.Sprintf("unknown backend %q", c.Evolution.Backend)}
	}
	return nil
}

func (c SchedulerConfig) Validate() error {
	switch {
	case c.Workers <= 0:
		return &ConfigError{Field: "scheduler.workers", Reason: "must be positive"}
	case c.CycleInterval <= 0:
		return &ConfigError{Field: "scheduler.cycle_interval", Reason: "must be positive"}
	case c.WorkerInterval < 0:
		return &ConfigError{Field: "scheduler.worker_interval", Reason: "must not be negative"}
	case c.JoinTimeout <= 0:
		return &ConfigError{Field: "scheduler.join_timeout", Reason: "must be positive"}
	case c.DreamProbability < 0 || c.DreamProbability > 1:
		return &ConfigError{Field: "scheduler.dream_probability", Reason: "must be within [0, 1]"}
	case c.ResultBuffer <= 0:
		return &ConfigError{Field: "scheduler.result_buffer", Reason: "must be positive"}
	case c.TaskBuffer <= 0:
		return &ConfigError{Field: "scheduler.task_buffer", Reason: "must be positive"}
	}
	return nil
}

func (c MemoryConfig) Validate() error {
	switch {
	case c.CacheSize <= 0:
		return &ConfigError{Field: "memory.cache_size", Reason: "must be positive"}
	case c.CoreDir == "":
		return &ConfigError{Field: "memory.core_dir", Reason: "required"}
	case c.ArchiveDir == "":
		return &ConfigError{Field: "memory.archive_dir", Reason: "required"}
	case c.IndexPath == "":
		return &ConfigError{Field: "memory.index_path", Reason: "required"}
	}
	switch c.IndexBackend {
	case IndexBackendJSON, IndexBackendSQLite:
	default:
		return &ConfigError{Field: "memory.index_backend", Reason: fmt.Sprintf("unknown backend %q", c.IndexBackend)}
	}
	return nil
}

// Resolve rewrites every relative path in the config against root.
func (c *Config) Resolve(root string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	c.Scheduler.MetricsPath = abs(c.Scheduler.MetricsPath)
	c.Memory.CoreDir = abs(c.Memory.CoreDir)
	c.Memory.ArchiveDir = abs(c.Memory.ArchiveDir)
	c.Memory.IndexPath = abs(c.Memory.IndexPath)
	c.Evolution.RepoPath = abs(c.Evolution.RepoPath)
	c.Spool.Dir = abs(c.Spool.Dir)
}
