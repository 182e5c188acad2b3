package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mysqlassistant/internal/model"
	"mysqlassistant/internal/prober"
	"mysqlassistant/internal/registry"
)

const envPrefix = "MYSQLASSISTANT_"

// DefaultFile is read when no file is named and it exists.
const DefaultFile = "mysqlassistant.yml"

type Config struct {
	File string `yaml:"-"`

	LogLevel  string    `yaml:"log_level"`
	LogFile   string    `yaml:"log_file,omitempty"`
	Release   int       `yaml:"release"`
	Storage   Storage   `yaml:"storage"`
	Source    Source    `yaml:"source"`
	Target    Target    `yaml:"target"`
	Probe     Probe     `yaml:"probe"`
	Migration Migration `yaml:"migration"`
	Settings  Settings  `yaml:"settings"`
}

type Storage struct {
	Path string `yaml:"path"`
}

// Source points at the media center's Database folder.
type Source struct {
	Dir string `yaml:"dir"`
}

type Target struct {
	Provider string `yaml:"provider"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Database is only used by postgres.
	Database string `yaml:"database,omitempty"`
}

type Probe struct {
	Network        string        `yaml:"network"`
	Ports          []int         `yaml:"ports"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

type Migration struct {
	IncludeWatchedState bool `yaml:"include_watched_state"`
	IncludeResumePoints bool `yaml:"include_resume_points"`
	CleanLibraryFirst   bool `yaml:"clean_library_first"`
	BatchSize           int  `yaml:"batch_size"`
	// Bootstrap creates the expected schema when the target has none.
	Bootstrap bool `yaml:"bootstrap"`
}

type Settings struct {
	Path string `yaml:"path"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Release:  registry.Latest(),
		Storage:  Storage{Path: "./storage"},
		Target:   Target{Provider: "mysql", Port: 3306},
		Probe: Probe{
			Ports:          append([]int(nil), prober.DefaultPorts...),
			Timeout:        prober.DefaultTimeout,
			MaxConcurrency: prober.DefaultMaxConcurrency,
		},
		Migration: Migration{
			IncludeWatchedState: true,
			IncludeResumePoints: true,
			BatchSize:           500,
		},
		Settings: Settings{Path: "advancedsettings.xml"},
	}
}

// Load reads file over the defaults, then applies environment overrides.
// An empty file falls back to DefaultFile when it exists.
func Load(file string) (*Config, error) {
	cfg := NewConfig()
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", file, err)
		}
		cfg.File = file
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv(envPrefix+"LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv(envPrefix+"LOG_FILE", c.LogFile)
	c.Storage.Path = getEnv(envPrefix+"STORAGE_PATH", c.Storage.Path)
	c.Source.Dir = getEnv(envPrefix+"SOURCE_DIR", c.Source.Dir)
	c.Target.Provider = getEnv(envPrefix+"TARGET_PROVIDER", c.Target.Provider)
	c.Target.Host = getEnv(envPrefix+"TARGET_HOST", c.Target.Host)
	c.Target.User = getEnv(envPrefix+"TARGET_USER", c.Target.User)
	c.Target.Password = getEnv(envPrefix+"TARGET_PASSWORD", c.Target.Password)
	c.Target.Database = getEnv(envPrefix+"TARGET_DATABASE", c.Target.Database)
	c.Probe.Network = getEnv(envPrefix+"PROBE_NETWORK", c.Probe.Network)
	c.Settings.Path = getEnv(envPrefix+"SETTINGS_PATH", c.Settings.Path)

	var err error
	if c.Release, err = getEnvInt(envPrefix+"RELEASE", c.Release); err != nil {
		return err
	}
	if c.Target.Port, err = getEnvInt(envPrefix+"TARGET_PORT", c.Target.Port); err != nil {
		return err
	}
	if c.Probe.MaxConcurrency, err = getEnvInt(envPrefix+"PROBE_MAX_CONCURRENCY", c.Probe.MaxConcurrency); err != nil {
		return err
	}
	if c.Migration.BatchSize, err = getEnvInt(envPrefix+"BATCH_SIZE", c.Migration.BatchSize); err != nil {
		return err
	}
	if v := os.Getenv(envPrefix + "PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPROBE_TIMEOUT: %w", envPrefix, err)
		}
		c.Probe.Timeout = d
	}
	if v := os.Getenv(envPrefix + "PROBE_PORTS"); v != "" {
		var ports []int
		for _, p := range splitAndTrim(v) {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("%sPROBE_PORTS: %w", envPrefix, err)
			}
			ports = append(ports, n)
		}
		c.Probe.Ports = ports
	}
	return nil
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	provider := strings.ToLower(c.Target.Provider)
	switch provider {
	case "mysql", "mariadb", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported target provider %q", c.Target.Provider)
	}
	if provider != "sqlite" && (c.Target.Port < 1 || c.Target.Port > 65535) {
		return fmt.Errorf("target port %d out of range", c.Target.Port)
	}
	if _, err := registry.Lookup(c.Release); err != nil {
		return err
	}
	for _, p := range c.Probe.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("probe port %d out of range", p)
		}
	}
	if c.Probe.Timeout <= 0 {
		return errors.New("probe timeout must be positive")
	}
	if c.Probe.MaxConcurrency <= 0 {
		return errors.New("probe max_concurrency must be positive")
	}
	if c.Migration.BatchSize <= 0 {
		return errors.New("migration batch_size must be positive")
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	return nil
}

// Profile builds the connection profile for logical from the target section.
func (c *Config) Profile(logical model.LogicalDB) model.ConnectionProfile {
	return model.ConnectionProfile{
		Provider:  strings.ToLower(c.Target.Provider),
		Host:      c.Target.Host,
		Port:      c.Target.Port,
		Username:  c.Target.User,
		Password:  c.Target.Password,
		LogicalDB: logical,
		Database:  c.Target.Database,
	}
}

func (c *Config) Options() model.Options {
	return model.Options{
		IncludeWatchedState: c.Migration.IncludeWatchedState,
		IncludeResumePoints: c.Migration.IncludeResumePoints,
		CleanLibraryFirst:   c.Migration.CleanLibraryFirst,
	}
}

func (c *Config) ProbeOptions() prober.Options {
	return prober.Options{
		Network:        c.Probe.Network,
		Ports:          c.Probe.Ports,
		Timeout:        c.Probe.Timeout,
		MaxConcurrency: c.Probe.MaxConcurrency,
	}
}

// WriteStarter writes a default config to path and refuses to overwrite.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	b, err := yaml.Marshal(NewConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
