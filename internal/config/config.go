// Package config provides stardust's configuration: defaults, an optional
// YAML file, key=value overrides and command-line flags, applied in that
// order.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stardust/internal/world"
)

// Config contains every stardust setting.
type Config struct {
	World   WorldConfig   `json:"world" yaml:"world"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Scene   SceneConfig   `json:"scene" yaml:"scene"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Viewer  ViewerConfig  `json:"viewer" yaml:"viewer"`
}

// WorldConfig sizes the shared block.
type WorldConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// MaxBytes caps the shared block; 0 means unlimited.
	MaxBytes int `json:"max_bytes" yaml:"max_bytes"`
	// Wrapping names the particle seen past each edge: top, left, bottom, right.
	Wrapping []string `json:"wrapping" yaml:"wrapping"`
}

// EngineConfig configures the worker pool and tick loop.
type EngineConfig struct {
	// Workers is the pool size; 0 sizes it from the CPU count.
	Workers        int        `json:"workers" yaml:"workers"`
	IterationLimit int        `json:"iteration_limit" yaml:"iteration_limit"`
	TPS            int        `json:"tps" yaml:"tps"`
	Lock           LockConfig `json:"lock" yaml:"lock"`
}

// LockConfig bounds the global lock retry loop.
type LockConfig struct {
	Attempts int           `json:"attempts" yaml:"attempts"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	// Policy is "best-effort" or "fail-fast".
	Policy string `json:"policy" yaml:"policy"`
}

// SceneConfig chooses the initial grid contents.
type SceneConfig struct {
	// Name is one of Scenes.
	Name string `json:"name" yaml:"name"`
	Seed int64  `json:"seed" yaml:"seed"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	// Path of the database; empty disables the journal.
	Path          string        `json:"path" yaml:"path"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is "error", "warn", "info", "debug" or "trace".
	Level string `json:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// ViewerConfig configures the GUI.
type ViewerConfig struct {
	Scale int `json:"scale" yaml:"scale"`
	Brush int `json:"brush" yaml:"brush"`
}

// Scenes lists the scene names the bootstrapper understands.
var Scenes = []string{"empty", "box", "sandbox", "hourglass"}

// Default returns a Config with sensible defaults.
func Default() *Config {
	lock := world.DefaultLockOptions()
	return &Config{
		World: WorldConfig{
			Width:    256,
			Height:   256,
			Wrapping: []string{"wall", "wall", "wall", "wall"},
		},
		Engine: EngineConfig{
			IterationLimit: 100,
			TPS:            60,
			Lock: LockConfig{
				Attempts: lock.Attempts,
				Timeout:  lock.Timeout,
				Policy:   lock.Policy.String(),
			},
		},
		Scene:   SceneConfig{Name: "sandbox", Seed: 42},
		Journal: JournalConfig{FlushInterval: time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Viewer:  ViewerConfig{Scale: 3, Brush: 3},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Load returns the defaults, or the file at path when path is not empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world size must be positive, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.World.MaxBytes < 0 {
		return fmt.Errorf("max_bytes must be non-negative, got %d", c.World.MaxBytes)
	}
	if len(c.World.Wrapping) != 4 {
		return fmt.Errorf("wrapping needs 4 edges (top, left, bottom, right), got %d", len(c.World.Wrapping))
	}
	if c.Engine.Workers < 0 || c.Engine.Workers > world.MaxWorkers {
		return fmt.Errorf("workers must be between 0 and %d, got %d", world.MaxWorkers, c.Engine.Workers)
	}
	if c.Engine.IterationLimit <= 0 {
		return fmt.Errorf("iteration_limit must be positive, got %d", c.Engine.IterationLimit)
	}
	if c.Engine.TPS <= 0 {
		return fmt.Errorf("tps must be positive, got %d", c.Engine.TPS)
	}
	if c.Engine.Lock.Attempts <= 0 || c.Engine.Lock.Timeout <= 0 {
		return fmt.Errorf("lock attempts and timeout must be positive, got %d/%v", c.Engine.Lock.Attempts, c.Engine.Lock.Timeout)
	}
	if _, err := parsePolicy(c.Engine.Lock.Policy); err != nil {
		return err
	}
	if !validScene(c.Scene.Name) {
		return fmt.Errorf("invalid scene: %s (valid: %s)", c.Scene.Name, strings.Join(Scenes, ", "))
	}
	if c.Journal.FlushInterval < 0 {
		return fmt.Errorf("flush_interval must be non-negative, got %v", c.Journal.FlushInterval)
	}
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}
	if c.Viewer.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %d", c.Viewer.Scale)
	}
	return nil
}

func validScene(name string) bool {
	for _, s := range Scenes {
		if s == name {
			return true
		}
	}
	return false
}

func parsePolicy(s string) (world.LockPolicy, error) {
	switch s {
	case "", "best-effort":
		return world.BestEffort, nil
	case "fail-fast":
		return world.FailFast, nil
	default:
		return 0, fmt.Errorf("invalid lock policy: %s (valid: best-effort, fail-fast)", s)
	}
}

// LockOptions converts the lock settings for world.WithGlobalLock.
func (c *Config) LockOptions(logger *slog.Logger) world.LockOptions {
	policy, err := parsePolicy(c.Engine.Lock.Policy)
	if err != nil {
		policy = world.BestEffort
	}
	return world.LockOptions{
		Attempts: c.Engine.Lock.Attempts,
		Timeout:  c.Engine.Lock.Timeout,
		Policy:   policy,
		Logger:   logger,
	}
}

// Apply overrides settings from key=value pairs. Keys use the flag names.
func (c *Config) Apply(kv map[string]string) error {
	for k, v := range kv {
		if err := c.set(k, v); err != nil {
			return fmt.Errorf("override %s=%q: %w", k, v, err)
		}
	}
	return nil
}

// ParseOverrides splits "key=value" arguments.
func ParseOverrides(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("override %q is not key=value", a)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func (c *Config) set(key, v string) error {
	atoi := func(dst *int) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
	dur := func(dst *time.Duration) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
	switch key {
	case "w", "width":
		return atoi(&c.World.Width)
	case "h", "height":
		return atoi(&c.World.Height)
	case "max_bytes":
		return atoi(&c.World.MaxBytes)
	case "wrapping":
		c.World.Wrapping = strings.Split(v, ",")
	case "workers":
		return atoi(&c.Engine.Workers)
	case "iterations", "iteration_limit":
		return atoi(&c.Engine.IterationLimit)
	case "tps":
		return atoi(&c.Engine.TPS)
	case "lock_attempts":
		return atoi(&c.Engine.Lock.Attempts)
	case "lock_timeout":
		return dur(&c.Engine.Lock.Timeout)
	case "lock_policy":
		c.Engine.Lock.Policy = v
	case "scene":
		c.Scene.Name = v
	case "seed":
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Scene.Seed = n
	case "journal":
		c.Journal.Path = v
	case "flush_interval":
		return dur(&c.Journal.FlushInterval)
	case "log_level":
		c.Logging.Level = v
	case "log_format":
		c.Logging.Format = v
	case "scale":
		return atoi(&c.Viewer.Scale)
	case "brush":
		return atoi(&c.Viewer.Brush)
	default:
		return fmt.Errorf("unknown key")
	}
	return nil
}

// Bind attaches the most used settings to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.World.Width, "width", c.World.Width, "grid width in cells")
	fs.IntVar(&c.World.Height, "height", c.World.Height, "grid height in cells")
	fs.IntVar(&c.Engine.Workers, "workers", c.Engine.Workers, "worker count (0 = CPUs minus reserved)")
	fs.IntVar(&c.Engine.TPS, "tps", c.Engine.TPS, "ticks per second")
	fs.StringVar(&c.Scene.Name, "scene", c.Scene.Name, "initial scene: "+strings.Join(Scenes, ", "))
	fs.Int64Var(&c.Scene.Seed, "seed", c.Scene.Seed, "seed for scene generation")
	fs.StringVar(&c.Journal.Path, "journal", c.Journal.Path, "run journal database (empty disables)")
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "log level: error, warn, info, debug, trace")
	fs.IntVar(&c.Viewer.Scale, "scale", c.Viewer.Scale, "pixel scale multiplier")
}
