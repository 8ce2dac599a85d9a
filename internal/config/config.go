// Package config loads the service configuration from, in increasing order of
// precedence, built-in defaults, an optional YAML file, RECALL_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/recall/internal/fsrs"
)

const envPrefix = "RECALL_"

type Server struct {
	Addr   string `koanf:"addr" validate:"required"`
	APIKey string `koanf:"api_key" validate:"required"`
}

type Database struct {
	Path string `koanf:"path" validate:"required"`
}

type Scheduler struct {
	DesiredRetention float64         `koanf:"desired_retention" validate:"gt=0,lt=1"`
	LearningSteps    []time.Duration `koanf:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps  []time.Duration `koanf:"relearning_steps" validate:"dive,gt=0"`
	MaximumInterval  int             `koanf:"maximum_interval" validate:"min=1"`
}

type Review struct {
	MaxAttempts int `koanf:"max_attempts" validate:"min=1,max=20"`
}

type Sync struct {
	Interval time.Duration `koanf:"interval" validate:"min=0"` // 0 disables the periodic sync
	ReposDir string        `koanf:"repos_dir" validate:"required"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Config is the complete service configuration.
type Config struct {
	Server    Server    `koanf:"server"`
	Database  Database  `koanf:"database"`
	Scheduler Scheduler `koanf:"scheduler"`
	Review    Review    `koanf:"review"`
	Sync      Sync      `koanf:"sync"`
	Log       Log       `koanf:"log"`

	// One-shot command modes.
	AddSource string `koanf:"add-source"`
	Deck      string `koanf:"deck"`
	User      string `koanf:"user"`
	SyncOnce  bool   `koanf:"sync-once"`
}

// Flags returns the command-line flags. Their defaults are the defaults of
// the whole configuration.
func Flags() *pflag.FlagSet {
	d := fsrs.DefaultParams()
	f := pflag.NewFlagSet("recall", pflag.ContinueOnError)

	f.String("config", "", "path to a YAML configuration file")
	f.String("server.addr", ":8080", "HTTP listen address")
	f.String("server.api_key", "", "shared secret expected in the X-API-Key header")
	f.String("database.path", "recall.db", "path to the SQLite database file")
	f.Float64("scheduler.desired_retention", d.DesiredRetention, "target probability of recall at the due date")
	f.StringSlice("scheduler.learning_steps", durations(d.LearningSteps), "sub-day steps for new cards")
	f.StringSlice("scheduler.relearning_steps", durations(d.RelearningSteps), "sub-day steps after a lapse")
	f.Int("scheduler.maximum_interval", d.MaximumInterval, "longest interval in days")
	f.Int("review.max_attempts", 5, "attempts for a review that races with another review of the same card")
	f.Duration("sync.interval", 0, "how often to re-import sources, 0 to disable")
	f.String("sync.repos_dir", "repos", "directory git sources are checked out into")
	f.String("log.level", "info", "debug, info, warn or error")
	f.String("log.format", "text", "text or json")

	f.String("add-source", "", "register a local directory or git URL as a source, then exit")
	f.String("deck", "", "deck the new source imports into (with --add-source)")
	f.String("user", "", "owner of the deck (with --add-source)")
	f.Bool("sync-once", false, "import all sources once, then exit")
	return f
}

func durations(ds []time.Duration) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

// Load parses args and merges every configuration layer.
func Load(args []string) (*Config, error) {
	f := Flags()
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RECALL_SCHEDULER_DESIRED_RETENTION -> scheduler.desired_retention
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags override everything when set; their defaults fill the gaps.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration, including the scheduler parameters.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Params(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Params converts the scheduler section into memory model parameters.
func (c *Config) Params() (*fsrs.Params, error) {
	p := fsrs.DefaultParams()
	p.DesiredRetention = c.Scheduler.DesiredRetention
	p.LearningSteps = c.Scheduler.LearningSteps
	p.RelearningSteps = c.Scheduler.RelearningSteps
	p.MaximumInterval = c.Scheduler.MaximumInterval
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoadDotEnv copies the variables of a .env file into the environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
