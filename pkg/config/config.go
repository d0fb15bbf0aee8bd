package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/loader"
	"github.com/ritzau/course-planner/pkg/logging"
)

// DefaultFile is the optional config file read from the working directory
const DefaultFile = "course-planner.toml"

// EnvPrefix prefixes environment overrides, e.g. COURSE_PLANNER_PORT=9090
const EnvPrefix = "COURSE_PLANNER_"

// Config holds all configuration for the application
type Config struct {
	DataDir    string `koanf:"data"`
	Format     string `koanf:"format"`
	WebMode    bool   `koanf:"web"`
	Port       int    `koanf:"port"`
	Watch      bool   `koanf:"watch"`
	Seed       int64  `koanf:"seed"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
	JSONLogs   bool   `koanf:"json_logs"`

	// Generator
	Subjects     []string `koanf:"subjects"`
	Select       []string `koanf:"select"`
	Shift        string   `koanf:"shift"`
	MaxGap       string   `koanf:"max_gap"`
	Compact      bool     `koanf:"compact"`
	RespectFixed bool     `koanf:"respect_fixed"`
	ScheduleOut  string   `koanf:"schedule_out"`
}

// listKeys hold comma-separated lists when set through the environment
var listKeys = map[string]bool{"subjects": true, "select": true}

func defaults() map[string]any {
	return map[string]any{
		"data":          "data",
		"format":        string(loader.FormatAuto),
		"web":           false,
		"port":          8080,
		"watch":         false,
		"seed":          int64(0),
		"verbosity":     "",
		"verbose":       0,
		"json_logs":     false,
		"subjects":      []string{},
		"select":        []string{},
		"shift":         string(generator.ShiftAny),
		"max_gap":       "unbounded",
		"compact":       false,
		"respect_fixed": false,
		"schedule_out":  "",
	}
}

// RegisterFlags defines the command-line flags understood by Load
func RegisterFlags(f *pflag.FlagSet) {
	f.StringP("data", "d", "data", "Directory holding subjects/professors/sections/meetings files")
	f.String("format", "auto", "Catalog file format: auto, json or csv")
	f.Bool("web", false, "Start the web server instead of printing a report")
	f.IntP("port", "p", 8080, "Port for the web server (only used with --web)")
	f.BoolP("watch", "w", false, "Reload the catalog when data files change")
	f.Int64("seed", 0, "Generator seed (0 = different every run)")
	f.String("verbosity", "", "Log level: trace, debug, info, warn or error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", false, "Log as JSON")
	f.StringSliceP("subjects", "s", nil, "Subjects to schedule (comma-separated)")
	f.StringSlice("select", nil, "Sections selected before generating (comma-separated NRCs)")
	f.String("shift", "any", "Preferred shift: any, morning, afternoon or evening")
	f.String("max-gap", "unbounded", "Largest idle gap in minutes before penalties, or 'unbounded'")
	f.Bool("compact", false, "Prefer schedules on fewer, shorter days")
	f.Bool("respect-fixed", false, "Keep the --select sections in the generated schedule")
	f.String("schedule-out", "", "Also write the generated schedule to this .csv or .pdf file")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, DefaultFile)
}

func load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - course-planner.toml
	// We ignore errors here as the file might not exist
	if path != "" {
		_ = k.Load(file.Provider(path), toml.Parser())
	}

	// 3. Environment Variables
	// Prefix: COURSE_PLANNER_ (e.g., COURSE_PLANNER_MAX_GAP=60)
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags; dashed flag names map onto the underscored keys
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, any) {
			return strings.ReplaceAll(fl.Name, "-", "_"), posflag.FlagVal(f, fl)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Preferences converts the generator settings, validating shift and gap
func (c *Config) Preferences() (generator.Options, error) {
	shift, err := generator.ParseShift(c.Shift)
	if err != nil {
		return generator.Options{}, err
	}
	gap, err := generator.ParseMaxGap(c.MaxGap)
	if err != nil {
		return generator.Options{}, err
	}
	return generator.Options{
		Shift:                 shift,
		MaxGapMinutes:         gap,
		PreferCompactDays:     c.Compact,
		RespectFixedSelection: c.RespectFixed,
	}, nil
}

// CatalogFormat validates the format setting
func (c *Config) CatalogFormat() (loader.Format, error) {
	return loader.ParseFormat(c.Format)
}

// ScheduleFormat returns "csv" or "pdf" from the schedule_out extension,
// or "" when no schedule file is wanted
func (c *Config) ScheduleFormat() (string, error) {
	if c.ScheduleOut == "" {
		return "", nil
	}
	switch ext := strings.ToLower(filepath.Ext(c.ScheduleOut)); ext {
	case ".csv", ".pdf":
		return ext[1:], nil
	default:
		return "", fmt.Errorf("unsupported schedule file %q (want .csv or .pdf)", c.ScheduleOut)
	}
}

// LogLevel resolves the log level. An explicit verbosity wins over -v counts.
func (c *Config) LogLevel() slog.Level {
	if c.Verbosity != "" {
		return logging.ParseLevel(c.Verbosity)
	}
	switch {
	case c.VerboseCnt >= 2:
		return logging.LevelTrace
	case c.VerboseCnt == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Validate checks the settings that have a fixed set of values
func (c *Config) Validate() error {
	if _, err := c.CatalogFormat(); err != nil {
		return err
	}
	if _, err := c.Preferences(); err != nil {
		return err
	}
	if _, err := c.ScheduleFormat(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
