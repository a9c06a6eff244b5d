// Package config holds the validated run configuration of the metrics pipeline.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default values for configuration.
const (
	DefaultWindowDays     = 28
	DefaultRetentionDays  = 90
	DefaultMaxPages       = 10
	DefaultWorkers        = 4
	DefaultRequestTimeout = 30 * time.Second
	DefaultHistoryPath    = "metrics_data/traffic_history.json"
	DefaultSQLitePath     = "metrics_data/traffic_history.db"
	DefaultOutputDir      = "metrics"
)

// History backends.
const (
	JSONBackend   = "json"
	SQLiteBackend = "sqlite"
)

// Output formats for the run summary.
const (
	TextOut = "text"
	JSONOut = "json"
)

// ErrConfiguration is returned when required settings are missing or invalid.
var ErrConfiguration = errors.New("configuration error")

// Config holds the final, validated configuration of a run.
type Config struct {
	Owner string
	Repo  string
	Token string

	WindowDays     int
	RetentionDays  int
	MaxPages       int
	Workers        int
	RequestTimeout time.Duration
	IncludeTotals  bool

	HistoryBackend string
	HistoryPath    string
	OutputDir      string
	Output         string
}

// RawInput holds the unvalidated values from flags, environment and config file.
// Viper unmarshals into this struct.
type RawInput struct {
	Owner          string        `mapstructure:"owner"`
	Repo           string        `mapstructure:"repo"`
	Token          string        `mapstructure:"token"`
	Window         int           `mapstructure:"window"`
	Retention      int           `mapstructure:"retention"`
	MaxPages       int           `mapstructure:"max-pages"`
	Workers        int           `mapstructure:"workers"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Totals         bool          `mapstructure:"totals"`
	HistoryBackend string        `mapstructure:"history-backend"`
	HistoryPath    string        `mapstructure:"history-path"`
	OutDir         string        `mapstructure:"out-dir"`
	Output         string        `mapstructure:"output"`
}

// FromRaw normalizes the raw input and validates the result. Numeric settings
// get their defaults from the flag definitions, so an explicit 0 is rejected here.
func FromRaw(in RawInput) (Config, error) {
	cfg := Config{
		Owner:          strings.TrimSpace(in.Owner),
		Repo:           strings.TrimSpace(in.Repo),
		Token:          strings.TrimSpace(in.Token),
		WindowDays:     in.Window,
		RetentionDays:  in.Retention,
		MaxPages:       in.MaxPages,
		Workers:        in.Workers,
		RequestTimeout: in.Timeout,
		IncludeTotals:  in.Totals,
		HistoryBackend: strings.ToLower(in.HistoryBackend),
		HistoryPath:    in.HistoryPath,
		OutputDir:      in.OutDir,
		Output:         strings.ToLower(in.Output),
	}
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = JSONBackend
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = DefaultHistoryPath
		if cfg.HistoryBackend == SQLiteBackend {
			cfg.HistoryPath = DefaultSQLitePath
		}
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Output == "" {
		cfg.Output = TextOut
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration once at the boundary, before any I/O.
func (c Config) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	if c.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention must be greater than 0 (received %d)", ErrConfiguration, c.RetentionDays)
	}
	// A one-day window cannot be plotted as a line.
	if c.WindowDays < 2 || c.WindowDays > c.RetentionDays {
		return fmt.Errorf("%w: window must be between 2 and %d days (received %d)", ErrConfiguration, c.RetentionDays, c.WindowDays)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("%w: max-pages must be greater than 0 (received %d)", ErrConfiguration, c.MaxPages)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be greater than 0 (received %d)", ErrConfiguration, c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: timeout must be greater than 0 (received %s)", ErrConfiguration, c.RequestTimeout)
	}
	switch c.HistoryBackend {
	case JSONBackend, SQLiteBackend:
	default:
		return fmt.Errorf("%w: invalid history backend '%s'. must be json, sqlite", ErrConfiguration, c.HistoryBackend)
	}
	switch c.Output {
	case TextOut, JSONOut:
	default:
		return fmt.Errorf("%w: invalid output format '%s'. must be text, json", ErrConfiguration, c.Output)
	}
	return nil
}

// Repository returns the "owner/repo" name.
func (c Config) Repository() string {
	return c.Owner + "/" + c.Repo
}
