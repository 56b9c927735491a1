// Package config provides configuration types and helpers for ctxlens.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
)

// Config holds the application-wide configuration.
type Config struct {
	Format      string           `mapstructure:"format"`
	Verbose     bool             `mapstructure:"verbose"`
	LogLevel    string           `mapstructure:"log_level"`
	Workers     int              `mapstructure:"workers"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Correlation correlate.Policy `mapstructure:"correlation"`
	Watch       WatchConfig      `mapstructure:"watch"`
}

// AnalysisConfig holds report and filter settings.
type AnalysisConfig struct {
	Top       int    `mapstructure:"top"`        // Size of the highest-saving list
	MinTokens int    `mapstructure:"min_tokens"` // Drop smaller requests and reductions
	Model     string `mapstructure:"model"`      // Case-insensitive model regex
}

// WatchConfig holds settings for --watch.
type WatchConfig struct {
	Debounce string `mapstructure:"debounce"` // e.g. "500ms", "2s"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Format:      "text",
		LogLevel:    "error",
		Analysis:    AnalysisConfig{Top: 5},
		Correlation: correlate.DefaultPolicy(),
		Watch:       WatchConfig{Debounce: "500ms"},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json", "table":
	default:
		return fmt.Errorf("invalid format %q (must be text, json, or table)", c.Format)
	}
	if c.Analysis.Top < 0 {
		return fmt.Errorf("analysis.top must not be negative, got %d", c.Analysis.Top)
	}
	if c.Analysis.MinTokens < 0 {
		return fmt.Errorf("analysis.min_tokens must not be negative, got %d", c.Analysis.MinTokens)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.LogLevel != "" && ParseLevel(c.LogLevel) == LevelUnknown {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Watch.Debounce != "" {
		if _, err := ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
	}
	return nil
}

// LogLevel represents a diagnostic log severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelUnknown
)

// String returns the string representation of a LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Slog converts l to the equivalent slog level. Unknown maps to error.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// MarshalJSON implements json.Marshaler for LogLevel.
func (l LogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler for LogLevel.
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseLevel(s)
	return nil
}

// ParseLevel converts a string to a LogLevel.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug", "dbg":
		return LevelDebug
	case "info", "inf":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "err":
		return LevelError
	default:
		return LevelUnknown
	}
}
