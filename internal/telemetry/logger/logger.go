package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler a logger writes through.
type Config struct {
	Level     string    // debug, info, warn or error
	Format    string    // json or text
	Output    io.Writer // nil means os.Stderr
	AddSource bool
}

// DefaultConfig is info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// level is shared by every logger New builds, so SetLevel adjusts them all.
var level slog.LevelVar

type handlerFunc func(io.Writer, *slog.HandlerOptions) slog.Handler

var handlers = map[string]handlerFunc{
	"json":    func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	"text":    func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
	"console": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
}

// New builds a logger for cfg and sets the shared level to cfg.Level.
// Credentials are masked on the way out; see redact.go.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
	}
	newHandler, ok := handlers[format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level.Set(lvl)
	return slog.New(newHandler(out, &slog.HandlerOptions{
		Level:       &level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactSensitive,
	})), nil
}

// SetLevel changes the shared level. An unknown name is an error and
// leaves the level as it was.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// GetLevel returns the shared level's name, e.g. "warn".
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ParseLevel accepts slog level names in any case, "warning", and the
// empty string for info.
func ParseLevel(name string) (slog.Level, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// Discard returns a logger with every level disabled.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
