// Package logging builds the *slog.Logger used by builders and conventions.
// Records are written through a zap core.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/junioryono/conventions/config"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error. Defaults to info.
	Level string

	// Development switches to zap's development encoder settings.
	Development bool

	// Encoding is "json" or "console". Defaults to json, or console in
	// development.
	Encoding string

	// Name is attached to every record as the logger name.
	Name string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a slog.Logger backed by a zap core.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	if opts.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}

	encoding := strings.ToLower(opts.Encoding)
	if encoding == "" {
		encoding = "json"
		if opts.Development {
			encoding = "console"
		}
	}

	var enc zapcore.Encoder
	switch encoding {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("logging: unknown encoding %q", opts.Encoding)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)

	handlerOpts := []zapslog.HandlerOption{zapslog.WithCaller(opts.Development)}
	if opts.Name != "" {
		handlerOpts = append(handlerOpts, zapslog.WithName(opts.Name))
	}

	return slog.New(zapslog.NewHandler(core, handlerOpts...)), nil
}

// FromConfiguration reads Options from the "logging" section of cfg.
func FromConfiguration(cfg config.Configuration, out io.Writer) (*slog.Logger, error) {
	section := cfg.Section("logging")
	return New(Options{
		Level:       section.Get("level"),
		Development: config.GetBool(section, "development", false),
		Encoding:    section.Get("encoding"),
		Name:        section.Get("name"),
		Output:      out,
	})
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a level name onto a zap level. An empty name is info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return level, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}
