package conventions

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/junioryono/conventions/config"
)

// Standard environment names.
const (
	Development = "Development"
	Staging     = "Staging"
	Production  = "Production"
)

// Environment describes the hosting environment conventions run in.
type Environment struct {
	Name            string
	ApplicationName string
	ContentRootPath string
	WebRootPath     string
}

// Is reports whether the environment name equals name, ignoring case.
func (e *Environment) Is(name string) bool {
	return e != nil && strings.EqualFold(e.Name, name)
}

// IsDevelopment reports whether the environment is Development.
func (e *Environment) IsDevelopment() bool { return e.Is(Development) }

// IsStaging reports whether the environment is Staging.
func (e *Environment) IsStaging() bool { return e.Is(Staging) }

// IsProduction reports whether the environment is Production.
func (e *Environment) IsProduction() bool { return e.Is(Production) }

// EnvironmentFromConfiguration reads the environment from cfg.
//
// Keys: "environment" (default Production), "applicationName" (default the
// executable name), "contentRoot" (default the working directory) and
// "webRoot" (relative paths resolve against the content root).
func EnvironmentFromConfiguration(cfg config.Configuration) *Environment {
	env := &Environment{
		Name:            config.GetString(cfg, "environment", Production),
		ApplicationName: cfg.Get("applicationName"),
		ContentRootPath: cfg.Get("contentRoot"),
		WebRootPath:     cfg.Get("webRoot"),
	}

	if env.ApplicationName == "" {
		if exe, err := os.Executable(); err == nil {
			env.ApplicationName = strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		}
	}

	if env.ContentRootPath == "" {
		if wd, err := os.Getwd(); err == nil {
			env.ContentRootPath = wd
		}
	}

	if env.WebRootPath != "" && !filepath.IsAbs(env.WebRootPath) {
		env.WebRootPath = filepath.Join(env.ContentRootPath, env.WebRootPath)
	}

	return env
}
