package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Source produces flattened key/value pairs.
type Source interface {
	Load() (map[string]string, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() (map[string]string, error)

func (f SourceFunc) Load() (map[string]string, error) { return f() }

// SourceError reports a source that could not be loaded.
type SourceError struct {
	Source string
	Path   string
	Cause  error
}

func (e SourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config: load %s source %q: %v", e.Source, e.Path, e.Cause)
	}
	return fmt.Sprintf("config: load %s source: %v", e.Source, e.Cause)
}

func (e SourceError) Unwrap() error { return e.Cause }

// Builder layers sources into a Configuration.
type Builder struct {
	sources []Source
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a custom source.
func (b *Builder) Add(src Source) *Builder {
	if src != nil {
		b.sources = append(b.sources, src)
	}
	return b
}

// AddMap adds an in-memory nested map.
func (b *Builder) AddMap(m map[string]any) *Builder {
	return b.Add(SourceFunc(func() (map[string]string, error) {
		out := make(map[string]string)
		flatten(out, "", m)
		return out, nil
	}))
}

// AddYAML adds YAML content.
func (b *Builder) AddYAML(data []byte) *Builder {
	return b.Add(SourceFunc(func() (map[string]string, error) {
		return parseYAML("", data)
	}))
}

// AddYAMLFile adds a YAML file. A missing optional file is skipped.
func (b *Builder) AddYAMLFile(path string, optional bool) *Builder {
	return b.Add(fileSource(path, optional, parseYAML))
}

// AddJSON adds JSON content. Comments and trailing commas are accepted.
func (b *Builder) AddJSON(data []byte) *Builder {
	return b.Add(SourceFunc(func() (map[string]string, error) {
		return parseJSON("", data)
	}))
}

// AddJSONFile adds a JSON file. A missing optional file is skipped.
func (b *Builder) AddJSONFile(path string, optional bool) *Builder {
	return b.Add(fileSource(path, optional, parseJSON))
}

// AddDotEnvFile adds a dotenv file. "__" in variable names separates
// sections. A missing optional file is skipped.
func (b *Builder) AddDotEnvFile(path string, optional bool) *Builder {
	return b.Add(SourceFunc(func() (map[string]string, error) {
		vars, err := godotenv.Read(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, SourceError{Source: "dotenv", Path: path, Cause: err}
		}

		out := make(map[string]string, len(vars))
		for k, v := range vars {
			out[NormalizeKey(k)] = v
		}
		return out, nil
	}))
}

// AddEnvironmentVariables adds process environment variables that start with
// prefix. The prefix is removed and "__" separates sections, so with prefix
// "APP_" the variable APP_LOGGING__LEVEL sets "logging:level".
func (b *Builder) AddEnvironmentVariables(prefix string) *Builder {
	return b.Add(SourceFunc(func() (map[string]string, error) {
		out := make(map[string]string)
		for _, kv := range os.Environ() {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			rest, ok := strings.CutPrefix(k, prefix)
			if !ok || rest == "" {
				continue
			}
			out[envKey(rest)] = v
		}
		return out, nil
	}))
}

// AddFlags adds the flags of fs that were set on the command line. Dots in
// flag names separate sections. The flag set is read when Build is called.
func (b *Builder) AddFlags(fs *pflag.FlagSet) *Builder {
	if fs == nil {
		return b
	}

	return b.Add(SourceFunc(func() (map[string]string, error) {
		out := make(map[string]string)
		fs.Visit(func(f *pflag.Flag) {
			out[NormalizeKey(f.Name)] = f.Value.String()
		})
		return out, nil
	}))
}

// Build loads every source in order and returns the merged Configuration.
func (b *Builder) Build() (Configuration, error) {
	values := make(map[string]string)
	for _, src := range b.sources {
		loaded, err := src.Load()
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			values[NormalizeKey(k)] = v
		}
	}

	return newConfiguration(values), nil
}

// envKey only treats "__" as a separator; single underscores are part of the name.
func envKey(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "__", KeyDelimiter)
	return strings.Trim(name, KeyDelimiter)
}

func fileSource(path string, optional bool, parse func(string, []byte) (map[string]string, error)) Source {
	return SourceFunc(func() (map[string]string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, SourceError{Source: "file", Path: path, Cause: err}
		}
		return parse(path, data)
	})
}

func parseYAML(path string, data []byte) (map[string]string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, SourceError{Source: "yaml", Path: path, Cause: err}
	}

	out := make(map[string]string)
	if doc == nil {
		return out, nil
	}
	if _, ok := asMap(doc); !ok {
		return nil, SourceError{Source: "yaml", Path: path, Cause: errors.New("document root must be a mapping")}
	}
	flatten(out, "", doc)
	return out, nil
}

func parseJSON(path string, data []byte) (map[string]string, error) {
	var doc any
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, SourceError{Source: "json", Path: path, Cause: err}
	}

	if _, ok := doc.(map[string]any); !ok {
		return nil, SourceError{Source: "json", Path: path, Cause: errors.New("document root must be an object")}
	}

	out := make(map[string]string)
	flatten(out, "", doc)
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func flatten(out map[string]string, prefix string, v any) {
	join := func(k string) string {
		k = NormalizeKey(k)
		if prefix == "" {
			return k
		}
		return prefix + KeyDelimiter + k
	}

	if m, ok := asMap(v); ok {
		for k, child := range m {
			flatten(out, join(k), child)
		}
		return
	}

	switch x := v.(type) {
	case []any:
		for i, child := range x {
			flatten(out, join(fmt.Sprint(i)), child)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprint(x)
		}
	}
}
