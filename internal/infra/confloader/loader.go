package confloader

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes the schema-matched environment variables.
const DefaultEnvPrefix = "NOTEHUB_"

// ErrInvalidTarget is returned when Load is given something other than a
// non-nil pointer to a struct.
var ErrInvalidTarget = errors.New("confloader: target must be a non-nil pointer to a struct")

// Loader merges configuration layers into a koanf tree.
type Loader struct {
	k          *koanf.Koanf
	envPrefix  string
	filePath   string
	envAliases map[string]string
	lookupEnv  func(string) (string, bool)
}

type Option func(*Loader)

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile adds a YAML file layer. A missing file is an error.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithEnvAliases maps unprefixed variable names to config keys, e.g.
// "ADMIN_PASSWORD" to "auth.password". Prefixed variables win over
// aliases.
func WithEnvAliases(aliases map[string]string) Option {
	return func(l *Loader) { l.envAliases = aliases }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges every layer over the values already in target and decodes
// the result back into it.
func (l *Loader) Load(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	fields := structFields(rv.Elem().Type())

	layers := []struct {
		name string
		load func() error
	}{
		{"defaults", func() error { return l.LoadMap(structToMap(rv.Elem())) }},
		{"config file", l.loadFile},
		{"env aliases", func() error { return l.loadAliases(fields) }},
		{"env", func() error { return l.loadEnv(fields) }},
	}
	for _, layer := range layers {
		if err := layer.load(); err != nil {
			return fmt.Errorf("load %s: %w", layer.name, err)
		}
	}

	// Decoding onto prefilled slices would merge them element-wise.
	rv.Elem().SetZero()
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// LoadMap merges a nested map as one layer.
func (l *Loader) LoadMap(data map[string]any) error {
	return l.k.Load(mapSource(data), nil)
}

// String returns the merged value at a dotted key.
func (l *Loader) String(key string) string { return l.k.String(key) }

// Keys returns every merged leaf key.
func (l *Loader) Keys() []string { return l.k.Keys() }

func (l *Loader) loadFile() error {
	if l.filePath == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", l.filePath, err)
	}
	return nil
}

// loadEnv maps NOTEHUB_AUTH_SESSION_TTL to auth.session_ttl by matching
// against the known keys, since both "_" in names and "." between
// sections flatten to "_". Unknown variables are dropped.
func (l *Loader) loadEnv(fields map[string]fieldInfo) error {
	byName := make(map[string]string, len(fields))
	for key := range fields {
		byName[strings.ReplaceAll(key, ".", "_")] = key
	}
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(name, value string) (string, any) {
		key, ok := byName[strings.ToLower(strings.TrimPrefix(name, l.envPrefix))]
		if !ok {
			return "", nil
		}
		return key, fields[key].coerce(value)
	}), nil)
}

func (l *Loader) loadAliases(fields map[string]fieldInfo) error {
	values := make(map[string]any)
	for name, key := range l.envAliases {
		raw, ok := l.lookupEnv(name)
		if !ok {
			continue
		}
		var v any = raw
		if f, known := fields[key]; known {
			v = f.coerce(raw)
		}
		setNested(values, key, v)
	}
	if len(values) == 0 {
		return nil
	}
	return l.LoadMap(values)
}

// mapSource feeds an already nested map to koanf.
type mapSource map[string]any

func (m mapSource) Read() (map[string]any, error) { return m, nil }

func (mapSource) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map source has no byte form")
}
