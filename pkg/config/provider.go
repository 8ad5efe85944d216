package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// SourceType identifies where a Source's values came from, used only for
// error messages.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceEnv     SourceType = "env"
)

// Source is a layer in the configuration merge chain. Later sources in the
// chain passed to Manager.Load override earlier ones.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

type defaultProvider struct{}

// NewDefaultProvider returns a Source built from Default(), giving every
// field a value before any override is applied.
func NewDefaultProvider() Source { return &defaultProvider{} }

func (p *defaultProvider) Type() SourceType { return SourceDefault }

func (p *defaultProvider) Load() (map[string]any, error) {
	return structs.Provider(Default(), "koanf").Read()
}

// envVar maps one environment variable to a dotted koanf key, with an
// optional parse function converting the raw string to the destination
// type. This is deliberately explicit (no reflection-based env scanning):
// spec.md §6 lists a small, fixed set of variables.
type envVar struct {
	name    string
	key     string
	convert func(raw string) (any, error)
}

func asString(raw string) (any, error) { return raw, nil }

func asInt(raw string) (any, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid integer: %w", err)
	}
	return v, nil
}

func asFloat(raw string) (any, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float: %w", err)
	}
	return v, nil
}

func asBool(raw string) (any, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid bool: %w", err)
	}
	return v, nil
}

func asDuration(raw string) (any, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return time.Duration(v) * time.Second, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	return v, nil
}

var envVars = []envVar{
	{"MCP_SERVER_NAME", "server.name", asString},
	{"HOST", "server.host", asString},
	{"PORT", "server.port", asInt},
	{"DEBUG", "server.debug", asBool},
	{"ADMIN_BOOTSTRAP_KEY", "auth.bootstrap_key", asString},
	{"S3_ENDPOINT_URL", "s3.endpoint_url", asString},
	{"ACCESS_KEY_ID", "s3.access_key_id", asString},
	{"SECRET_ACCESS_KEY", "s3.secret_access_key", asString},
	{"BUCKET_NAME", "s3.bucket_name", asString},
	{"REGION_NAME", "s3.region_name", asString},
	{"LLMAAS_API_URL", "llm.api_url", asString},
	{"API_KEY", "llm.api_key", asString},
	{"MODEL", "llm.model", asString},
	{"MAX_TOKENS", "llm.max_tokens", asInt},
	{"TEMPERATURE", "llm.temperature", asFloat},
	{"CONSOLIDATION_TIMEOUT", "consolidation.timeout", asDuration},
	{"MAX_NOTES", "consolidation.max_notes", asInt},
	{"GC_SCHEDULE", "gc.schedule", asString},
	{"GC_MAX_AGE_DAYS", "gc.max_age_days", asInt},
}

type envProvider struct{}

// NewEnvProvider returns a Source reading the fixed set of environment
// variables spec.md §6 names.
func NewEnvProvider() Source { return &envProvider{} }

func (p *envProvider) Type() SourceType { return SourceEnv }

func (p *envProvider) Load() (map[string]any, error) {
	out := map[string]any{}
	for _, v := range envVars {
		raw, ok := os.LookupEnv(v.name)
		if !ok || raw == "" {
			continue
		}
		val, err := v.convert(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.name, err)
		}
		out[v.key] = val
	}
	return out, nil
}

// Manager owns the merged koanf instance and the resulting validated Config.
type Manager struct {
	k   *koanf.Koanf
	cfg *Config
}

// NewManager constructs an empty Manager; call Load to populate it.
func NewManager() *Manager {
	return &Manager{k: koanf.New(".")}
}

// Load merges every source in order (later sources win) and unmarshals the
// result into a Config, then validates it.
func (m *Manager) Load(sources ...Source) (*Config, error) {
	k := koanf.New(".")
	for _, src := range sources {
		data, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("config source %q: %w", src.Type(), err)
		}
		if err := k.Load(confmap.Provider(data, "."), nil); err != nil {
			return nil, fmt.Errorf("merging config source %q: %w", src.Type(), err)
		}
	}
	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.k = k
	m.cfg = cfg
	return cfg, nil
}

// Get returns the last successfully loaded Config, or nil if Load has not
// been called.
func (m *Manager) Get() *Config { return m.cfg }
