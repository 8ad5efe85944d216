// Package config loads and validates the service's configuration, layering
// a struct of hard-coded defaults with environment-variable overrides via
// koanf (Manager/Default() shape), trimmed to the env-var-only
// surface spec.md §6 describes — no config file or CLI-flag layer, since
// original_source has none either.
package config

import (
	"time"
)

// Server controls the HTTP/SSE transport binding (spec.md §6: MCP_SERVER_NAME,
// HOST, PORT, DEBUG).
type Server struct {
	Name  string `koanf:"name"  validate:"required"`
	Host  string `koanf:"host"  validate:"required"`
	Port  int    `koanf:"port"  validate:"min=1,max=65535"`
	Debug bool   `koanf:"debug"`
}

// Auth controls the bootstrap admin key (ADMIN_BOOTSTRAP_KEY).
type Auth struct {
	BootstrapKey string `koanf:"bootstrap_key"`
}

// S3 targets the object store backend (S3_ENDPOINT_URL, ACCESS_KEY_ID,
// SECRET_ACCESS_KEY, BUCKET_NAME, REGION_NAME).
type S3 struct {
	EndpointURL     string `koanf:"endpoint_url"     validate:"required"`
	AccessKeyID     string `koanf:"access_key_id"    validate:"required"`
	SecretAccessKey string `koanf:"secret_access_key" validate:"required"`
	BucketName      string `koanf:"bucket_name"      validate:"required"`
	RegionName      string `koanf:"region_name"      validate:"required"`
}

// LLM targets the OpenAI-compatible chat-completions endpoint (LLMAAS_API_URL,
// API_KEY, MODEL, MAX_TOKENS, TEMPERATURE).
type LLM struct {
	APIURL      string  `koanf:"api_url"     validate:"required"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"       validate:"required"`
	MaxTokens   int     `koanf:"max_tokens"  validate:"min=1"`
	Temperature float64 `koanf:"temperature" validate:"min=0,max=1"`
}

// Consolidation tunes the consolidator (CONSOLIDATION_TIMEOUT, MAX_NOTES).
type Consolidation struct {
	Timeout  time.Duration `koanf:"timeout"   validate:"min=1s"`
	MaxNotes int           `koanf:"max_notes" validate:"min=1"`
}

// GC tunes the background sweep internal/app schedules over
// internal/gc.Collector (GC_SCHEDULE, GC_MAX_AGE_DAYS). Not present in the
// original (which only exposes GC as an operator-triggered tool); added
// per the domain-stack commitment to wire github.com/robfig/cron/v3
// somewhere real. An empty Schedule disables the sweep entirely.
type GC struct {
	Schedule   string `koanf:"schedule"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"min=1"`
}

// Config is the service's full, validated configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Auth          Auth          `koanf:"auth"`
	S3            S3            `koanf:"s3"`
	LLM           LLM           `koanf:"llm"`
	Consolidation Consolidation `koanf:"consolidation"`
	GC            GC            `koanf:"gc"`
}

// Default returns the configuration used when no environment variable
// overrides a given field.
func Default() *Config {
	return &Config{
		Server: Server{
			Name:  "live-memory",
			Host:  "0.0.0.0",
			Port:  8080,
			Debug: false,
		},
		S3: S3{
			RegionName: "us-east-1",
		},
		LLM: LLM{
			MaxTokens:   100_000,
			Temperature: 0.3,
		},
		Consolidation: Consolidation{
			Timeout:  600 * time.Second,
			MaxNotes: 500,
		},
		GC: GC{
			Schedule:   "",
			MaxAgeDays: 7,
		},
	}
}
