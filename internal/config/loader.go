package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	GPULayers   int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`

	// Engine selects the inference backend: "llama" (in-process) or
	// "server" (a running llama-server at LlamaServerURL).
	Engine                    string `json:"engine" yaml:"engine" toml:"engine"`
	LlamaServerURL            string `json:"llama_server_url" yaml:"llama_server_url" toml:"llama_server_url"`
	LlamaServerAPIKey         string `json:"llama_server_api_key" yaml:"llama_server_api_key" toml:"llama_server_api_key"`
	LlamaServerTimeoutSeconds int    `json:"llama_server_timeout_seconds" yaml:"llama_server_timeout_seconds" toml:"llama_server_timeout_seconds"`

	MaxTokens  int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Stop       []string `json:"stop" yaml:"stop" toml:"stop"`
	SingleShot bool     `json:"single_shot" yaml:"single_shot" toml:"single_shot"`

	QueueDepth          int   `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	RejectWhenBusy      bool  `json:"reject_when_busy" yaml:"reject_when_busy" toml:"reject_when_busy"`
	MaxWaitSeconds      int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	InferTimeoutSeconds int   `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	// Nil means default; an explicit 0 turns the limit or the dedupe off.
	SMSRatePerSecond    *float64 `json:"sms_rate_per_second" yaml:"sms_rate_per_second" toml:"sms_rate_per_second"`
	SMSBurst            int      `json:"sms_burst" yaml:"sms_burst" toml:"sms_burst"`
	SMSDedupeTTLSeconds *int     `json:"sms_dedupe_ttl_seconds" yaml:"sms_dedupe_ttl_seconds" toml:"sms_dedupe_ttl_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse yaml config")
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse json config")
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse toml config")
		}
	default:
		return cfg, errors.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
