package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Defaults for unset fields.
const (
	DefaultAddr          = ":8080"
	DefaultContextSize   = 2048
	DefaultMaxTokens     = 256
	DefaultQueueDepth    = 8
	DefaultMaxWait       = 30
	DefaultMaxBodyBytes  = 1 << 20
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	EngineLlama          = "llama"
	EngineServer         = "server"
	DefaultSMSRate       = 5
	DefaultSMSBurst      = 10
	DefaultSMSDedupeTTL  = 600
	MaxContextSize       = 1 << 17
	MaxGPULayers         = 1024
	defaultCORSMethods   = "GET,POST,OPTIONS"
	defaultCORSHeaders   = "Content-Type,X-Log-Level"
	defaultCORSOriginAll = "*"
)

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ContextSize == 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.MaxWaitSeconds == 0 {
		c.MaxWaitSeconds = DefaultMaxWait
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Engine == "" {
		c.Engine = EngineLlama
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.CORSEnabled {
		if len(c.CORSAllowedOrigins) == 0 {
			c.CORSAllowedOrigins = []string{defaultCORSOriginAll}
		}
		if len(c.CORSAllowedMethods) == 0 {
			c.CORSAllowedMethods = strings.Split(defaultCORSMethods, ",")
		}
		if len(c.CORSAllowedHeaders) == 0 {
			c.CORSAllowedHeaders = strings.Split(defaultCORSHeaders, ",")
		}
	}
	if c.SMSRatePerSecond == nil {
		c.SMSRatePerSecond = ptr(float64(DefaultSMSRate))
	}
	if c.SMSBurst == 0 {
		c.SMSBurst = DefaultSMSBurst
	}
	if c.SMSDedupeTTLSeconds == nil {
		c.SMSDedupeTTLSeconds = ptr(DefaultSMSDedupeTTL)
	}
	return c
}

func ptr[T any](v T) *T { return &v }

// SMSRate is the inbound SMS rate per second; 0 means unlimited.
func (c Config) SMSRate() float64 {
	if c.SMSRatePerSecond == nil {
		return DefaultSMSRate
	}
	return *c.SMSRatePerSecond
}

// SMSDedupeTTL is how long a messageId reply is remembered; 0 disables dedupe.
func (c Config) SMSDedupeTTL() time.Duration {
	sec := DefaultSMSDedupeTTL
	if c.SMSDedupeTTLSeconds != nil {
		sec = *c.SMSDedupeTTLSeconds
	}
	return time.Duration(sec) * time.Second
}

// Validate rejects configurations the service cannot start with. Call it on
// the result of WithDefaults.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ModelPath) == "":
		return errors.New("model_path is required")
	case c.ContextSize <= 0 || c.ContextSize > MaxContextSize:
		return errors.Errorf("context_size %d not in [1,%d]", c.ContextSize, MaxContextSize)
	case c.GPULayers < 0 || c.GPULayers > MaxGPULayers:
		return errors.Errorf("gpu_layers %d not in [0,%d]", c.GPULayers, MaxGPULayers)
	case c.Threads < 0:
		return errors.Errorf("threads %d must not be negative", c.Threads)
	case c.MaxTokens <= 0 || c.MaxTokens >= c.ContextSize:
		return errors.Errorf("max_tokens %d must be positive and below context_size %d", c.MaxTokens, c.ContextSize)
	case c.QueueDepth < 0:
		return errors.Errorf("queue_depth %d must not be negative", c.QueueDepth)
	case c.MaxWaitSeconds < 0 || c.InferTimeoutSeconds < 0:
		return errors.New("timeouts must not be negative")
	case c.MaxBodyBytes < 0:
		return errors.Errorf("max_body_bytes %d must not be negative", c.MaxBodyBytes)
	case c.Engine != EngineLlama && c.Engine != EngineServer:
		return errors.Errorf("engine %q must be %s or %s", c.Engine, EngineLlama, EngineServer)
	case c.Engine == EngineServer && strings.TrimSpace(c.LlamaServerURL) == "":
		return errors.New("llama_server_url is required for the server engine")
	case c.LlamaServerTimeoutSeconds < 0:
		return errors.New("timeouts must not be negative")
	case c.LogFormat != "console" && c.LogFormat != "json":
		return errors.Errorf("log_format %q must be console or json", c.LogFormat)
	case c.SMSRate() < 0 || c.SMSBurst < 0 || c.SMSDedupeTTL() < 0:
		return errors.New("sms limits must not be negative")
	}
	for _, s := range c.Stop {
		if s == "" {
			return errors.New("stop sequences must not be empty")
		}
	}
	return nil
}
