package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to keys for environment overrides, e.g.
// LLAMAD_MODEL_PATH for model-path.
const EnvPrefix = "llamad"

// Keys are the flag names and viper keys for every Config field.
const (
	KeyAddr                = "addr"
	KeyModelPath           = "model-path"
	KeyContextSize         = "context-size"
	KeyGPULayers           = "gpu-layers"
	KeyThreads             = "threads"
	KeyEngine              = "engine"
	KeyLlamaServerURL      = "llama-server-url"
	KeyLlamaServerAPIKey   = "llama-server-api-key"
	KeyLlamaServerTimeout  = "llama-server-timeout-seconds"
	KeyMaxTokens           = "max-tokens"
	KeyStop                = "stop"
	KeySingleShot          = "single-shot"
	KeyQueueDepth          = "queue-depth"
	KeyRejectWhenBusy      = "reject-when-busy"
	KeyMaxWaitSeconds      = "max-wait-seconds"
	KeyInferTimeoutSeconds = "infer-timeout-seconds"
	KeyMaxBodyBytes        = "max-body-bytes"
	KeyLogLevel            = "log-level"
	KeyLogFormat           = "log-format"
	KeyCORSEnabled         = "cors-enabled"
	KeyCORSAllowedOrigins  = "cors-allowed-origins"
	KeyCORSAllowedMethods  = "cors-allowed-methods"
	KeyCORSAllowedHeaders  = "cors-allowed-headers"
	KeySMSRatePerSecond    = "sms-rate-per-second"
	KeySMSBurst            = "sms-burst"
	KeySMSDedupeTTLSeconds = "sms-dedupe-ttl-seconds"
)

// NewViper returns a viper instance that reads LLAMAD_* environment
// variables. Bind command flags to it with BindPFlags.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay applies every key explicitly set in v (changed flag, environment)
// on top of cfg. Keys left unset keep cfg's value.
func Overlay(cfg Config, v *viper.Viper) Config {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	list := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = splitList(v.GetStringSlice(key))
		}
	}

	str(KeyAddr, &cfg.Addr)
	str(KeyModelPath, &cfg.ModelPath)
	num(KeyContextSize, &cfg.ContextSize)
	num(KeyGPULayers, &cfg.GPULayers)
	num(KeyThreads, &cfg.Threads)
	str(KeyEngine, &cfg.Engine)
	str(KeyLlamaServerURL, &cfg.LlamaServerURL)
	str(KeyLlamaServerAPIKey, &cfg.LlamaServerAPIKey)
	num(KeyLlamaServerTimeout, &cfg.LlamaServerTimeoutSeconds)
	num(KeyMaxTokens, &cfg.MaxTokens)
	if v.IsSet(KeyStop) {
		// A single env value is one sequence; it may contain spaces or commas.
		if s, ok := v.Get(KeyStop).(string); ok {
			cfg.Stop = []string{s}
		} else {
			cfg.Stop = v.GetStringSlice(KeyStop)
		}
	}
	flag(KeySingleShot, &cfg.SingleShot)
	num(KeyQueueDepth, &cfg.QueueDepth)
	flag(KeyRejectWhenBusy, &cfg.RejectWhenBusy)
	num(KeyMaxWaitSeconds, &cfg.MaxWaitSeconds)
	num(KeyInferTimeoutSeconds, &cfg.InferTimeoutSeconds)
	if v.IsSet(KeyMaxBodyBytes) {
		cfg.MaxBodyBytes = v.GetInt64(KeyMaxBodyBytes)
	}
	str(KeyLogLevel, &cfg.LogLevel)
	str(KeyLogFormat, &cfg.LogFormat)
	flag(KeyCORSEnabled, &cfg.CORSEnabled)
	list(KeyCORSAllowedOrigins, &cfg.CORSAllowedOrigins)
	list(KeyCORSAllowedMethods, &cfg.CORSAllowedMethods)
	list(KeyCORSAllowedHeaders, &cfg.CORSAllowedHeaders)
	if v.IsSet(KeySMSRatePerSecond) {
		cfg.SMSRatePerSecond = ptr(v.GetFloat64(KeySMSRatePerSecond))
	}
	num(KeySMSBurst, &cfg.SMSBurst)
	if v.IsSet(KeySMSDedupeTTLSeconds) {
		cfg.SMSDedupeTTLSeconds = ptr(v.GetInt(KeySMSDedupeTTLSeconds))
	}
	return cfg
}

// splitList accepts both repeated values and comma-separated strings, as
// environment variables arrive as a single string.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
