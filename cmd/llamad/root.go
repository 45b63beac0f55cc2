package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"llamad/internal/config"
)

const flagConfig = "config"

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	root := &cobra.Command{
		Use:           "llamad",
		Short:         "Local LLM inference session over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}
	addConfigFlags(root.PersistentFlags())
	root.AddCommand(newServeCmd(v), newCompleteCmd(v), newChatCmd(v))
	return root
}

// addConfigFlags registers one flag per config key. Defaults are left at the
// zero value so config.WithDefaults stays the single source of defaults.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "config file (.yaml, .json or .toml)")
	fs.String(config.KeyAddr, "", "HTTP listen address (default "+config.DefaultAddr+")")
	fs.String(config.KeyModelPath, "", "GGUF model file, or a directory holding exactly one")
	fs.Int(config.KeyContextSize, 0, "context window in tokens")
	fs.Int(config.KeyGPULayers, 0, "layers to offload to the GPU")
	fs.Int(config.KeyThreads, 0, "CPU threads (0 = runtime default)")
	fs.String(config.KeyEngine, "", "inference engine: llama (in-process) or server")
	fs.String(config.KeyLlamaServerURL, "", "llama-server base URL for the server engine")
	fs.String(config.KeyLlamaServerAPIKey, "", "bearer token for llama-server")
	fs.Int(config.KeyLlamaServerTimeout, 0, "llama-server request timeout in seconds (0 = none)")
	fs.Int(config.KeyMaxTokens, 0, "maximum tokens generated per completion")
	fs.StringSlice(config.KeyStop, nil, "stop sequence (repeatable)")
	fs.Bool(config.KeySingleShot, false, "do not feed prior turns to the model")
	fs.Int(config.KeyQueueDepth, 0, "callers allowed to wait for the model")
	fs.Bool(config.KeyRejectWhenBusy, false, "refuse calls while a generation runs instead of queueing")
	fs.Int(config.KeyMaxWaitSeconds, 0, "seconds a queued caller waits before 429")
	fs.Int(config.KeyInferTimeoutSeconds, 0, "per-request inference timeout (0 = none)")
	fs.Int64(config.KeyMaxBodyBytes, 0, "maximum request body size")
	fs.String(config.KeyLogLevel, "", "log level: debug, info, warn, error")
	fs.String(config.KeyLogFormat, "", "log format: console or json")
	fs.Bool(config.KeyCORSEnabled, false, "enable CORS")
	fs.StringSlice(config.KeyCORSAllowedOrigins, nil, "CORS allowed origins")
	fs.StringSlice(config.KeyCORSAllowedMethods, nil, "CORS allowed methods")
	fs.StringSlice(config.KeyCORSAllowedHeaders, nil, "CORS allowed headers")
	fs.Float64(config.KeySMSRatePerSecond, 0, "SMS receive rate limit per second")
	fs.Int(config.KeySMSBurst, 0, "SMS receive burst")
	fs.Int(config.KeySMSDedupeTTLSeconds, 0, "seconds an SMS messageId reply is remembered")
}

// loadConfig layers file, environment and flags, then applies defaults.
func loadConfig(v *viper.Viper) (config.Config, error) {
	var cfg config.Config
	if path := v.GetString(flagConfig); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg = config.Overlay(cfg, v).WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
