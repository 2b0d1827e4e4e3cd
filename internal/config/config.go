// Package config loads teachback's configuration through viper: built-in
// defaults, then an optional teachback.yaml, then TEACHBACK_* environment
// variables, then any bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/llm"
	"github.com/rodrick-mpofu/teachback-ai/internal/observability"
	"github.com/rodrick-mpofu/teachback-ai/internal/temporalx"
)

const (
	EnvPrefix  = "TEACHBACK"
	configName = "teachback"
)

type Config struct {
	// DBPath is the SQLite file. Empty means store.DefaultDBPath.
	DBPath string

	// Owner is the default learner id for CLI commands.
	Owner string

	Log      LogConfig
	HTTP     HTTPConfig
	LLM      llm.Config
	Engine   engine.Config
	Temporal temporalx.Config
	Redis    RedisConfig
	Tracing  observability.TracingConfig

	// File is the config file that was read, if any.
	File string
}

type LogConfig struct {
	Mode  string
	Level string
}

type HTTPConfig struct {
	Addr string
}

// RedisConfig enables the redis event sink when Addr is set.
type RedisConfig struct {
	Addr    string
	Channel string
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"db":        "db.path",
	"log-mode":  "log.mode",
	"log-level": "log.level",
	"owner":     "owner",
	"addr":      "http.addr",
	"provider":  "llm.provider",
}

func setDefaults(v *viper.Viper) {
	ld := llm.DefaultConfig()
	ed := engine.DefaultConfig()
	td := temporalx.DefaultConfig()

	v.SetDefault("db.path", "")
	v.SetDefault("owner", "local")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", ld.Anthropic.Model)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", ld.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", ld.Gemini.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", ld.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", ld.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", ld.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", ld.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", ld.Retry.Multiplier)
	v.SetDefault("llm.timeout", ld.Timeout)

	v.SetDefault("engine.turn_timeout", ed.TurnTimeout)
	v.SetDefault("engine.remote_call_timeout", ed.RemoteCallTimeout)
	v.SetDefault("engine.enrich_timeout", ed.EnrichTimeout)
	v.SetDefault("engine.analytics_cadence", ed.AnalyticsCadence)
	v.SetDefault("engine.persist_queue_size", ed.PersistQueueSize)

	v.SetDefault("temporal.address", "")
	v.SetDefault("temporal.namespace", td.Namespace)
	v.SetDefault("temporal.task_queue", td.TaskQueue)
	v.SetDefault("temporal.dial_timeout", td.DialTimeout)
	v.SetDefault("temporal.dial_max_wait", td.DialMaxWait)
	v.SetDefault("temporal.activity_timeout", td.ActivityTimeout)
	v.SetDefault("temporal.worker_concurrency", td.WorkerConcurrency)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "teachback.events")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "teachback")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads configuration. file, when set, must exist; otherwise
// teachback.yaml is looked up in ., $HOME/.config/teachback and
// /etc/teachback and may be absent. cmd may be nil.
func Load(file string, cmd *cobra.Command) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/teachback")
		v.AddConfigPath("/etc/teachback")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := fromViper(v)
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		DBPath: v.GetString("db.path"),
		Owner:  v.GetString("owner"),
		Log: LogConfig{
			Mode:  v.GetString("log.mode"),
			Level: v.GetString("log.level"),
		},
		HTTP: HTTPConfig{Addr: v.GetString("http.addr")},
		Engine: engine.Config{
			TurnTimeout:       v.GetDuration("engine.turn_timeout"),
			RemoteCallTimeout: v.GetDuration("engine.remote_call_timeout"),
			EnrichTimeout:     v.GetDuration("engine.enrich_timeout"),
			AnalyticsCadence:  v.GetInt("engine.analytics_cadence"),
			PersistQueueSize:  v.GetInt("engine.persist_queue_size"),
		},
		Temporal: temporalx.Config{
			Address:           v.GetString("temporal.address"),
			Namespace:         v.GetString("temporal.namespace"),
			TaskQueue:         v.GetString("temporal.task_queue"),
			DialTimeout:       v.GetDuration("temporal.dial_timeout"),
			DialMaxWait:       v.GetDuration("temporal.dial_max_wait"),
			ActivityTimeout:   v.GetDuration("temporal.activity_timeout"),
			WorkerConcurrency: v.GetInt("temporal.worker_concurrency"),
		},
		Redis: RedisConfig{
			Addr:    v.GetString("redis.addr"),
			Channel: v.GetString("redis.channel"),
		},
		Tracing: observability.TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Exporter:    v.GetString("tracing.exporter"),
			Endpoint:    v.GetString("tracing.endpoint"),
			Insecure:    v.GetBool("tracing.insecure"),
			ServiceName: v.GetString("tracing.service_name"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
	}
	cfg.LLM = llmFromViper(v)
	return cfg
}

// llmFromViper fills llm.Config. Without an explicit provider the standard
// vendor key variables are probed and mock is the last resort.
func llmFromViper(v *viper.Viper) llm.Config {
	c := llm.Config{
		Provider: strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
		Anthropic: llm.AnthropicConfig{
			APIKey: v.GetString("llm.anthropic.api_key"),
			Model:  v.GetString("llm.anthropic.model"),
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  v.GetString("llm.openai.api_key"),
			Model:   v.GetString("llm.openai.model"),
			BaseURL: v.GetString("llm.openai.base_url"),
		},
		Gemini: llm.GeminiConfig{
			APIKey: v.GetString("llm.gemini.api_key"),
			Model:  v.GetString("llm.gemini.model"),
		},
		OpenRouter: llm.OpenRouterConfig{
			APIKey:  v.GetString("llm.openrouter.api_key"),
			Model:   v.GetString("llm.openrouter.model"),
			BaseURL: v.GetString("llm.openrouter.base_url"),
		},
		Retry: llm.RetryConfig{
			MaxAttempts: v.GetInt("llm.retry.max_attempts"),
			InitialWait: v.GetDuration("llm.retry.initial_wait"),
			MaxWait:     v.GetDuration("llm.retry.max_wait"),
			Multiplier:  v.GetFloat64("llm.retry.multiplier"),
		},
		Timeout: v.GetDuration("llm.timeout"),
	}
	if c.Provider != "" {
		return c
	}

	for _, p := range []string{llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderOpenRouter} {
		c.Provider = p
		if c.HasKey() {
			return c
		}
	}
	if found, ok := llm.DiscoverConfig(c); ok {
		return found
	}
	c.Provider = llm.ProviderMock
	return c
}

// Summary returns a redacted view for logging.
func (c Config) Summary() []any {
	return []any{
		"config_file", c.File,
		"llm_provider", c.LLM.Provider,
		"temporal", c.Temporal.Enabled(),
		"redis", c.Redis.Addr != "",
		"tracing", c.Tracing.Enabled,
		"turn_timeout", c.Engine.TurnTimeout.String(),
		"enrich_timeout", c.Engine.EnrichTimeout.String(),
	}
}
