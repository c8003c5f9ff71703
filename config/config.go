// Package config loads bridge configuration from defaults, an
// optional TOML file, and environment variables, in that ascending
// order of precedence.
package config

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds bridge configuration values. SessionTimeout and LogLevel
// keep the values read at Load; their live values, which Watch updates
// once ConfigFile is set, are read through HotSessionTimeout and
// HotLogLevel (backed by hotSessionTimeoutMs/hotLogLevel).
type Config struct {
	Addr string

	SessionTimeout time.Duration
	FlushTimeout   time.Duration
	MaxBodyBytes   int64

	LangfuseHost      string
	LangfusePublicKey string
	LangfuseSecretKey string

	APIKey string

	RedisURL string

	OTelExporterEndpoint string
	OTelEnabled          bool

	ConfigFile string
	LogLevel   string
	Env        string

	hotSessionTimeoutMs *int64
	hotLogLevel         *int32
}

// fileOverlay is the shape of an optional TOML config file, layered
// over defaults but under environment variables.
type fileOverlay struct {
	OTLPReceiverPort *int    `toml:"otlp_receiver_port"`
	LogLevel         *string `toml:"log_level"`
	SessionTimeoutMs *int64  `toml:"session_timeout_ms"`
	MaxRequestSize   *int64  `toml:"max_request_size"`
	LangfuseHost     *string `toml:"langfuse_host"`
	APIKey           *string `toml:"api_key"`
	RedisURL         *string `toml:"redis_url"`
}

// Load reads configuration from an optional .env file, an optional
// TOML file named by BRIDGE_CONFIG_FILE, and environment variables.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnvInt("OTLP_RECEIVER_PORT", 4318)
	logLevel := getEnv("LOG_LEVEL", "info")
	sessionTimeoutMs := getEnvInt64("SESSION_TIMEOUT", 3600000)
	maxBodyBytes := getEnvInt64("MAX_REQUEST_SIZE", 10485760)
	configFile := getEnv("BRIDGE_CONFIG_FILE", "")
	langfuseHost := getEnv("LANGFUSE_HOST", "")
	apiKey := getEnv("API_KEY", "")
	redisURL := getEnv("REDIS_URL", "")

	if configFile != "" {
		var overlay fileOverlay
		if _, err := toml.DecodeFile(configFile, &overlay); err == nil {
			if overlay.OTLPReceiverPort != nil && os.Getenv("OTLP_RECEIVER_PORT") == "" {
				port = *overlay.OTLPReceiverPort
			}
			if overlay.LogLevel != nil && os.Getenv("LOG_LEVEL") == "" {
				logLevel = *overlay.LogLevel
			}
			if overlay.SessionTimeoutMs != nil && os.Getenv("SESSION_TIMEOUT") == "" {
				sessionTimeoutMs = *overlay.SessionTimeoutMs
			}
			if overlay.MaxRequestSize != nil && os.Getenv("MAX_REQUEST_SIZE") == "" {
				maxBodyBytes = *overlay.MaxRequestSize
			}
			if overlay.LangfuseHost != nil && os.Getenv("LANGFUSE_HOST") == "" {
				langfuseHost = *overlay.LangfuseHost
			}
			if overlay.APIKey != nil && os.Getenv("API_KEY") == "" {
				apiKey = *overlay.APIKey
			}
			if overlay.RedisURL != nil && os.Getenv("REDIS_URL") == "" {
				redisURL = *overlay.RedisURL
			}
		}
	}

	otelEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := &Config{
		Addr:                 ":" + strconv.Itoa(port),
		SessionTimeout:       time.Duration(sessionTimeoutMs) * time.Millisecond,
		FlushTimeout:         5 * time.Second,
		MaxBodyBytes:         maxBodyBytes,
		LangfuseHost:         langfuseHost,
		LangfusePublicKey:    getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:    getEnv("LANGFUSE_SECRET_KEY", ""),
		APIKey:               apiKey,
		RedisURL:             redisURL,
		OTelExporterEndpoint: otelEndpoint,
		OTelEnabled:          otelEndpoint != "",
		ConfigFile:           configFile,
		LogLevel:             logLevel,
		Env:                  getEnv("ENV", "development"),
		hotSessionTimeoutMs:  new(int64),
		hotLogLevel:          new(int32),
	}
	atomic.StoreInt64(cfg.hotSessionTimeoutMs, sessionTimeoutMs)
	atomic.StoreInt32(cfg.hotLogLevel, int32(parseLevel(logLevel)))
	return cfg
}

// HotSessionTimeout returns the currently effective session timeout,
// reflecting the last successful reload if Watch is running.
func (c *Config) HotSessionTimeout() time.Duration {
	return time.Duration(atomic.LoadInt64(c.hotSessionTimeoutMs)) * time.Millisecond
}

// HotLogLevel returns the currently effective log level.
func (c *Config) HotLogLevel() zerolog.Level {
	return zerolog.Level(atomic.LoadInt32(c.hotLogLevel))
}

// Watch reloads SESSION_TIMEOUT and LOG_LEVEL from ConfigFile whenever
// it changes on disk. A no-op if ConfigFile is unset. Returns an error
// only if the filesystem watcher itself cannot be created; decode
// failures on reload are logged and ignored, leaving the prior values
// in effect.
func (c *Config) Watch(logger zerolog.Logger) error {
	if c.ConfigFile == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.ConfigFile); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c.reload(logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}

func (c *Config) reload(logger zerolog.Logger) {
	var overlay fileOverlay
	if _, err := toml.DecodeFile(c.ConfigFile, &overlay); err != nil {
		logger.Warn().Err(err).Str("file", c.ConfigFile).Msg("config reload failed, keeping prior values")
		return
	}
	if overlay.SessionTimeoutMs != nil {
		atomic.StoreInt64(c.hotSessionTimeoutMs, *overlay.SessionTimeoutMs)
		logger.Info().Int64("session_timeout_ms", *overlay.SessionTimeoutMs).Msg("session timeout hot-reloaded")
	}
	if overlay.LogLevel != nil {
		atomic.StoreInt32(c.hotLogLevel, int32(parseLevel(*overlay.LogLevel)))
		logger.Info().Str("log_level", *overlay.LogLevel).Msg("log level hot-reloaded")
	}
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
