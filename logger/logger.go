package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/config"
)

// New returns a configured zerolog.Logger: a human-readable console
// writer in development, structured JSON in production. The global
// level is set from cfg's parsed LOG_LEVEL, then kept in sync with
// cfg's hot-reloadable level via a background goroutine so a config
// file edit can change verbosity without a restart.
func New(cfg *config.Config) zerolog.Logger {
	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(cfg.HotLogLevel())
	go syncLevel(cfg)

	return log
}

// syncLevel polls the config's hot-reloadable level and applies any
// change to zerolog's global level. Runs for the process lifetime.
func syncLevel(cfg *config.Config) {
	last := cfg.HotLogLevel()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if lvl := cfg.HotLogLevel(); lvl != last {
			zerolog.SetGlobalLevel(lvl)
			last = lvl
		}
	}
}
