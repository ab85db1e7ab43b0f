package config

import "time"

// AppConfig is the process-wide configuration, populated by Load.
var AppConfig *Config

// Config is the top-level application config.
type Config struct {
	Environment string
	HTTPPort    string
	Database    DatabaseConfig
	Realtime    RealtimeConfig
	Notify      NotifyConfig
}

// RealtimeConfig tunes the cache synchronizer and reconciler.
type RealtimeConfig struct {
	CacheTTL           time.Duration // backstop expiry independent of change events
	RefetchConcurrency int           // cap on concurrent pair operations and refetches
	WriteTimeout       time.Duration // bound on a single ledger write
	ExpirySweep        time.Duration // period of the membership expiry sweep
}

// NotifyConfig configures the Telegram admin notifier.
type NotifyConfig struct {
	BotToken string
	Debug    bool
	AdminIDs []int64 // chat IDs that receive admin alerts
}
