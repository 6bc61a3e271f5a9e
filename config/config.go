package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

type Configs struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`

	Database  DatabaseConfigs  `toml:"database"`
	Cache     CacheConfigs     `toml:"cache"`
	Broadcast BroadcastConfigs `toml:"broadcast"`
	Storage   S3Configs        `toml:"storage"`
	File      FileConfigs      `toml:"file"`
	Telegram  TelegramConfigs  `toml:"telegram"`

	// RegistrationStateTimeout is how long a saved in-progress registration
	// payload survives without updates before the sweeper removes it.
	RegistrationStateTimeout time.Duration `toml:"registration_state_timeout"`
}

type DatabaseConfigs struct {
	Path string `toml:"path"`

	PoolSize       int           `toml:"pool_size"`
	AcquireTimeout time.Duration `toml:"acquire_timeout"`

	BusyTimeout     time.Duration `toml:"busy_timeout"`
	BusyMaxRetries  int           `toml:"busy_max_retries"`
	BusyBaseBackoff time.Duration `toml:"busy_base_backoff"`
	BusyMaxBackoff  time.Duration `toml:"busy_max_backoff"`
}

type CacheConfigs struct {
	Hot  TierConfigs `toml:"hot"`
	Warm TierConfigs `toml:"warm"`
	Cold TierConfigs `toml:"cold"`
}

type TierConfigs struct {
	TTL        time.Duration `toml:"ttl"`
	MaxEntries int           `toml:"max_entries"`
}

type BroadcastConfigs struct {
	RatePerSecond float64       `toml:"rate_per_second"`
	RateBurst     int           `toml:"rate_burst"`
	BatchSize     int           `toml:"batch_size"`
	MaxAttempts   int           `toml:"max_attempts"`
	RetryBackoff  time.Duration `toml:"retry_backoff"`
	Cooldown      time.Duration `toml:"cooldown"`
	PollInterval  time.Duration `toml:"poll_interval"`
}

type S3Configs struct {
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	PublicEndpoint string `toml:"public_endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Bucket         string `toml:"bucket"`
	SSLDisabled    bool   `toml:"ssl_disabled"`
}

type FileConfigs struct {
	MaxSize int64 `toml:"max_size"`
}

type TelegramConfigs struct {
	BotToken string `toml:"bot_token"`
}

// Default returns the configuration used when no overlay file is given.
func Default() Configs {
	return Configs{
		Env:      "local",
		LogLevel: "INFO",
		Database: DatabaseConfigs{
			Path:            "raffle.db",
			PoolSize:        20,
			AcquireTimeout:  5 * time.Second,
			BusyTimeout:     5 * time.Second,
			BusyMaxRetries:  5,
			BusyBaseBackoff: 10 * time.Millisecond,
			BusyMaxBackoff:  500 * time.Millisecond,
		},
		Cache: CacheConfigs{
			Hot:  TierConfigs{TTL: time.Minute, MaxEntries: 1000},
			Warm: TierConfigs{TTL: 5 * time.Minute, MaxEntries: 500},
			Cold: TierConfigs{TTL: 30 * time.Minute, MaxEntries: 200},
		},
		Broadcast: BroadcastConfigs{
			RatePerSecond: 30,
			RateBurst:     30,
			BatchSize:     30,
			MaxAttempts:   3,
			RetryBackoff:  time.Second,
			Cooldown:      5 * time.Second,
			PollInterval:  2 * time.Second,
		},
		File: FileConfigs{
			MaxSize: 2 << 20,
		},
		RegistrationStateTimeout: 30 * time.Minute,
	}
}

// Load builds the configuration from defaults plus an optional TOML overlay
// file. An empty path means defaults only.
func Load(path string) (Configs, error) {
	configs := Default()
	if path == "" {
		return configs, nil
	}

	if _, err := toml.DecodeFile(path, &configs); err != nil {
		return Configs{}, err
	}

	return configs, nil
}
