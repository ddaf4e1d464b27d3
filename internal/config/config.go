package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Feed struct {
		URL          string        `yaml:"url"`
		UserAgent    string        `yaml:"user_agent"`
		MaxPages     int           `yaml:"max_pages"`
		PageTimeout  time.Duration `yaml:"page_timeout"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		SettleDelay  time.Duration `yaml:"settle_delay"`
		Failures     int           `yaml:"failures"`
		RetryDelay   time.Duration `yaml:"retry_delay"`
	} `yaml:"feed"`
	Snapshot struct {
		Source  string `yaml:"source"` // "huggingface" or "csv"
		BaseURL string `yaml:"base_url"`
		Dataset string `yaml:"dataset"`
		CSVURL  string `yaml:"csv_url"`
	} `yaml:"snapshot"`
	Storage struct {
		RialPath  string `yaml:"rial_path"`
		TomanPath string `yaml:"toman_path"`
	} `yaml:"storage"`
	Conversion struct {
		Rate   int64 `yaml:"rate"`
		Places int32 `yaml:"places"`
	} `yaml:"conversion"`
	Incremental struct {
		Records int `yaml:"records"`
	} `yaml:"incremental"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Snapshot sources.
const (
	SnapshotHuggingFace = "huggingface"
	SnapshotCSV         = "csv"
)

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("RIAL_CSV_PATH"); v != "" {
		cfg.Storage.RialPath = v
	}
	if v := os.Getenv("TOMAN_CSV_PATH"); v != "" {
		cfg.Storage.TomanPath = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("CONVERSION_RATE"); v != "" {
		if rate, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Conversion.Rate = rate
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "https://www.tgju.org/profile/price_dollar_rl/history"
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.Feed.MaxPages == 0 {
		cfg.Feed.MaxPages = 200
	}
	if cfg.Feed.PageTimeout == 0 {
		cfg.Feed.PageTimeout = 10 * time.Second
	}
	if cfg.Feed.InitialDelay == 0 {
		cfg.Feed.InitialDelay = 3 * time.Second
	}
	if cfg.Feed.SettleDelay == 0 {
		cfg.Feed.SettleDelay = 5 * time.Second
	}
	if cfg.Feed.Failures == 0 {
		cfg.Feed.Failures = 3
	}
	if cfg.Feed.RetryDelay == 0 {
		cfg.Feed.RetryDelay = 5 * time.Second
	}
	if cfg.Snapshot.Source == "" {
		cfg.Snapshot.Source = SnapshotHuggingFace
	}
	if cfg.Snapshot.BaseURL == "" {
		cfg.Snapshot.BaseURL = "https://datasets-server.huggingface.co"
	}
	if cfg.Snapshot.Dataset == "" {
		cfg.Snapshot.Dataset = "mohammadtaghizadeh/Dollar_Rial_Price_Dataset"
	}
	if cfg.Storage.RialPath == "" {
		cfg.Storage.RialPath = "data/Dollar_Rial_Price_Dataset.csv"
	}
	if cfg.Storage.TomanPath == "" {
		cfg.Storage.TomanPath = "data/Dollar_Toman_Price_Dataset.csv"
	}
	if cfg.Conversion.Rate == 0 {
		cfg.Conversion.Rate = 10
	}
	if cfg.Incremental.Records == 0 {
		cfg.Incremental.Records = 3
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 11 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Storage.RialPath == c.Storage.TomanPath {
		return fmt.Errorf("storage.rial_path and storage.toman_path must differ")
	}
	if c.Conversion.Rate <= 0 {
		return fmt.Errorf("conversion.rate must be positive")
	}
	if c.Conversion.Places < 0 {
		return fmt.Errorf("conversion.places must not be negative")
	}
	if c.Feed.MaxPages < 1 {
		return fmt.Errorf("feed.max_pages must be at least 1")
	}
	if c.Feed.Failures < 1 {
		return fmt.Errorf("feed.failures must be at least 1")
	}
	if c.Incremental.Records < 1 {
		return fmt.Errorf("incremental.records must be at least 1")
	}
	switch c.Snapshot.Source {
	case SnapshotHuggingFace:
	case SnapshotCSV:
		if c.Snapshot.CSVURL == "" {
			return fmt.Errorf("snapshot.csv_url is required for the csv source")
		}
	default:
		return fmt.Errorf("snapshot.source %q: want %s or %s", c.Snapshot.Source, SnapshotHuggingFace, SnapshotCSV)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether run summaries should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
