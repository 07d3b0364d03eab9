package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything disbahn needs to run.
type Config struct {
	Feed     Feed
	Database Database
	Webhook  Webhook
	Daemon   Daemon
	Log      Log
}

// Feed configures the announcement source.
type Feed struct {
	URL string
}

// Database locates the SQLite file tracking delivered posts.
type Database struct {
	Path string
}

// Webhook lists the Discord webhook URLs announcements are delivered to.
type Webhook struct {
	URLs []string
}

// Daemon configures scheduled refreshes.
type Daemon struct {
	Cron             string
	RefreshAtStartup bool
}

// Log mirrors logger.Config.
type Log struct {
	Level      string
	FormatJSON bool
	Rotation   Rotation
}

// Rotation configures the rotating log file.
type Rotation struct {
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// LoadConfig loads configuration from a .env file, config.yaml in the
// working directory and the environment. Environment variables override
// file settings; the key feed.url becomes FEED_URL.
func LoadConfig() (*Config, error) {
	// Load environment variables from .env if present.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config.yaml; environment variables and defaults apply.
	}

	cfg := &Config{
		Feed:     Feed{URL: viper.GetString("feed.url")},
		Database: Database{Path: viper.GetString("database.path")},
		Webhook:  Webhook{URLs: webhookURLs()},
		Daemon: Daemon{
			Cron:             viper.GetString("daemon.cron"),
			RefreshAtStartup: viper.GetBool("daemon.refresh_at_startup"),
		},
		Log: Log{
			Level:      viper.GetString("log.level"),
			FormatJSON: viper.GetBool("log.format_json"),
			Rotation: Rotation{
				File:       viper.GetString("log.rotation.file"),
				MaxSize:    viper.GetInt("log.rotation.max_size"),
				MaxBackups: viper.GetInt("log.rotation.max_backups"),
				MaxAge:     viper.GetInt("log.rotation.max_age"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("daemon.cron", "*/5 * * * *")
	viper.SetDefault("daemon.refresh_at_startup", true)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.rotation.max_size", 10)
	viper.SetDefault("log.rotation.max_backups", 3)
	viper.SetDefault("log.rotation.max_age", 7)
}

// webhookURLs normalizes the webhook URL list. The YAML form is a list; the
// WEBHOOK_URLS environment variable holds one string with commas or spaces
// between URLs.
func webhookURLs() []string {
	raw := viper.GetStringSlice("webhook.urls")

	var urls []string
	for _, entry := range raw {
		parts := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		urls = append(urls, parts...)
	}
	return urls
}

func (c *Config) validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is not set")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is not set")
	}
	if len(c.Webhook.URLs) == 0 {
		return fmt.Errorf("webhook.urls is not set")
	}
	return nil
}
