// Package config provides YAML-based configuration loading for the tracker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level tracker configuration, loaded from tracker.yaml.
type Config struct {
	Timezone string         `yaml:"timezone"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Notify   NotifyConfig   `yaml:"notify"`
	GitHub   GitHubConfig   `yaml:"github"`
	Digest   DigestConfig   `yaml:"digest"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// NotifyConfig holds the optional chat notification backends.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig maps tracker users to Slack channels or DM ids.
type SlackConfig struct {
	BotToken       string            `yaml:"bot_token"`
	DefaultChannel string            `yaml:"default_channel"`
	UserChannels   map[string]string `yaml:"user_channels"`
}

// DiscordConfig maps tracker users to Discord channel ids.
type DiscordConfig struct {
	BotToken     string            `yaml:"bot_token"`
	ChannelID    string            `yaml:"channel_id"`
	UserChannels map[string]string `yaml:"user_channels"`
}

// GitHubConfig configures link enrichment.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"` // GitHub Enterprise API root; empty for github.com
}

// DigestConfig schedules the daily activity digest.
type DigestConfig struct {
	Schedule  string `yaml:"schedule"` // 5-field cron expression
	Recipient string `yaml:"recipient"`
}

// Enabled reports whether the slack backend is configured.
func (s SlackConfig) Enabled() bool { return s.BotToken != "" }

// Enabled reports whether the discord backend is configured.
func (d DiscordConfig) Enabled() bool { return d.BotToken != "" }

// Enabled reports whether the digest should be scheduled.
func (d DigestConfig) Enabled() bool { return d.Recipient != "" }

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config, if present, supplies values for ${VAR}
// references; variables already set in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	env, err := readDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	return parse(expand(data, env))
}

// Parse unmarshals YAML bytes into a validated Config. ${VAR} references are
// expanded from the process environment.
func Parse(data []byte) (*Config, error) {
	return parse(expand(data, nil))
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return env, nil
}

func expand(data []byte, dotenv map[string]string) []byte {
	return []byte(os.Expand(string(data), func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}))
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "tracker.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "tracker"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 9 * * 1-5"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is not a known location", c.Timezone))
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}
	if c.Notify.Slack.Enabled() && c.Notify.Slack.DefaultChannel == "" && len(c.Notify.Slack.UserChannels) == 0 {
		errs = append(errs, "notify.slack needs default_channel or user_channels")
	}
	if c.Notify.Discord.Enabled() && c.Notify.Discord.ChannelID == "" && len(c.Notify.Discord.UserChannels) == 0 {
		errs = append(errs, "notify.discord needs channel_id or user_channels")
	}
	if _, err := cron.ParseStandard(c.Digest.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("digest.schedule %q: %v", c.Digest.Schedule, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured timezone. validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}
