package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/gexbot-levels/internal/levels"
)

type Config struct {
	API         APIConfig          `mapstructure:"api"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	Levels      LevelsConfig       `mapstructure:"levels"`
	Update      UpdateConfig       `mapstructure:"update"`
	Output      OutputConfig       `mapstructure:"output"`
	Archive     ArchiveConfig      `mapstructure:"archive"`
	Redis       RedisConfig        `mapstructure:"redis"`
	Schedule    ScheduleConfig     `mapstructure:"schedule"`
	Server      ServerConfig       `mapstructure:"server"`
	Notify      NotifyConfig       `mapstructure:"notify"`
	Logging     LoggingConfig      `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
	Aggregation   string `mapstructure:"aggregation"`
}

type InstrumentConfig struct {
	Source string  `mapstructure:"source"`
	Target string  `mapstructure:"target"`
	Ratio  float64 `mapstructure:"ratio"`
	Name   string  `mapstructure:"name"`
}

type LevelsConfig struct {
	NoiseFloor  float64 `mapstructure:"noise_floor"`
	ChangeFloor float64 `mapstructure:"change_floor"`
	TopStrikes  int     `mapstructure:"top_strikes"`
}

type UpdateConfig struct {
	Workers int `mapstructure:"workers"`
}

type OutputConfig struct {
	Directory     string            `mapstructure:"directory"`
	Files         map[string]string `mapstructure:"files"` // target symbol -> file name
	TimestampFile string            `mapstructure:"timestamp_file"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTLSec    int    `mapstructure:"ttl_sec"`
}

type ScheduleConfig struct {
	IntervalSec  int    `mapstructure:"interval_sec"`
	Timezone     string `mapstructure:"timezone"`
	SessionStart string `mapstructure:"session_start"`
	SessionEnd   string `mapstructure:"session_end"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

type ServerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Addr              string `mapstructure:"addr"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"` // 0 disables; never applies to /levels/stream
}

// NotifyConfig configures ntfy alerts sent by watch. Priority is used for
// healthy runs; failure alerts raise it.
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"` // comma-separated emoji tags added to every alert
	Token    string `mapstructure:"token"`
}

var validPriorities = map[string]bool{
	"min": true, "low": true, "default": true, "high": true, "urgent": true,
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("api.base_url", "https://api.gexbot.com")
	v.SetDefault("api.timeout_sec", 15)
	v.SetDefault("api.rate_per_second", 2)
	v.SetDefault("api.aggregation", "full")
	v.SetDefault("instruments", defaultInstrumentsMaps())
	v.SetDefault("levels.noise_floor", 50)
	v.SetDefault("levels.change_floor", 10)
	v.SetDefault("levels.top_strikes", 15)
	v.SetDefault("update.workers", 2)
	v.SetDefault("output.directory", ".")
	v.SetDefault("output.timestamp_file", "last_update.txt")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.directory", "archive")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "gex:levels:")
	v.SetDefault("redis.ttl_sec", 0)
	v.SetDefault("schedule.interval_sec", 300)
	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.session_start", "09:30")
	v.SetDefault("schedule.session_end", "16:15")
	v.SetDefault("schedule.run_on_startup", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout_sec", 30)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "chart_with_upwards_trend")
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("api.api_key", "GEXBOT_API_KEY")
	_ = v.BindEnv("redis.password", "GEXBOT_REDIS_PASSWORD")
	_ = v.BindEnv("notify.enabled", "NTFY_ENABLED")
	_ = v.BindEnv("notify.server", "NTFY_SERVER")
	_ = v.BindEnv("notify.topic", "NTFY_TOPIC")
	_ = v.BindEnv("notify.priority", "NTFY_PRIORITY")
	_ = v.BindEnv("notify.tags", "NTFY_TAGS")
	_ = v.BindEnv("notify.token", "NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadDotenv reads ./.env if present. Variables already set win.
func loadDotenv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Validate checks everything the level pipeline depends on. The API key is
// checked separately because offline conversion does not need it.
func (c *Config) Validate() error {
	if err := ValidateInstruments(c.Instruments); err != nil {
		return err
	}
	if err := c.LevelParams().Validate(); err != nil {
		return err
	}
	if !ValidAggregations[c.API.Aggregation] {
		return fmt.Errorf("invalid aggregation %q (valid: %s)", c.API.Aggregation, validAggregationsList())
	}
	if c.Update.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if c.Schedule.IntervalSec < 1 {
		return fmt.Errorf("schedule.interval_sec must be >= 1")
	}
	if c.Output.TimestampFile == "" {
		return fmt.Errorf("output.timestamp_file is required")
	}
	if c.Server.RequestTimeoutSec < 0 {
		return fmt.Errorf("server.request_timeout_sec must be >= 0")
	}
	return c.Notify.Validate()
}

// Validate checks the ntfy settings when alerts are enabled.
func (n NotifyConfig) Validate() error {
	if !n.Enabled {
		return nil
	}
	if n.Topic == "" {
		return errors.New("NTFY_TOPIC is required when notifications are enabled")
	}
	if !validPriorities[n.Priority] {
		return fmt.Errorf("invalid notify priority %q (valid: min, low, default, high, urgent)", n.Priority)
	}
	return nil
}

// RequestTimeout bounds non-streaming HTTP requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// RequireAPIKey fails when no key is configured.
func (c *Config) RequireAPIKey() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api_key is required (set GEXBOT_API_KEY env var)")
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func (c *Config) LevelParams() levels.Params {
	return levels.Params{
		NoiseFloor:  c.Levels.NoiseFloor,
		ChangeFloor: c.Levels.ChangeFloor,
		TopStrikes:  c.Levels.TopStrikes,
	}
}

// InstrumentList converts the configured instruments, in config order.
func (c *Config) InstrumentList() []levels.Instrument {
	out := make([]levels.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		out = append(out, ic.Instrument())
	}
	return out
}

// Instrument looks up a configured source symbol (case-insensitive).
func (c *Config) Instrument(source string) (levels.Instrument, bool) {
	for _, ic := range c.Instruments {
		if strings.EqualFold(ic.Source, source) {
			return ic.Instrument(), true
		}
	}
	return levels.Instrument{}, false
}

// OutputFile returns the CSV file name for a target symbol.
func (c *Config) OutputFile(target string) string {
	if name, ok := c.Output.Files[strings.ToLower(target)]; ok && name != "" {
		return name
	}
	return strings.ToLower(target) + "_gex_levels.csv"
}

func (ic InstrumentConfig) Instrument() levels.Instrument {
	return levels.Instrument{
		Source: strings.ToUpper(ic.Source),
		Target: strings.ToUpper(ic.Target),
		Ratio:  ic.Ratio,
		Name:   ic.Name,
	}
}
