package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "stockpipe/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. STOCKPIPE_PIPELINE_SOURCE
const EnvPrefix = "STOCKPIPE"

// Config represents the complete application configuration
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// PipelineConfig parameterizes a single cleaning and aggregation run
type PipelineConfig struct {
	Source      string        `yaml:"source" envconfig:"SOURCE"`
	Format      string        `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=csv xlsx"`
	Delimiter   string        `yaml:"delimiter" envconfig:"DELIMITER" validate:"len=1"`
	Sheet       string        `yaml:"sheet" envconfig:"SHEET"`
	OutputDir   string        `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	WeekStart   string        `yaml:"week_start" envconfig:"WEEK_START" validate:"weekday"`
	Mirrors     []string      `yaml:"mirrors" envconfig:"MIRRORS" validate:"unique,dive,oneof=csv sqlite xlsx"`
	StepTimeout time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT" validate:"gt=0"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=10"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	CacheSize       int             `yaml:"cache_size" envconfig:"CACHE_SIZE" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// ScheduleConfig drives periodic reruns in server mode
type ScheduleConfig struct {
	Cron       string `yaml:"cron" envconfig:"CRON"`
	RunOnStart bool   `yaml:"run_on_start" envconfig:"RUN_ON_START"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first well-known location when path is empty), then the
// environment. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := ParseWeekday(fl.Field().String())
		return ok
	})
	return v
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	c.Pipeline.WeekStart = strings.ToLower(strings.TrimSpace(c.Pipeline.WeekStart))
	for i, m := range c.Pipeline.Mirrors {
		c.Pipeline.Mirrors[i] = strings.ToLower(strings.TrimSpace(m))
	}

	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("logging.file_path is required when output is "+c.Logging.Output, nil)
	}

	return nil
}

// WeekStartDay returns the configured first day of the week
func (p PipelineConfig) WeekStartDay() time.Weekday {
	d, _ := ParseWeekday(p.WeekStart)
	return d
}

// DelimiterRune returns the CSV field separator
func (p PipelineConfig) DelimiterRune() rune {
	if p.Delimiter == "" {
		return ','
	}
	return []rune(p.Delimiter)[0]
}

// HasMirror reports whether the named mirror format is enabled
func (p PipelineConfig) HasMirror(name string) bool {
	for _, m := range p.Mirrors {
		if m == name {
			return true
		}
	}
	return false
}

// ParseWeekday parses an English weekday name, case-insensitively
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, true
		}
	}
	return time.Sunday, false
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"stockpipe.yaml",
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Delimiter:   ",",
			OutputDir:   "data/output",
			WeekStart:   "monday",
			StepTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:8080"},
			CacheSize:       64,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/stockpipe.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}

// String renders the configuration for startup logs
func (c *Config) String() string {
	return fmt.Sprintf("source=%s output=%s week_start=%s mirrors=%v port=%d",
		c.Pipeline.Source, c.Pipeline.OutputDir, c.Pipeline.WeekStart, c.Pipeline.Mirrors, c.Server.Port)
}
