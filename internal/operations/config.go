package operations

import (
	"time"

	"stockpipe/internal/config"
)

// Config represents the run execution configuration
type Config struct {
	// Step-specific timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Timeout for steps without an explicit entry
	DefaultTimeout time.Duration `json:"default_timeout"`

	// Retry configuration for retryable step failures
	RetryConfig RetryConfig `json:"retry_config"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		StepTimeouts:   make(map[string]time.Duration),
		DefaultTimeout: DefaultStepTimeout,
		RetryConfig:    NewRetryConfig(),
	}
}

// ConfigFrom derives the run configuration from the pipeline settings
func ConfigFrom(cfg config.PipelineConfig) *Config {
	c := NewConfig()
	if cfg.StepTimeout > 0 {
		c.DefaultTimeout = cfg.StepTimeout
	}
	c.RetryConfig.MaxAttempts = cfg.MaxRetries + 1
	return c
}

// GetStepTimeout returns the timeout for a specific Step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific Step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
