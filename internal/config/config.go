// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read-only view of the configuration that components
// receive. It exists so tests can substitute a mock instead of building a
// full Config.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Executor() ExecutorConfig
	Safety() SafetyConfig
	Store() StoreConfig
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`

	// File output (rotated by lumberjack). Empty disables the file core.
	LogFile    string `mapstructure:"log_file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// AgentConfig holds agent-wide knobs.
type AgentConfig struct {
	EventHistorySize int `mapstructure:"event_history_size"`
}

// ExecutorConfig controls plan execution.
type ExecutorConfig struct {
	// MaxPlanDuration is the wall-clock budget for a whole plan. There is no
	// per-step timeout.
	MaxPlanDuration time.Duration `mapstructure:"max_plan_duration"`
	// StepDelay is the settle pause between successful steps.
	StepDelay time.Duration `mapstructure:"step_delay"`
	// VerifySteps enables the advisory post-condition checks.
	VerifySteps bool `mapstructure:"verify_steps"`
	// LogVerificationFailures records failed verifications as context
	// variables for diagnostics.
	LogVerificationFailures bool `mapstructure:"log_verification_failures"`
	// ElementMaxAge and ElementMinConfidence define when a cached element
	// reference is considered stale.
	ElementMaxAge        time.Duration `mapstructure:"element_max_age"`
	ElementMinConfidence float64       `mapstructure:"element_min_confidence"`
}

// SafetyConfig limits what execution may do to the machine.
type SafetyConfig struct {
	MaxActionsPerMinute int      `mapstructure:"max_actions_per_minute"`
	BlockedApps         []string `mapstructure:"blocked_apps"`
}

// StoreConfig configures the execution-record store.
type StoreConfig struct {
	Path       string `mapstructure:"path"`
	MaxHistory int    `mapstructure:"max_history"`
}

// Config is the root configuration object.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger"`
	AgentCfg    AgentConfig    `mapstructure:"agent"`
	ExecutorCfg ExecutorConfig `mapstructure:"executor"`
	SafetyCfg   SafetyConfig   `mapstructure:"safety"`
	StoreCfg    StoreConfig    `mapstructure:"store"`
}

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }
func (c *Config) Executor() ExecutorConfig { return c.ExecutorCfg }
func (c *Config) Safety() SafetyConfig     { return c.SafetyCfg }
func (c *Config) Store() StoreConfig       { return c.StoreCfg }

// SetDefaults installs the baseline values on a viper instance. Call this
// before ReadInConfig so the file/env only has to override what differs.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "handsfree")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("agent.event_history_size", 100)

	v.SetDefault("executor.max_plan_duration", 5*time.Minute)
	v.SetDefault("executor.step_delay", 100*time.Millisecond)
	v.SetDefault("executor.verify_steps", true)
	v.SetDefault("executor.log_verification_failures", true)
	v.SetDefault("executor.element_max_age", 5*time.Second)
	v.SetDefault("executor.element_min_confidence", 0.0)

	v.SetDefault("safety.max_actions_per_minute", 60)
	v.SetDefault("safety.blocked_apps", []string{"regedit.exe", "diskpart.exe"})

	v.SetDefault("store.path", "data/handsfree.db")
	v.SetDefault("store.max_history", 10000)
}

// New builds a Config from a prepared viper instance and validates it.
func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefault returns a Config with every field at its default value.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := New(v)
	if err != nil {
		// Defaults are defined in this package; failing to decode them is a
		// programming error.
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return cfg
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LoggerCfg.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.LoggerCfg.Format)
	}
	if c.ExecutorCfg.MaxPlanDuration <= 0 {
		return fmt.Errorf("executor.max_plan_duration must be positive, got %s", c.ExecutorCfg.MaxPlanDuration)
	}
	if c.ExecutorCfg.StepDelay < 0 {
		return fmt.Errorf("executor.step_delay must not be negative, got %s", c.ExecutorCfg.StepDelay)
	}
	if c.ExecutorCfg.ElementMinConfidence < 0 || c.ExecutorCfg.ElementMinConfidence > 1 {
		return fmt.Errorf("executor.element_min_confidence must be in [0,1], got %v", c.ExecutorCfg.ElementMinConfidence)
	}
	if c.SafetyCfg.MaxActionsPerMinute < 0 {
		return fmt.Errorf("safety.max_actions_per_minute must not be negative, got %d", c.SafetyCfg.MaxActionsPerMinute)
	}
	if c.AgentCfg.EventHistorySize <= 0 {
		return fmt.Errorf("agent.event_history_size must be positive, got %d", c.AgentCfg.EventHistorySize)
	}
	return nil
}
