// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Runner() RunnerConfig
	Picker() PickerConfig
	Store() StoreConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	RunnerCfg  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	PickerCfg  PickerConfig  `mapstructure:"picker" yaml:"picker"`
	StoreCfg   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Runner() RunnerConfig   { return c.RunnerCfg }
func (c *Config) Picker() PickerConfig   { return c.PickerCfg }
func (c *Config) Store() StoreConfig     { return c.StoreCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string) { c.BrowserCfg.ExecPath = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chromium instance the session drives.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides Chromium discovery. Empty means let chromedp find it.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// UserDataDir keeps a persistent profile (logins, cookies) across runs.
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// RunnerConfig configures click runs and the visual feedback of each step.
type RunnerConfig struct {
	DefaultDelay      time.Duration `mapstructure:"default_delay" yaml:"default_delay"`
	DefaultRepeats    int           `mapstructure:"default_repeats" yaml:"default_repeats"`
	StepTimeout       time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	HighlightStyle    string        `mapstructure:"highlight_style" yaml:"highlight_style"`
	HighlightDuration time.Duration `mapstructure:"highlight_duration" yaml:"highlight_duration"`
	IndicatorColor    string        `mapstructure:"indicator_color" yaml:"indicator_color"`
	IndicatorSize     int           `mapstructure:"indicator_size" yaml:"indicator_size"`
	IndicatorDuration time.Duration `mapstructure:"indicator_duration" yaml:"indicator_duration"`
}

// PickerConfig configures interactive element picking.
type PickerConfig struct {
	OutlineStyle        string        `mapstructure:"outline_style" yaml:"outline_style"`
	CancelKey           string        `mapstructure:"cancel_key" yaml:"cancel_key"`
	SavedToastDuration  time.Duration `mapstructure:"saved_toast_duration" yaml:"saved_toast_duration"`
	CancelToastDuration time.Duration `mapstructure:"cancel_toast_duration" yaml:"cancel_toast_duration"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig points at the persisted settings profile.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "clickseq")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.debug", false)

	// -- Runner --
	v.SetDefault("runner.default_delay", "1s")
	v.SetDefault("runner.default_repeats", 1)
	v.SetDefault("runner.step_timeout", "15s")
	v.SetDefault("runner.highlight_style", "2px solid red")
	v.SetDefault("runner.highlight_duration", "500ms")
	v.SetDefault("runner.indicator_color", "red")
	v.SetDefault("runner.indicator_size", 10)
	v.SetDefault("runner.indicator_duration", "500ms")

	// -- Picker --
	v.SetDefault("picker.outline_style", "2px dashed #f39c12")
	v.SetDefault("picker.cancel_key", "Escape")
	v.SetDefault("picker.saved_toast_duration", "2s")
	v.SetDefault("picker.cancel_toast_duration", "1s")
	v.SetDefault("picker.timeout", "10m")

	// -- Store --
	v.SetDefault("store.path", "~/.clickseq/settings.yaml")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in user supplied paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.StoreCfg.Path, &c.BrowserCfg.UserDataDir, &c.LoggerCfg.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.RunnerCfg.DefaultDelay <= 0 {
		return fmt.Errorf("runner.default_delay must be positive")
	}
	if c.RunnerCfg.DefaultRepeats < 1 {
		return fmt.Errorf("runner.default_repeats must be at least 1")
	}
	if c.RunnerCfg.StepTimeout <= 0 {
		return fmt.Errorf("runner.step_timeout must be positive")
	}
	if c.RunnerCfg.IndicatorSize <= 0 {
		return fmt.Errorf("runner.indicator_size must be a positive integer")
	}
	if strings.TrimSpace(c.PickerCfg.CancelKey) == "" {
		return fmt.Errorf("picker.cancel_key is a required configuration field")
	}
	if c.BrowserCfg.WindowWidth <= 0 || c.BrowserCfg.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive integers")
	}
	if c.StoreCfg.Path == "" {
		return fmt.Errorf("store.path is a required configuration field")
	}
	return nil
}
