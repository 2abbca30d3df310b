package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config carries runtime options for sysglance.
type Config struct {
	Interval       time.Duration `yaml:"interval"`
	SmoothingRate  float64       `yaml:"smoothing_rate"`
	FrameRate      int           `yaml:"frame_rate"`
	EnableNVML     bool          `yaml:"nvml"`
	EnableADL      bool          `yaml:"adl"`
	EnableCounters bool          `yaml:"counters"`
	NVMLPaths      []string      `yaml:"nvml_paths"`
	ADLPaths       []string      `yaml:"adl_paths"`
	SysRoot        string        `yaml:"sys_root"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	JSONStream     bool          `yaml:"json_stream"`
}

func Default() Config {
	return Config{
		Interval:       100 * time.Millisecond,
		SmoothingRate:  5.0,
		FrameRate:      60,
		EnableNVML:     true,
		EnableADL:      true,
		EnableCounters: true,
		SysRoot:        "/sys",
		LogLevel:       "info",
	}
}

// FromFlags builds the configuration from, in increasing precedence: the
// defaults, the YAML file named by --config, the .env file, SYSGLANCE_*
// environment variables and the command-line flags.
func FromFlags(args []string) (Config, error) {
	cfg := Default()

	pre := pflag.NewFlagSet("sysglance", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	configPath := pre.String("config", "", "")
	envFile := pre.String("env-file", ".env", "")
	pre.BoolP("help", "h", false, "")
	_ = pre.Parse(args)

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return cfg, err
		}
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: env file %s: %w", *envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	flags := pflag.NewFlagSet("sysglance", pflag.ContinueOnError)
	flags.String("config", *configPath, "YAML configuration file")
	flags.String("env-file", *envFile, "dotenv file with SYSGLANCE_* variables")
	flags.DurationVar(&cfg.Interval, "interval", cfg.Interval, "hardware sampling interval")
	flags.Float64Var(&cfg.SmoothingRate, "smoothing", cfg.SmoothingRate, "display interpolation rate per second")
	flags.IntVar(&cfg.FrameRate, "fps", cfg.FrameRate, "display frames per second")
	flags.BoolVar(&cfg.EnableNVML, "nvml", cfg.EnableNVML, "probe the NVIDIA management library")
	flags.BoolVar(&cfg.EnableADL, "adl", cfg.EnableADL, "probe the AMD display library")
	flags.BoolVar(&cfg.EnableCounters, "counters", cfg.EnableCounters, "probe generic GPU performance counters")
	flags.StringSliceVar(&cfg.NVMLPaths, "nvml-path", cfg.NVMLPaths, "NVML library candidates, in order")
	flags.StringSliceVar(&cfg.ADLPaths, "adl-path", cfg.ADLPaths, "ADL library candidates, in order")
	flags.StringVar(&cfg.SysRoot, "sys-root", cfg.SysRoot, "sysfs mount point")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")
	flags.BoolVar(&cfg.JSONStream, "json-stream", cfg.JSONStream, "stream NDJSON snapshots until interrupted")
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SYSGLANCE_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.Interval = parsed
		} else if parsed, err2 := time.ParseDuration(v + "s"); err2 == nil {
			c.Interval = parsed
		} else {
			return fmt.Errorf("config: SYSGLANCE_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("SYSGLANCE_SMOOTHING"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: SYSGLANCE_SMOOTHING: %w", err)
		}
		c.SmoothingRate = parsed
	}
	if v := os.Getenv("SYSGLANCE_FPS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SYSGLANCE_FPS: %w", err)
		}
		c.FrameRate = parsed
	}
	if v := os.Getenv("SYSGLANCE_NVML"); v == "0" {
		c.EnableNVML = false
	}
	if v := os.Getenv("SYSGLANCE_ADL"); v == "0" {
		c.EnableADL = false
	}
	if v := os.Getenv("SYSGLANCE_COUNTERS"); v == "0" {
		c.EnableCounters = false
	}
	if v := os.Getenv("SYSGLANCE_NVML_PATHS"); v != "" {
		c.NVMLPaths = filepath.SplitList(v)
	}
	if v := os.Getenv("SYSGLANCE_ADL_PATHS"); v != "" {
		c.ADLPaths = filepath.SplitList(v)
	}
	if v := os.Getenv("SYSGLANCE_SYS_ROOT"); v != "" {
		c.SysRoot = v
	}
	if v := os.Getenv("SYSGLANCE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SYSGLANCE_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	return nil
}

// Validate rejects settings the sampler cannot run with.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be positive, got %s", c.Interval)
	}
	if c.SmoothingRate <= 0 {
		return fmt.Errorf("config: smoothing rate must be positive, got %g", c.SmoothingRate)
	}
	if c.FrameRate <= 0 || c.FrameRate > 1000 {
		return fmt.Errorf("config: fps must be in 1..1000, got %d", c.FrameRate)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// FrameInterval is the display frame period.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
