package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"screen-grab/src/region"
)

const (
	// ConfigPathEnvVar names an alternative .env file used when none sits
	// beside the executable.
	ConfigPathEnvVar = "SCREEN_GRAB"

	KeyRatioConstraint    = "RATIO_CONSTRAINT"
	KeyRatio              = "RATIO"
	KeyOutputDir          = "OUTPUT_DIR"
	KeyOutputFormat       = "OUTPUT_FORMAT"
	KeyCopyToClipboard    = "COPY_TO_CLIPBOARD"
	KeyHotkey             = "HOTKEY"
	KeySelector           = "SELECTOR"
	KeyEnableFileLogging  = "ENABLE_FILE_LOGGING"
	KeyLogLevel           = "LOG_LEVEL"
	KeyCaptureDeadlineSec = "CAPTURE_DEADLINE_SEC"
)

type LoadOptions struct {
	// EnvPath overrides .env discovery.
	EnvPath string
	// Viper, when set, is read instead of a fresh instance so callers can
	// bind command-line flags that take precedence over the environment.
	Viper *viper.Viper
}

type Config struct {
	Ratio             region.RatioConstraint
	OutputDir         string
	OutputFormat      string
	CopyToClipboard   bool
	Hotkey            string
	Selector          string
	EnableFileLogging bool
	LogLevel          string
	CaptureDeadline   time.Duration
	// EnvPath is the .env file that was loaded, if any.
	EnvPath string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions reads configuration in priority order: bound flags, the
// process environment, the .env file, then defaults.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envPath := opts.EnvPath
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.AutomaticEnv()

	deadlineSec := v.GetInt(KeyCaptureDeadlineSec)
	if deadlineSec <= 0 {
		deadlineSec = 20
	}

	cfg := &Config{
		Ratio: region.RatioConstraint{
			Enabled: v.GetBool(KeyRatioConstraint),
			Ratio:   v.GetFloat64(KeyRatio),
		},
		OutputDir:         v.GetString(KeyOutputDir),
		OutputFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyOutputFormat))),
		CopyToClipboard:   v.GetBool(KeyCopyToClipboard),
		Hotkey:            v.GetString(KeyHotkey),
		Selector:          strings.ToLower(strings.TrimSpace(v.GetString(KeySelector))),
		EnableFileLogging: v.GetBool(KeyEnableFileLogging),
		LogLevel:          v.GetString(KeyLogLevel),
		CaptureDeadline:   time.Duration(deadlineSec) * time.Second,
		EnvPath:           envPath,
	}

	if err := cfg.Ratio.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRatioConstraint, false)
	v.SetDefault(KeyRatio, 1.0)
	v.SetDefault(KeyOutputDir, defaultOutputDir())
	v.SetDefault(KeyOutputFormat, "png")
	v.SetDefault(KeyCopyToClipboard, false)
	v.SetDefault(KeyHotkey, "Ctrl+Alt+G")
	v.SetDefault(KeySelector, "fyne")
	v.SetDefault(KeyEnableFileLogging, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCaptureDeadlineSec, 20)
}

func defaultOutputDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Pictures", "screen-grab")
	}
	return "."
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
