// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName    = "ym2151play"
	ConfigType = "yaml"

	DefaultConfig = `# ym2151play server configuration

# Unix domain socket the server listens on and the client dials.
socket_path: "/tmp/ym2151play.sock"

# Audio output device and sink stream parameters.
device_index: -1         # -1 for default device
sink_sample_rate: 48000  # Hz, the host audio device's rate
channels: 2              # stereo
buffer_size: 512         # sink callback period, in frames

# Resampling from the chip's native 55930 Hz rate to sink_sample_rate.
resampling_quality: "linear"  # only "linear" is implemented

# Minimum recommended future offset (seconds) clients should add to
# schedule_relative_with_safety calls to absorb pipeline latency. Only
# loaded and validated: the server neither enforces it nor sends it to
# clients.
default_safety_offset_sec: 0.03

# Verbose server-side logging.
debug: false
`
)

// Settings holds the server's full runtime configuration.
type Settings struct {
	SocketPath string `mapstructure:"socket_path"`

	DeviceIndex    int `mapstructure:"device_index"`
	SinkSampleRate int `mapstructure:"sink_sample_rate"`
	Channels       int `mapstructure:"channels"`
	BufferSize     int `mapstructure:"buffer_size"`

	ResamplingQuality string `mapstructure:"resampling_quality"`

	DefaultSafetyOffsetSec float64 `mapstructure:"default_safety_offset_sec"`

	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/ym2151play/
func Init() error {
	viper.SetDefault("socket_path", "/tmp/ym2151play.sock")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sink_sample_rate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("resampling_quality", "linear")
	viper.SetDefault("default_safety_offset_sec", 0.03)
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

var validResamplingQualities = map[string]bool{
	"linear": true,
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.SocketPath == "" {
		errs = append(errs, errors.New("socket_path must not be empty"))
	}
	if s.SinkSampleRate < 8000 || s.SinkSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sink_sample_rate must be between 8000 and 192000 Hz, got %d", s.SinkSampleRate))
	}
	if s.Channels != 1 && s.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}
	if !validResamplingQualities[s.ResamplingQuality] {
		errs = append(errs, fmt.Errorf("resampling_quality must be one of linear, got %q", s.ResamplingQuality))
	}
	if s.DefaultSafetyOffsetSec < 0 || s.DefaultSafetyOffsetSec > 1.0 {
		errs = append(errs, fmt.Errorf("default_safety_offset_sec must be between 0 and 1.0 seconds, got %v", s.DefaultSafetyOffsetSec))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
