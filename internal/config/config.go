// Package config loads go-syncvoice configuration from defaults, an optional
// config file and SYNCVOICE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SYNCVOICE_HTTP_ADDR.
const EnvPrefix = "SYNCVOICE"

// Supported nominal sample rates.
var SupportedSampleRates = []uint64{44100, 48000}

// MaxDevices caps the number of simulated hardware endpoints.
const MaxDevices = 16

// Config holds daemon configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	HTTPAddr  string `mapstructure:"http_addr"`

	// Hardware simulation
	Devices          int    `mapstructure:"devices"`
	RingBufferFrames uint32 `mapstructure:"ring_buffer_frames"`
	SampleRate       uint64 `mapstructure:"sample_rate"`
	DeviceName       string `mapstructure:"device_name"`
	Manufacturer     string `mapstructure:"manufacturer"`
	InputWAV         string `mapstructure:"input_wav"`
	OutputWAV        string `mapstructure:"output_wav"`

	// IO path
	TimeStampRetries int    `mapstructure:"timestamp_retries"`
	IOCycleFrames    uint32 `mapstructure:"io_cycle_frames"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        "text",
		HTTPAddr:         ":" + DefaultDaemonPort,
		Devices:          1,
		RingBufferFrames: 16384,
		SampleRate:       44100,
		DeviceName:       "SyncVoice Device",
		Manufacturer:     "SyncVoice",
		TimeStampRetries: 4096,
		IOCycleFrames:    512,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Devices < 0 || c.Devices > MaxDevices {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidDevices, c.Devices, MaxDevices)
	}
	if c.RingBufferFrames == 0 {
		return ErrInvalidRingBuffer
	}
	if !IsSupportedSampleRate(c.SampleRate) {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, c.SampleRate)
	}
	if c.TimeStampRetries <= 0 {
		return ErrInvalidRetries
	}
	if c.IOCycleFrames == 0 || c.IOCycleFrames > c.RingBufferFrames {
		return fmt.Errorf("%w: %d", ErrInvalidCycle, c.IOCycleFrames)
	}
	if c.HTTPAddr == "" {
		return ErrMissingHTTPAddr
	}
	return nil
}

// IsSupportedSampleRate reports whether rate is one of SupportedSampleRates.
func IsSupportedSampleRate(rate uint64) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// Configuration errors.
var (
	ErrInvalidDevices    = errors.New("config: invalid device count")
	ErrInvalidRingBuffer = errors.New("config: ring_buffer_frames must be > 0")
	ErrInvalidSampleRate = errors.New("config: unsupported sample rate")
	ErrInvalidRetries    = errors.New("config: timestamp_retries must be > 0")
	ErrInvalidCycle      = errors.New("config: io_cycle_frames must be in 1..ring_buffer_frames")
	ErrMissingHTTPAddr   = errors.New("config: http_addr is required")
)

func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("devices", d.Devices)
	v.SetDefault("ring_buffer_frames", d.RingBufferFrames)
	v.SetDefault("sample_rate", d.SampleRate)
	v.SetDefault("device_name", d.DeviceName)
	v.SetDefault("manufacturer", d.Manufacturer)
	v.SetDefault("input_wav", d.InputWAV)
	v.SetDefault("output_wav", d.OutputWAV)
	v.SetDefault("timestamp_retries", d.TimeStampRetries)
	v.SetDefault("io_cycle_frames", d.IOCycleFrames)
}

// LoadConfig reads configuration from configFilePath (optional, may be
// empty) and SYNCVOICE_* environment variables on top of the defaults.
// A missing config file is not an error.
func LoadConfig(configFilePath string) (Config, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				slog.Info("no config file found", "config_file", configFilePath)
			} else {
				return Config{}, fmt.Errorf("config: read %s: %w", configFilePath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
