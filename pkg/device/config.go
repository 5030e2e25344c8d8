package device

import "time"

// Supported nominal sample rates, lowest first.
var SupportedSampleRates = []uint64{44100, 48000}

// IsSupportedSampleRate reports whether the device accepts rate.
func IsSupportedSampleRate(rate uint64) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// Config holds the static description of a device.
type Config struct {
	Name         string
	Manufacturer string
	ModelUID     string

	// TimeStampRetries bounds the optimistic status read.
	TimeStampRetries int

	// OpenTimeout bounds opening the hardware channel in Activate.
	OpenTimeout time.Duration
}

// DefaultConfig returns the default device description.
func DefaultConfig() Config {
	return Config{
		Name:             "SyncVoice Device",
		Manufacturer:     "SyncVoice",
		ModelUID:         "SyncVoiceModel",
		TimeStampRetries: 4096,
		OpenTimeout:      5 * time.Second,
	}
}
