package hardware

import (
	"math"

	"github.com/oov/audio/resampler"
)

// resampleQuality is the resampler quality, 0 (fast) to 10 (best).
const resampleQuality = 10

// Resample converts interleaved samples with the given channel count from
// one sample rate to another. The output starts with the filter's delay.
func Resample(samples []int16, channels, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || channels <= 0 {
		return samples
	}

	frames := len(samples) / channels
	outFrames := int(int64(frames)*int64(toRate)/int64(fromRate)) + 64
	r := resampler.New(channels, fromRate, toRate, resampleQuality)

	// Decode to planar, the input is interleaved
	in := make([]float32, frames)
	planes := make([][]float32, channels)
	written := outFrames
	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			in[i] = float32(samples[i*channels+c]) / 32768
		}
		planes[c] = make([]float32, outFrames)
		_, w := r.ProcessFloat32(c, in, planes[c])
		written = min(written, w)
	}

	// Interleave again
	result := make([]int16, written*channels)
	for i := 0; i < written; i++ {
		for c := 0; c < channels; c++ {
			result[i*channels+c] = toInt16(planes[c][i])
		}
	}
	return result
}

func toInt16(v float32) int16 {
	s := math.Round(float64(v) * 32768)
	return int16(max(math.MinInt16, min(math.MaxInt16, s)))
}

// MonoToStereo duplicates mono samples to stereo.
func MonoToStereo(samples []int16) []int16 {
	stereo := make([]int16, len(samples)*2)
	for i, s := range samples {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	return stereo
}

// ToStereo converts 16-bit samples with 1 or 2 channels at fromRate into
// stereo at toRate.
func ToStereo(samples []int16, channels, fromRate, toRate int) ([]int16, error) {
	switch channels {
	case 1:
		samples = MonoToStereo(samples)
	case ChannelsPerFrame:
	default:
		return nil, ErrUnsupportedWAV
	}
	return Resample(samples, ChannelsPerFrame, fromRate, toRate), nil
}
