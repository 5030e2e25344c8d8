package hardware

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// LoadWAV fills ring with interleaved 16-bit stereo samples at sampleRate
// from a 16-bit mono or stereo WAV file, looping the file until the ring
// is full. Files at another rate are resampled.
func LoadWAV(path string, ring []byte, sampleRate uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("hardware: open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("hardware: invalid wav %s: %v", path, dec.Err())
	}
	if dec.BitDepth != BitsPerChannel {
		return fmt.Errorf("%w: %s has %d bits", ErrUnsupportedWAV, path, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("hardware: decode wav: %w", err)
	}
	if len(buf.Data) == 0 {
		return nil
	}

	pcm := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = int16(v)
	}
	stereo, err := ToStereo(pcm, int(dec.NumChans), int(dec.SampleRate), int(sampleRate))
	if err != nil {
		return fmt.Errorf("%w: %s has %d channels", err, path, dec.NumChans)
	}
	if len(stereo) == 0 {
		return nil
	}

	samples := len(ring) / 2
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(ring[2*i:], uint16(stereo[i%len(stereo)]))
	}
	return nil
}

// SaveWAV writes the contents of ring as a 16-bit stereo WAV file.
func SaveWAV(path string, ring []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hardware: create wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, BitsPerChannel, ChannelsPerFrame, 1)

	data := make([]int, len(ring)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(ring[2*i:])))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: ChannelsPerFrame, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitsPerChannel,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("hardware: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("hardware: finish wav: %w", err)
	}
	return f.Close()
}

// FillSine writes a stereo sine wave into ring.
func FillSine(ring []byte, sampleRate uint64, frequency, amplitude float64) {
	frames := len(ring) / FrameSize
	step := 2 * math.Pi * frequency / float64(sampleRate)
	for i := 0; i < frames; i++ {
		v := int16(amplitude * math.MaxInt16 * math.Sin(step*float64(i)))
		binary.LittleEndian.PutUint16(ring[i*FrameSize:], uint16(v))
		binary.LittleEndian.PutUint16(ring[i*FrameSize+2:], uint16(v))
	}
}
