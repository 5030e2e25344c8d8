package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500, 600}
	result := Resample(samples, 2, 48000, 48000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Lengths(t *testing.T) {
	tests := []struct {
		name     string
		frames   int
		channels int
		from, to int
		want     int
	}{
		{name: "downsample stereo", frames: 9600, channels: 2, from: 48000, to: 24000, want: 4800},
		{name: "upsample mono", frames: 3200, channels: 1, from: 16000, to: 24000, want: 4800},
		{name: "44.1k to 48k stereo", frames: 4410, channels: 2, from: 44100, to: 48000, want: 4800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.frames*tt.channels)
			got := Resample(samples, tt.channels, tt.from, tt.to)
			if len(got)%tt.channels != 0 {
				t.Fatalf("len = %d, not a whole number of frames", len(got))
			}
			// The filter delay costs a few frames at the end.
			frames := len(got) / tt.channels
			if frames > tt.want || frames < tt.want*9/10 {
				t.Errorf("frames = %d, want about %d", frames, tt.want)
			}
		})
	}
}

func TestResample_KeepsChannelsApart(t *testing.T) {
	// Left is silent, right stays constant.
	samples := make([]int16, 4000)
	for i := 0; i < 2000; i++ {
		samples[2*i+1] = -1000
	}

	result := Resample(samples, 2, 24000, 48000)
	frames := len(result) / 2
	if frames < 3000 {
		t.Fatalf("frames = %d, want about 4000", frames)
	}
	for i := frames / 4; i < 3*frames/4; i++ {
		if l := result[2*i]; l < -20 || l > 20 {
			t.Fatalf("left sample %d = %d, want near 0", i, l)
		}
		if r := result[2*i+1]; r < -1040 || r > -960 {
			t.Fatalf("right sample %d = %d, want near -1000", i, r)
		}
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16384},
		{-1, -32768},
		{1, 32767},
		{2, 32767},
		{-3, -32768},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestResample_Empty(t *testing.T) {
	if result := Resample(nil, 2, 24000, 48000); len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}
	if result := Resample([]int16{}, 2, 24000, 48000); len(result) != 0 {
		t.Errorf("Expected empty result for empty input")
	}
}

func TestToStereo(t *testing.T) {
	stereo, err := ToStereo([]int16{1, 2, 3}, 1, 44100, 44100)
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{1, 1, 2, 2, 3, 3}
	for i := range want {
		if stereo[i] != want[i] {
			t.Fatalf("ToStereo() = %v, want %v", stereo, want)
		}
	}

	if _, err := ToStereo(make([]int16, 6), 3, 44100, 44100); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("3 channels: error = %v, want ErrUnsupportedWAV", err)
	}
}

func writeMonoWAV(t *testing.T, path string, rate, frames, value int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, BitsPerChannel, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = value
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: BitsPerChannel,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func ringSample(ring []byte, i int) int16 {
	return int16(uint16(ring[2*i]) | uint16(ring[2*i+1])<<8)
}

func TestLoadWAV_Mono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeMonoWAV(t, path, 44100, 64, 500)

	ring := make([]byte, 256*FrameSize)
	if err := LoadWAV(path, ring, 44100); err != nil {
		t.Fatalf("LoadWAV() error = %v", err)
	}
	for i := 0; i < len(ring)/2; i++ {
		if got := ringSample(ring, i); got != 500 {
			t.Fatalf("sample %d = %d, want 500", i, got)
		}
	}
}

func TestLoadWAV_MonoResampled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono22k.wav")
	writeMonoWAV(t, path, 22050, 4096, 500)

	ring := make([]byte, 8192*FrameSize)
	if err := LoadWAV(path, ring, 44100); err != nil {
		t.Fatalf("LoadWAV() error = %v", err)
	}
	for i := 0; i < 8192; i++ {
		l, r := ringSample(ring, 2*i), ringSample(ring, 2*i+1)
		if l != r {
			t.Fatalf("frame %d: left %d != right %d", i, l, r)
		}
		if i >= 2000 && i < 6000 && (l < 475 || l > 525) {
			t.Fatalf("frame %d = %d, want near 500", i, l)
		}
	}
}
