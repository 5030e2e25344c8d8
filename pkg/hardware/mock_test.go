package hardware

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openMock(t *testing.T, opts ...MockOption) *MockChannel {
	t.Helper()
	m := NewMockChannel(opts...)
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if m.IsOpen() {
			m.Close()
		}
	})
	return m
}

func TestMockChannel_OpenClose(t *testing.T) {
	m := NewMockChannel(WithRingBufferFrames(256))
	if m.DeviceUID() == "" {
		t.Error("DeviceUID should default to a uuid")
	}

	if _, err := m.SampleRate(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SampleRate() before Open = %v, want ErrNotOpen", err)
	}

	ctx := context.Background()
	if err := m.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Open(ctx); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open() = %v, want ErrAlreadyOpen", err)
	}

	frames, err := m.RingBufferFrameCount()
	if err != nil || frames != 256 {
		t.Errorf("RingBufferFrameCount() = %d, %v", frames, err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second Close() = %v, want ErrNotOpen", err)
	}
}

func TestMockChannel_OpenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMockChannel().Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() = %v, want context.Canceled", err)
	}
}

func TestMockChannel_MapBuffers(t *testing.T) {
	m := openMock(t, WithRingBufferFrames(128))

	tests := []struct {
		kind BufferKind
		size int
	}{
		{BufferStatus, StatusRegionSize},
		{BufferInput, 128 * FrameSize},
		{BufferOutput, 128 * FrameSize},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			mem, err := m.MapBuffer(tt.kind)
			if err != nil {
				t.Fatalf("MapBuffer() error = %v", err)
			}
			if len(mem) != tt.size {
				t.Errorf("len = %d, want %d", len(mem), tt.size)
			}
			if err := m.UnmapBuffer(tt.kind); err != nil {
				t.Errorf("UnmapBuffer() error = %v", err)
			}
			if err := m.UnmapBuffer(tt.kind); !errors.Is(err, ErrNotMapped) {
				t.Errorf("second UnmapBuffer() = %v, want ErrNotMapped", err)
			}
		})
	}

	if _, err := m.MapBuffer(BufferKind(9)); !errors.Is(err, ErrUnknownBuffer) {
		t.Errorf("MapBuffer(9) = %v, want ErrUnknownBuffer", err)
	}
}

func TestMockChannel_Clock(t *testing.T) {
	m := openMock(t, WithRingBufferFrames(64), WithClockPeriod(2*time.Millisecond))

	if err := m.StartHardware(); err != nil {
		t.Fatalf("StartHardware() error = %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	deadline := time.Now().Add(2 * time.Second)
	var sample uint64
	for time.Now().Before(deadline) {
		sample, _, _ = m.Status().Snapshot(1024)
		if sample >= 128 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if sample < 128 || sample%64 != 0 {
		t.Errorf("sample time = %d, want a multiple of 64 and >= 128", sample)
	}

	if err := m.StopHardware(); err != nil {
		t.Fatalf("StopHardware() error = %v", err)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
	if m.StartCalls() != 1 || m.StopCalls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", m.StartCalls(), m.StopCalls())
	}
}

func TestMockChannel_Hooks(t *testing.T) {
	boom := errors.New("boom")
	m := openMock(t)
	m.StartHardwareFunc = func() error { return boom }

	if err := m.StartHardware(); !errors.Is(err, boom) {
		t.Errorf("StartHardware() = %v, want hook error", err)
	}
	if m.IsRunning() {
		t.Error("failed start must not run the clock")
	}
}

func TestMockChannel_SampleRate(t *testing.T) {
	m := openMock(t)

	tests := []struct {
		rate    uint64
		wantErr error
	}{
		{48000, nil},
		{44100, nil},
		{96000, ErrUnsupportedRate},
	}
	for _, tt := range tests {
		err := m.SetSampleRate(tt.rate)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("SetSampleRate(%d) = %v, want %v", tt.rate, err, tt.wantErr)
		}
	}
	if rate, _ := m.SampleRate(); rate != 44100 {
		t.Errorf("SampleRate() = %d, want 44100", rate)
	}
}

func TestMockChannel_Controls(t *testing.T) {
	m := openMock(t)

	if v, err := m.ControlValue(ControlMasterOutputVolume); err != nil || v != DefaultVolumeRaw {
		t.Errorf("ControlValue() = %d, %v", v, err)
	}
	if err := m.SetControlValue(ControlMasterInputVolume, 40); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.ControlValue(ControlMasterInputVolume); v != 40 {
		t.Errorf("ControlValue() = %d, want 40", v)
	}
	if err := m.SetControlValue(ControlID(7), 1); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("SetControlValue(7) = %v, want ErrUnknownControl", err)
	}
}

func TestMockChannel_Terminate(t *testing.T) {
	m := openMock(t)
	m.Terminate()
	if m.IsAlive() {
		t.Error("IsAlive() = true after Terminate")
	}
	if err := m.StartHardware(); !errors.Is(err, ErrNotAlive) {
		t.Errorf("StartHardware() = %v, want ErrNotAlive", err)
	}
}

func TestMockChannel_WAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")

	// Write a source file with a recognizable ramp.
	src := make([]byte, 32*FrameSize)
	for i := 0; i < len(src)/2; i++ {
		binary.LittleEndian.PutUint16(src[2*i:], uint16(int16(i*10)))
	}
	if err := SaveWAV(in, src, 44100); err != nil {
		t.Fatalf("SaveWAV() error = %v", err)
	}

	m := openMock(t, WithRingBufferFrames(64), WithInputWAV(in), WithOutputWAV(out))
	input, err := m.MapBuffer(BufferInput)
	if err != nil {
		t.Fatal(err)
	}
	// The 32-frame file loops to fill the 64-frame ring.
	for i := 0; i < len(input)/2; i++ {
		want := int16((i % (len(src) / 2)) * 10)
		if got := int16(binary.LittleEndian.Uint16(input[2*i:])); got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}

	output, _ := m.MapBuffer(BufferOutput)
	copy(output, input)
	if err := m.UnmapBuffer(BufferOutput); err != nil {
		t.Fatal(err)
	}

	ring := make([]byte, 64*FrameSize)
	if err := LoadWAV(out, ring, DefaultSampleRate); err != nil {
		t.Fatalf("LoadWAV(capture) error = %v", err)
	}
	for i := range ring {
		if ring[i] != input[i] {
			t.Fatalf("captured byte %d = %d, want %d", i, ring[i], input[i])
		}
	}
}

func TestFillSine(t *testing.T) {
	ring := make([]byte, 100*FrameSize)
	FillSine(ring, 44100, 441, 0.5)
	left := int16(binary.LittleEndian.Uint16(ring[25*FrameSize:]))
	right := int16(binary.LittleEndian.Uint16(ring[25*FrameSize+2:]))
	if left != right {
		t.Error("channels should match")
	}
	// A quarter period in: close to the peak.
	if left < 16000 {
		t.Errorf("peak sample = %d, want near %d", left, 16383)
	}
}
