package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-syncvoice/internal/log"
)

// Defaults for a MockChannel.
const (
	DefaultRingBufferFrames = 16384
	DefaultSampleRate       = 44100
	DefaultVolumeRaw        = 96
)

// MockChannel simulates an endpoint in memory. Its regions are real
// shared mappings and, while started, a clock goroutine publishes a new
// zero timestamp every time the ring wraps.
//
// The *Func hooks run before the simulated behavior; a hook error fails
// the call without changing state.
type MockChannel struct {
	StartHardwareFunc   func() error
	StopHardwareFunc    func() error
	SetSampleRateFunc   func(rate uint64) error
	SetControlValueFunc func(id ControlID, value int32) error
	MapBufferFunc       func(kind BufferKind) error

	uid         string
	ringFrames  uint32
	clockPeriod time.Duration
	inputWAV    string
	outputWAV   string
	sineFreq    float64
	logger      *slog.Logger

	mu         sync.Mutex
	open       bool
	running    bool
	sampleRate uint64
	controls   map[ControlID]int32
	regions    map[BufferKind]*region
	mapped     map[BufferKind]bool
	status     *StatusRegion
	stopClock  chan struct{}
	clockDone  chan struct{}

	alive atomic.Bool

	// Tracking
	startCalls atomic.Int64
	stopCalls  atomic.Int64
	rateCalls  atomic.Int64
}

type region struct {
	mem   []byte
	unmap func() error
}

// MockOption configures a MockChannel.
type MockOption func(*MockChannel)

// WithUID sets the device UID. The default is a random UUID.
func WithUID(uid string) MockOption {
	return func(m *MockChannel) { m.uid = uid }
}

// WithRingBufferFrames sets the ring size in frames.
func WithRingBufferFrames(frames uint32) MockOption {
	return func(m *MockChannel) { m.ringFrames = frames }
}

// WithSampleRate sets the initial sample rate.
func WithSampleRate(rate uint64) MockOption {
	return func(m *MockChannel) { m.sampleRate = rate }
}

// WithClockPeriod overrides the interval between zero timestamps. By
// default it is one ring's worth of frames at the current rate.
func WithClockPeriod(d time.Duration) MockOption {
	return func(m *MockChannel) { m.clockPeriod = d }
}

// WithInputWAV preloads the input ring from a 16-bit stereo WAV file.
func WithInputWAV(path string) MockOption {
	return func(m *MockChannel) { m.inputWAV = path }
}

// WithOutputWAV captures the output ring to a WAV file when it is unmapped.
func WithOutputWAV(path string) MockOption {
	return func(m *MockChannel) { m.outputWAV = path }
}

// WithSineWave fills the input ring with a sine wave when no WAV is set.
func WithSineWave(frequency float64) MockOption {
	return func(m *MockChannel) { m.sineFreq = frequency }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MockOption {
	return func(m *MockChannel) { m.logger = l }
}

// NewMockChannel creates a closed, alive channel.
func NewMockChannel(opts ...MockOption) *MockChannel {
	m := &MockChannel{
		uid:        uuid.NewString(),
		ringFrames: DefaultRingBufferFrames,
		sampleRate: DefaultSampleRate,
		controls: map[ControlID]int32{
			ControlMasterInputVolume:  DefaultVolumeRaw,
			ControlMasterOutputVolume: DefaultVolumeRaw,
		},
		regions: make(map[BufferKind]*region),
		mapped:  make(map[BufferKind]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.Or(m.logger).With("component", "hardware", "device_uid", m.uid)
	m.alive.Store(true)
	return m
}

// Open allocates the three regions and seeds the input ring.
func (m *MockChannel) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.alive.Load() {
		return ErrNotAlive
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return ErrAlreadyOpen
	}

	sizes := map[BufferKind]int{
		BufferStatus: StatusRegionSize,
		BufferInput:  int(m.ringFrames) * FrameSize,
		BufferOutput: int(m.ringFrames) * FrameSize,
	}
	for kind, size := range sizes {
		mem, unmap, err := allocRegion(size)
		if err != nil {
			m.freeRegionsLocked()
			return fmt.Errorf("hardware: map %s: %w", kind, err)
		}
		m.regions[kind] = &region{mem: mem, unmap: unmap}
	}

	status, err := NewStatusRegion(m.regions[BufferStatus].mem)
	if err != nil {
		m.freeRegionsLocked()
		return err
	}
	m.status = status

	input := m.regions[BufferInput].mem
	switch {
	case m.inputWAV != "":
		if err := LoadWAV(m.inputWAV, input, m.sampleRate); err != nil {
			m.freeRegionsLocked()
			return err
		}
	case m.sineFreq > 0:
		FillSine(input, m.sampleRate, m.sineFreq, 0.25)
	}

	m.open = true
	m.logger.Debug("channel opened", "ring_frames", m.ringFrames)
	return nil
}

// Close stops the clock and releases every region.
func (m *MockChannel) Close() error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return ErrNotOpen
	}
	m.stopClockLocked()
	m.running = false
	m.open = false
	for kind := range m.mapped {
		m.captureLocked(kind)
	}
	m.mapped = make(map[BufferKind]bool)
	m.freeRegionsLocked()
	m.mu.Unlock()

	m.logger.Debug("channel closed")
	return nil
}

func (m *MockChannel) freeRegionsLocked() {
	for kind, r := range m.regions {
		if err := r.unmap(); err != nil {
			m.logger.Warn("unmap failed", "buffer", kind.String(), "err", err)
		}
		delete(m.regions, kind)
	}
	m.status = nil
}

// IsAlive reports whether the simulated hardware is present.
func (m *MockChannel) IsAlive() bool { return m.alive.Load() }

// Terminate marks the hardware as gone.
func (m *MockChannel) Terminate() { m.alive.Store(false) }

// DeviceUID returns the channel UID.
func (m *MockChannel) DeviceUID() string { return m.uid }

// StartHardware starts the clock.
func (m *MockChannel) StartHardware() error {
	m.startCalls.Add(1)
	if m.StartHardwareFunc != nil {
		if err := m.StartHardwareFunc(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	if !m.alive.Load() {
		return ErrNotAlive
	}
	if m.running {
		return nil
	}
	m.running = true
	m.stopClock = make(chan struct{})
	m.clockDone = make(chan struct{})
	go m.runClock(m.status, m.clockPeriodLocked(), m.stopClock, m.clockDone)
	return nil
}

// StopHardware stops the clock.
func (m *MockChannel) StopHardware() error {
	m.stopCalls.Add(1)
	if m.StopHardwareFunc != nil {
		if err := m.StopHardwareFunc(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	m.stopClockLocked()
	m.running = false
	return nil
}

func (m *MockChannel) stopClockLocked() {
	if m.stopClock == nil {
		return
	}
	close(m.stopClock)
	<-m.clockDone
	m.stopClock = nil
	m.clockDone = nil
}

func (m *MockChannel) clockPeriodLocked() time.Duration {
	if m.clockPeriod > 0 {
		return m.clockPeriod
	}
	return time.Duration(float64(m.ringFrames) / float64(m.sampleRate) * float64(time.Second))
}

// runClock publishes a timestamp for every ring wrap. The first one marks
// sample time zero.
func (m *MockChannel) runClock(status *StatusRegion, period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	start := time.Now()
	var sampleTime uint64
	status.Publish(sampleTime, uint64(start.UnixNano()))

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			sampleTime += uint64(m.ringFrames)
			status.Publish(sampleTime, uint64(now.UnixNano()))
		}
	}
}

// SampleRate returns the current rate.
func (m *MockChannel) SampleRate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, ErrNotOpen
	}
	return m.sampleRate, nil
}

// SetSampleRate changes the rate. Only 44100 and 48000 are accepted.
func (m *MockChannel) SetSampleRate(rate uint64) error {
	m.rateCalls.Add(1)
	if m.SetSampleRateFunc != nil {
		if err := m.SetSampleRateFunc(rate); err != nil {
			return err
		}
	}
	if rate != 44100 && rate != 48000 {
		return fmt.Errorf("%w: %d", ErrUnsupportedRate, rate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	m.sampleRate = rate
	m.logger.Info("sample rate changed", "sample_rate", rate)
	return nil
}

// ControlValue returns a control's raw value.
func (m *MockChannel) ControlValue(id ControlID) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, ErrNotOpen
	}
	v, ok := m.controls[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	return v, nil
}

// SetControlValue stores a control's raw value as given.
func (m *MockChannel) SetControlValue(id ControlID, value int32) error {
	if m.SetControlValueFunc != nil {
		if err := m.SetControlValueFunc(id, value); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	if _, ok := m.controls[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	m.controls[id] = value
	return nil
}

// MapBuffer returns a region's memory.
func (m *MockChannel) MapBuffer(kind BufferKind) ([]byte, error) {
	if m.MapBufferFunc != nil {
		if err := m.MapBufferFunc(kind); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, ErrNotOpen
	}
	r, ok := m.regions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuffer, kind)
	}
	m.mapped[kind] = true
	return r.mem, nil
}

// UnmapBuffer releases a mapping. Unmapping the output ring writes it to
// the capture WAV when one is configured.
func (m *MockChannel) UnmapBuffer(kind BufferKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mapped[kind] {
		return fmt.Errorf("%w: %s", ErrNotMapped, kind)
	}
	m.captureLocked(kind)
	delete(m.mapped, kind)
	return nil
}

func (m *MockChannel) captureLocked(kind BufferKind) {
	if kind != BufferOutput || m.outputWAV == "" {
		return
	}
	r, ok := m.regions[BufferOutput]
	if !ok {
		return
	}
	if err := SaveWAV(m.outputWAV, r.mem, int(m.sampleRate)); err != nil {
		m.logger.Warn("output capture failed", "path", m.outputWAV, "err", err)
		return
	}
	m.logger.Info("output captured", "path", m.outputWAV)
}

// RingBufferFrameCount returns the ring size.
func (m *MockChannel) RingBufferFrameCount() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, ErrNotOpen
	}
	return m.ringFrames, nil
}

// IsRunning reports whether the clock is running.
func (m *MockChannel) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// IsOpen reports whether the channel is open.
func (m *MockChannel) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// StartCalls returns how many times StartHardware was called.
func (m *MockChannel) StartCalls() int64 { return m.startCalls.Load() }

// StopCalls returns how many times StopHardware was called.
func (m *MockChannel) StopCalls() int64 { return m.stopCalls.Load() }

// SetSampleRateCalls returns how many times SetSampleRate was called.
func (m *MockChannel) SetSampleRateCalls() int64 { return m.rateCalls.Load() }

// Status returns the status region view while the channel is open.
func (m *MockChannel) Status() *StatusRegion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

var _ Channel = (*MockChannel)(nil)
