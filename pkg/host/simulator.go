// Package host simulates the audio server side of the driver: it runs an
// IO cycle for every started device, carries out configuration changes
// with the cycle paused, and fans property notifications out to
// listeners.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/device"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/plugin"
)

// ErrClosed is returned once the simulator has been closed.
var ErrClosed = errors.New("host: simulator closed")

// ErrNotRunning is returned when a client stops IO it never started.
var ErrNotRunning = errors.New("host: device not running")

// Notification is one PropertiesChanged call.
type Notification struct {
	ObjectID  hal.ObjectID  `json:"object_id"`
	Addresses []hal.Address `json:"addresses"`
}

// Listener receives notifications. It must not block.
type Listener func(Notification)

// Simulator implements device.Host on top of a plugin.Driver.
type Simulator struct {
	driver      *plugin.Driver
	client      hal.ClientID
	cycleFrames uint32
	autoAbort   bool
	logger      *slog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	cycles    map[hal.ObjectID]*cycle
	starts    map[hal.ObjectID]map[hal.ClientID]int
	closed    bool

	requests chan configRequest
	done     chan struct{}
	wg       sync.WaitGroup

	performed atomic.Int64
	aborted   atomic.Int64
}

type configRequest struct {
	deviceID hal.ObjectID
	action   uint64
	info     any
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithCycleFrames sets the frames moved per IO cycle.
func WithCycleFrames(frames uint32) Option {
	return func(s *Simulator) { s.cycleFrames = frames }
}

// WithAutoAbort makes the simulator abort every configuration change.
func WithAutoAbort(abort bool) Option {
	return func(s *Simulator) { s.autoAbort = abort }
}

// WithClientID sets the client id the simulator uses for its own calls and
// for IO requests that name no client.
func WithClientID(id hal.ClientID) Option {
	return func(s *Simulator) { s.client = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// NewSimulator creates a simulator and starts its config change worker.
// Pass it to driver.Initialize before any device arrives.
func NewSimulator(driver *plugin.Driver, opts ...Option) *Simulator {
	s := &Simulator{
		driver:      driver,
		client:      1,
		cycleFrames: 512,
		listeners:   make(map[int]Listener),
		cycles:      make(map[hal.ObjectID]*cycle),
		starts:      make(map[hal.ObjectID]map[hal.ClientID]int),
		requests:    make(chan configRequest, 16),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With("component", "host")

	s.wg.Add(1)
	go s.configLoop()
	return s
}

// Subscribe registers fn for notifications and returns a function that
// removes it.
func (s *Simulator) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// PropertiesChanged forwards a notification to every listener.
func (s *Simulator) PropertiesChanged(objectID hal.ObjectID, addrs []hal.Address) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	n := Notification{ObjectID: objectID, Addresses: addrs}
	s.logger.Debug("properties changed", "object_id", objectID, "count", len(addrs))
	for _, l := range listeners {
		l(n)
	}
}

// RequestDeviceConfigurationChange queues the change. It is carried out
// later with the device's IO cycle paused.
func (s *Simulator) RequestDeviceConfigurationChange(deviceID hal.ObjectID, action uint64, info any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	case s.requests <- configRequest{deviceID: deviceID, action: action, info: info}:
		return nil
	}
}

func (s *Simulator) configLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case req := <-s.requests:
			s.applyConfigChange(req)
		}
	}
}

func (s *Simulator) applyConfigChange(req configRequest) {
	s.mu.Lock()
	c := s.cycles[req.deviceID]
	s.mu.Unlock()

	if c != nil {
		c.pause()
		defer c.resume()
	}

	var err error
	if s.autoAbort {
		err = s.driver.AbortDeviceConfigurationChange(req.deviceID, req.action, req.info)
		s.aborted.Add(1)
	} else {
		err = s.driver.PerformDeviceConfigurationChange(req.deviceID, req.action, req.info)
		s.performed.Add(1)
	}
	if err != nil {
		s.logger.Warn("config change failed", "device_id", req.deviceID, "action", req.action, "err", err)
	}
}

// Performed returns how many configuration changes were performed.
func (s *Simulator) Performed() int64 { return s.performed.Load() }

// Aborted returns how many configuration changes were aborted.
func (s *Simulator) Aborted() int64 { return s.aborted.Load() }

// Client returns the default client id.
func (s *Simulator) Client() hal.ClientID { return s.client }

// Start starts IO on deviceID for client. Every call counts; the cycle runs
// while any client holds a start.
func (s *Simulator) Start(deviceID hal.ObjectID, client hal.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.driver.StartIO(deviceID, client); err != nil {
		return err
	}
	if _, ok := s.cycles[deviceID]; !ok {
		c, err := s.newCycle(deviceID)
		if err != nil {
			s.driver.StopIO(deviceID, client)
			return err
		}
		s.cycles[deviceID] = c
		go c.run()
		s.logger.Info("io cycle started", "device_id", deviceID, "frames", s.cycleFrames)
	}

	clients := s.starts[deviceID]
	if clients == nil {
		clients = make(map[hal.ClientID]int)
		s.starts[deviceID] = clients
	}
	clients[client]++
	return nil
}

// Stop releases one start that client holds on deviceID. The cycle ends
// with the last start.
func (s *Simulator) Stop(deviceID hal.ObjectID, client hal.ClientID) error {
	s.mu.Lock()
	clients := s.starts[deviceID]
	if clients[client] == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: device %d client %d", ErrNotRunning, deviceID, client)
	}
	clients[client]--
	if clients[client] == 0 {
		delete(clients, client)
	}
	var c *cycle
	if len(clients) == 0 {
		delete(s.starts, deviceID)
		c = s.cycles[deviceID]
		delete(s.cycles, deviceID)
	}
	s.mu.Unlock()

	if c != nil {
		c.halt()
		s.logger.Info("io cycle stopped", "device_id", deviceID, "cycles", c.count.Load())
	}
	return s.driver.StopIO(deviceID, client)
}

// Starts returns how many starts client holds on deviceID.
func (s *Simulator) Starts(deviceID hal.ObjectID, client hal.ClientID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[deviceID][client]
}

// Running reports whether deviceID has a running cycle.
func (s *Simulator) Running(deviceID hal.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cycles[deviceID]
	return ok
}

// Cycles returns how many IO cycles deviceID has completed, or 0.
func (s *Simulator) Cycles(deviceID hal.ObjectID) uint64 {
	s.mu.Lock()
	c, ok := s.cycles[deviceID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return c.count.Load()
}

// Close stops every cycle and the config worker.
func (s *Simulator) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	type hold struct {
		device hal.ObjectID
		client hal.ClientID
		n      int
	}
	var holds []hold
	for id, clients := range s.starts {
		for client, n := range clients {
			holds = append(holds, hold{id, client, n})
		}
	}
	s.mu.Unlock()

	for _, h := range holds {
		for i := 0; i < h.n; i++ {
			if err := s.Stop(h.device, h.client); err != nil {
				s.logger.Warn("stop failed", "device_id", h.device, "client", h.client, "err", err)
			}
		}
	}
	close(s.done)
	s.wg.Wait()
}

// cycle drives one device. Each iteration runs under mu so a config
// change can pause it between iterations.
type cycle struct {
	sim          *Simulator
	deviceID     hal.ObjectID
	inputStream  hal.ObjectID
	outputStream hal.ObjectID
	buf          []byte

	mu    sync.Mutex
	stop  chan struct{}
	done  chan struct{}
	count atomic.Uint64
}

func (s *Simulator) newCycle(deviceID hal.ObjectID) (*cycle, error) {
	streams, err := s.driver.GetProperty(deviceID, s.client, hal.GlobalAddr(hal.PropStreams), nil)
	if err != nil {
		return nil, err
	}
	ids := hal.DecodeObjectIDs(streams)
	if len(ids) != 2 {
		return nil, fmt.Errorf("%w: device %d has %d streams", hal.ErrUnspecified, deviceID, len(ids))
	}
	return &cycle{
		sim:          s,
		deviceID:     deviceID,
		inputStream:  ids[0],
		outputStream: ids[1],
		buf:          make([]byte, int(s.cycleFrames)*hardware.FrameSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

func (c *cycle) pause()  { c.mu.Lock() }
func (c *cycle) resume() { c.mu.Unlock() }

func (c *cycle) halt() {
	close(c.stop)
	<-c.done
}

func (c *cycle) rate() float64 {
	data, err := c.sim.driver.GetProperty(c.deviceID, c.sim.client, hal.GlobalAddr(hal.PropNominalSampleRate), nil)
	if err != nil {
		return hardware.DefaultSampleRate
	}
	v, err := hal.Float64(data)
	if err != nil || v <= 0 {
		return hardware.DefaultSampleRate
	}
	return v
}

func (c *cycle) period(rate float64) time.Duration {
	return time.Duration(float64(c.sim.cycleFrames) / rate * float64(time.Second))
}

func (c *cycle) run() {
	defer close(c.done)

	rate := c.rate()
	ticker := time.NewTicker(c.period(rate))
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		next, err := c.step()
		c.mu.Unlock()
		if err != nil {
			c.sim.logger.Debug("io cycle failed", "device_id", c.deviceID, "err", err)
			continue
		}
		c.count.Add(1)
		if next != rate {
			rate = next
			ticker.Reset(c.period(rate))
		}
	}
}

// step runs one cycle: anchor the clock, read the input ring behind now
// and write it back to the output ring ahead of now.
func (c *cycle) step() (float64, error) {
	drv, client, frames := c.sim.driver, c.sim.client, c.sim.cycleFrames

	rate := c.rate()
	sampleTime, hostTime, _, err := drv.GetZeroTimeStamp(c.deviceID, client)
	if err != nil {
		return rate, err
	}
	elapsed := time.Duration(time.Now().UnixNano() - int64(hostTime))
	now := sampleTime + elapsed.Seconds()*rate
	info := device.IOCycleInfo{
		CurrentTime: now,
		InputTime:   now - float64(frames),
		OutputTime:  now + float64(frames),
	}

	ops := []struct {
		op     device.IOOperation
		stream hal.ObjectID
	}{
		{device.IOReadInput, c.inputStream},
		{device.IOWriteMix, c.outputStream},
	}
	for _, o := range ops {
		willDo, _, err := drv.WillDoIOOperation(c.deviceID, client, o.op)
		if err != nil {
			return rate, err
		}
		if !willDo {
			continue
		}
		if err := drv.BeginIOOperation(c.deviceID, client, o.op, frames); err != nil {
			return rate, err
		}
		if err := drv.DoIOOperation(c.deviceID, o.stream, client, o.op, frames, info, c.buf); err != nil {
			return rate, err
		}
		if err := drv.EndIOOperation(c.deviceID, client, o.op, frames); err != nil {
			return rate, err
		}
	}
	return rate, nil
}

var _ device.Host = (*Simulator)(nil)
