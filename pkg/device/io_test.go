package device

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
)

func TestStartStopIO_RefCounted(t *testing.T) {
	f := newFixture(t)

	for n := 1; n <= 4; n++ {
		startsBefore, stopsBefore := f.channel.StartCalls(), f.channel.StopCalls()

		// Random interleaving that never stops more than it started.
		started, stopped := 0, 0
		for started < n || stopped < n {
			if started < n && (stopped == started || rand.Intn(2) == 0) {
				if err := f.dev.StartIO(hal.ClientID(started)); err != nil {
					t.Fatalf("StartIO() error = %v", err)
				}
				started++
			} else {
				if err := f.dev.StopIO(hal.ClientID(stopped)); err != nil {
					t.Fatalf("StopIO() error = %v", err)
				}
				stopped++
			}
		}

		starts := f.channel.StartCalls() - startsBefore
		stops := f.channel.StopCalls() - stopsBefore
		if starts < 1 || starts != stops {
			t.Errorf("N=%d: hardware starts=%d stops=%d", n, starts, stops)
		}
		if f.dev.StartCount() != 0 {
			t.Errorf("N=%d: StartCount() = %d", n, f.dev.StartCount())
		}
	}
}

func TestStartStopIO_NestedStartsOnce(t *testing.T) {
	f := newFixture(t)
	const n = 5
	for i := 0; i < n; i++ {
		if err := f.dev.StartIO(hal.ClientID(i)); err != nil {
			t.Fatalf("StartIO() error = %v", err)
		}
	}
	for i := 0; i < n; i++ {
		if err := f.dev.StopIO(hal.ClientID(i)); err != nil {
			t.Fatalf("StopIO() error = %v", err)
		}
	}
	if f.channel.StartCalls() != 1 || f.channel.StopCalls() != 1 {
		t.Errorf("starts=%d stops=%d, want 1 and 1", f.channel.StartCalls(), f.channel.StopCalls())
	}
	if f.channel.IsRunning() {
		t.Error("hardware should be stopped")
	}
}

func TestStartStopIO_Concurrent(t *testing.T) {
	f := newFixture(t)
	const clients = 32

	// Hold one start so the count never touches zero mid-test.
	if err := f.dev.StartIO(0); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 1; i <= clients; i++ {
		wg.Add(1)
		go func(c hal.ClientID) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := f.dev.StartIO(c); err != nil {
					t.Errorf("StartIO() error = %v", err)
					return
				}
				if err := f.dev.StopIO(c); err != nil {
					t.Errorf("StopIO() error = %v", err)
					return
				}
			}
		}(hal.ClientID(i))
	}
	wg.Wait()
	if err := f.dev.StopIO(0); err != nil {
		t.Fatal(err)
	}

	if f.channel.StartCalls() != 1 || f.channel.StopCalls() != 1 {
		t.Errorf("starts=%d stops=%d, want 1 and 1", f.channel.StartCalls(), f.channel.StopCalls())
	}
}

func TestStartIO_HardwareFailure(t *testing.T) {
	f := newFixture(t)
	f.channel.StartHardwareFunc = func() error { return errors.New("device busy") }

	err := f.dev.StartIO(1)
	if !errors.Is(err, hal.ErrHardware) {
		t.Fatalf("StartIO() = %v, want ErrHardware", err)
	}
	if f.dev.StartCount() != 0 {
		t.Errorf("StartCount() = %d after failed start", f.dev.StartCount())
	}

	f.channel.StartHardwareFunc = nil
	if err := f.dev.StartIO(1); err != nil {
		t.Fatalf("StartIO() retry error = %v", err)
	}
	f.dev.StopIO(1)
}

func TestStartIO_Overflow(t *testing.T) {
	f := newFixture(t)
	if err := f.dev.StartIO(1); err != nil {
		t.Fatal(err)
	}
	f.dev.stateMu.Lock()
	f.dev.startCount = math.MaxUint64
	f.dev.stateMu.Unlock()

	if err := f.dev.StartIO(1); !errors.Is(err, hal.ErrIllegalOperation) {
		t.Errorf("StartIO() at max = %v, want ErrIllegalOperation", err)
	}

	f.dev.stateMu.Lock()
	f.dev.startCount = 1
	f.dev.stateMu.Unlock()
	f.dev.StopIO(1)
}

func TestStopIO_NotStarted(t *testing.T) {
	f := newFixture(t)
	if err := f.dev.StopIO(1); !errors.Is(err, hal.ErrIllegalOperation) {
		t.Errorf("StopIO() = %v, want ErrIllegalOperation", err)
	}
	if f.channel.StopCalls() != 0 {
		t.Errorf("StopCalls() = %d", f.channel.StopCalls())
	}
}

func TestStopIO_HardwareFailureStillDecrements(t *testing.T) {
	f := newFixture(t)
	f.dev.StartIO(1)
	f.channel.StopHardwareFunc = func() error { return errors.New("stuck") }

	if err := f.dev.StopIO(1); !errors.Is(err, hal.ErrHardware) {
		t.Errorf("StopIO() = %v, want ErrHardware", err)
	}
	if f.dev.StartCount() != 0 {
		t.Errorf("StartCount() = %d", f.dev.StartCount())
	}
	f.channel.StopHardwareFunc = nil
}

func TestGetZeroTimeStamp_NeverTorn(t *testing.T) {
	f := newFixture(t)
	status := f.channel.Status()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for k := uint64(1); ; k++ {
			select {
			case <-stop:
				return
			default:
			}
			status.Publish(k*64, k*1000+7)
		}
	}()

	for i := 0; i < 20000; i++ {
		st, ht, seed, err := f.dev.GetZeroTimeStamp(1)
		if err != nil {
			// Only possible when the bounded retry ran out.
			if !errors.Is(err, hardware.ErrTimeStampUnstable) {
				t.Fatalf("GetZeroTimeStamp() error = %v", err)
			}
			continue
		}
		if seed != 1 {
			t.Fatalf("seed = %d", seed)
		}
		if st == 0 && ht == 0 {
			continue
		}
		k := uint64(st) / 64
		if uint64(st) != k*64 || ht != k*1000+7 {
			t.Fatalf("torn pair: sample=%v host=%d", st, ht)
		}
	}
	close(stop)
	<-done
}

func TestGetZeroTimeStamp_Unstable(t *testing.T) {
	f := newFixture(t)
	f.dev.cfg.TimeStampRetries = 8

	// An odd sequence word means the writer never finished.
	raw, err := f.channel.MapBuffer(hardware.BufferStatus)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] |= 1

	_, _, _, err = f.dev.GetZeroTimeStamp(1)
	if !errors.Is(err, hardware.ErrTimeStampUnstable) || !errors.Is(err, hal.ErrHardware) {
		t.Errorf("GetZeroTimeStamp() = %v, want ErrTimeStampUnstable", err)
	}
	raw[0] &^= 1
}

func TestWillDoIOOperation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		op     IOOperation
		willDo bool
	}{
		{IOReadInput, true},
		{IOWriteMix, true},
		{IOThread, false},
		{IOCycle, false},
		{IOConvertInput, false},
		{IOProcessInput, false},
		{IOProcessOutput, false},
		{IOMixOutput, false},
		{IOProcessMix, false},
		{IOConvertMix, false},
	}
	for _, tt := range tests {
		willDo, inPlace := f.dev.WillDoIOOperation(tt.op)
		if willDo != tt.willDo || !inPlace {
			t.Errorf("WillDoIOOperation(%s) = %v, %v", tt.op, willDo, inPlace)
		}
	}
}

func TestDoIOOperation_ReadAndWrite(t *testing.T) {
	f := newFixture(t)
	ids := f.dev.IDs()

	input, err := f.channel.MapBuffer(hardware.BufferInput)
	if err != nil {
		t.Fatal(err)
	}
	copy(input, pattern(64))

	buf := make([]byte, 16*hardware.FrameSize)
	cycle := IOCycleInfo{InputTime: 60, OutputTime: -3}
	if err := f.dev.DoIOOperation(ids.InputStream, IOReadInput, 16, cycle, buf); err != nil {
		t.Fatalf("DoIOOperation(read) error = %v", err)
	}
	if buf[0] != 60 || buf[4*hardware.FrameSize] != 0 || buf[15*hardware.FrameSize] != 11 {
		t.Errorf("read frames = %v", buf[:8])
	}

	out := bytes.Repeat([]byte{0x5A}, 4*hardware.FrameSize)
	if err := f.dev.DoIOOperation(ids.OutputStream, IOWriteMix, 4, cycle, out); err != nil {
		t.Fatalf("DoIOOperation(write) error = %v", err)
	}
	output, err := f.channel.MapBuffer(hardware.BufferOutput)
	if err != nil {
		t.Fatal(err)
	}
	if output[61*hardware.FrameSize] != 0x5A || output[0] != 0x5A || output[hardware.FrameSize] != 0 {
		t.Error("write did not land at the wrapped offset")
	}
}

func TestDoIOOperation_Errors(t *testing.T) {
	f := newFixture(t)
	ids := f.dev.IDs()

	err := f.dev.DoIOOperation(ids.InputStream, IOReadInput, 8, IOCycleInfo{}, make([]byte, 7*hardware.FrameSize))
	if !errors.Is(err, hal.ErrBadPropertySize) {
		t.Errorf("short buffer = %v, want ErrBadPropertySize", err)
	}
	err = f.dev.DoIOOperation(ids.OutputStream, IOReadInput, 8, IOCycleInfo{}, make([]byte, 8*hardware.FrameSize))
	if !errors.Is(err, hal.ErrBadObject) {
		t.Errorf("wrong stream = %v, want ErrBadObject", err)
	}
	err = f.dev.DoIOOperation(ids.InputStream, IOReadInput, 65, IOCycleInfo{}, make([]byte, 65*hardware.FrameSize))
	if !errors.Is(err, hal.ErrIllegalOperation) {
		t.Errorf("oversized transfer = %v, want ErrIllegalOperation", err)
	}
	if err := f.dev.DoIOOperation(ids.InputStream, IOCycle, 8, IOCycleInfo{}, make([]byte, 8*hardware.FrameSize)); err != nil {
		t.Errorf("unhandled op = %v, want nil", err)
	}
}
