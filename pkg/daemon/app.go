// Package daemon assembles the driver, the in-process host and the HTTP
// surfaces into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-syncvoice/internal/config"
	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/dispatch"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/host"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
	"github.com/teslashibe/go-syncvoice/pkg/plugin"
	"github.com/teslashibe/go-syncvoice/pkg/remote"
	"github.com/teslashibe/go-syncvoice/pkg/web"
)

// ErrNotInitialized is returned by Run before Init.
var ErrNotInitialized = errors.New("daemon: not initialized")

// App is the daemon. It manages all components and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	// Driver core
	destroy  *dispatch.Queue
	registry *objectmap.Registry
	driver   *plugin.Driver
	bus      *hardware.MockBus

	// Host side
	sim    *host.Simulator
	web    *web.Server
	remote *remote.Server

	unsubscribe []func()
	wg          sync.WaitGroup
	shutdown    sync.Once
}

// New creates a daemon for cfg. Nothing runs until Init and Run.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config: cfg,
		logger: log.Or(logger).With("component", "daemon"),
	}, nil
}

// PluginConfig maps the daemon configuration onto the plug-in.
func PluginConfig(cfg config.Config) plugin.Config {
	pc := plugin.DefaultConfig()
	pc.Manufacturer = cfg.Manufacturer
	pc.Device.Name = cfg.DeviceName
	pc.Device.Manufacturer = cfg.Manufacturer
	pc.Device.TimeStampRetries = cfg.TimeStampRetries
	return pc
}

// Init builds the component graph.
func (a *App) Init() error {
	a.destroy = dispatch.New("destroy", a.logger)
	a.registry = objectmap.New(objectmap.WithDestroyQueue(a.destroy), objectmap.WithLogger(a.logger))

	driver, err := plugin.NewDriver(a.registry, PluginConfig(a.config), a.logger)
	if err != nil {
		a.abortInit()
		return fmt.Errorf("driver: %w", err)
	}
	a.driver = driver

	a.sim = host.NewSimulator(driver,
		host.WithCycleFrames(a.config.IOCycleFrames),
		host.WithLogger(a.logger),
	)
	if err := driver.Initialize(a.sim); err != nil {
		a.abortInit()
		return fmt.Errorf("driver init: %w", err)
	}

	a.web = web.NewServer(a.config.HTTPAddr, driver, a.sim, a.logger)
	a.remote = remote.NewServer(driver, a.sim, a.logger)
	a.remote.RegisterRoutes(a.web.App())
	a.remote.RegisterAPIRoutes(a.web.App().Group("/api"))

	a.unsubscribe = append(a.unsubscribe,
		a.sim.Subscribe(a.web.Notify),
		a.sim.Subscribe(func(n host.Notification) {
			a.remote.Notify(n.ObjectID, n.Addresses)
		}),
	)

	a.bus = hardware.NewMockBus(a.config.Devices + 1)
	a.logger.Info("initialized",
		"devices", a.config.Devices,
		"sample_rate", a.config.SampleRate,
		"ring_buffer_frames", a.config.RingBufferFrames,
	)
	return nil
}

// abortInit releases what a failed Init built so far.
func (a *App) abortInit() {
	if a.sim != nil {
		a.sim.Close()
		a.sim = nil
	}
	if a.driver != nil {
		a.driver.Close()
		a.driver = nil
	}
	if a.destroy != nil {
		a.destroy.Close()
	}
}

// channelOptions returns the simulated hardware settings for device i.
func (a *App) channelOptions(i int) []hardware.MockOption {
	opts := []hardware.MockOption{
		hardware.WithRingBufferFrames(a.config.RingBufferFrames),
		hardware.WithSampleRate(a.config.SampleRate),
		hardware.WithLogger(a.logger),
	}
	if a.config.InputWAV != "" {
		opts = append(opts, hardware.WithInputWAV(a.config.InputWAV))
	}
	if a.config.OutputWAV != "" {
		path := a.config.OutputWAV
		if i > 0 {
			path = fmt.Sprintf("%s.%d", path, i)
		}
		opts = append(opts, hardware.WithOutputWAV(path))
	}
	return opts
}

// Run plugs in the simulated hardware and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.driver == nil {
		return ErrNotInitialized
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.driver.Run(ctx, a.bus); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("hot-plug loop ended", "err", err)
		}
	}()

	for i := 0; i < a.config.Devices; i++ {
		a.bus.Arrive(hardware.NewMockChannel(a.channelOptions(i)...))
	}

	errc := make(chan error, 1)
	go func() {
		errc <- a.web.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	}
}

// Driver returns the driver, or nil before Init.
func (a *App) Driver() *plugin.Driver { return a.driver }

// Bus returns the simulated hot-plug bus, or nil before Init.
func (a *App) Bus() *hardware.MockBus { return a.bus }

// Shutdown stops the HTTP server, every IO cycle and every device.
func (a *App) Shutdown() {
	a.shutdown.Do(func() {
		if a.driver == nil {
			return
		}
		a.logger.Info("shutting down")
		for _, fn := range a.unsubscribe {
			fn()
		}
		if err := a.web.Shutdown(); err != nil {
			a.logger.Warn("http shutdown", "err", err)
		}
		a.bus.Close()
		a.wg.Wait()
		a.sim.Close()
		a.driver.Close()
		a.destroy.Close()
	})
}
