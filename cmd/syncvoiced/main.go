// syncvoiced runs the virtual audio driver with simulated hardware and
// serves its control API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-syncvoice/internal/config"
	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/daemon"
)

func main() {
	cfg := parseFlags()

	log.InitWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger := log.L()

	app, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "err", err)
		os.Exit(1)
	}
	if err := app.Init(); err != nil {
		logger.Error("initialization failed", "err", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error("runtime error", "err", err)
		app.Shutdown()
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() config.Config {
	configPath := flag.String("config", "", "Config file (yaml or toml)")
	addr := flag.String("addr", "", "HTTP listen address (overrides http_addr)")
	level := flag.String("log-level", "", "Log level: debug, info, warn, error")
	devices := flag.Int("devices", -1, "Number of simulated devices")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *devices >= 0 {
		cfg.Devices = *devices
	}
	return cfg
}
