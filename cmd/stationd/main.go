// Stationd is the ground station daemon. It keeps the per-satellite
// transponder files under the data root in step with the SatNOGS
// transmitter database and refreshes the TLE element sets alongside them.
//
// It loads configuration, starts the HTTP/WebSocket server, and runs the
// sync scheduler. With --once it performs a single sync and exits instead.
// Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/groundstation/internal/app"
	"github.com/large-farva/groundstation/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/groundstation/station.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		once       = pflag.Bool("once", false, "Run one sync and exit")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stdout, "stationd ", log.LstdFlags|log.Lmicroseconds)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := a.RunOnce(ctx); err != nil {
			logger.Fatalf("stationd: %v", err)
		}
		return
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("stationd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
