package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/seyi/mapserver/internal/config"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/wms"
)

const (
	configFlag     = "config"
	listenAddrFlag = "listen-addr"
	logLevelFlag   = "log-level"
	logJSONFlag    = "log-json"
	mapPathFlag    = "map-path"
	statePathFlag  = "state-path"
	maxSizeFlag    = "max-size"

	// gracefulShutdownTimeout is how long ServeWMS calls in flight get to
	// finish once a shutdown signal arrives.
	gracefulShutdownTimeout = 10 * time.Second
)

func app() *cli.App {
	return &cli.App{
		Name:  "mapservd",
		Usage: "OGC Web Map Service protocol frontend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: configFlag, Aliases: []string{"c"}, Usage: "path to a TOML config file"},
			&cli.StringFlag{Name: listenAddrFlag, Usage: "address to listen on, overrides config"},
			&cli.StringFlag{Name: logLevelFlag, Usage: "log level (debug, info, warn, error), overrides config"},
			&cli.BoolFlag{Name: logJSONFlag, Usage: "emit JSON-formatted logs"},
			&cli.StringFlag{Name: mapPathFlag, Usage: "path to the map configuration to serve, overrides config"},
			&cli.StringFlag{Name: statePathFlag, Usage: "path to the bolt state database, overrides config"},
			&cli.IntFlag{Name: maxSizeFlag, Usage: "maximum WIDTH/HEIGHT a GetMap request may request, overrides config"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log.Setup(cfg.LogLevel, cfg.LogJSON)
	ctx := log.WithField(context.Background(), "component", "mapservd")

	store, err := config.OpenStore(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	srv := &wms.Server{
		Maps:          newDemoMapSource(cfg.MapPath),
		Collaborators: newStubCollaborators(),
		Store:         store,
		MaxSize:       cfg.MaxSize,
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.G(ctx).WithField("addr", cfg.ListenAddr).Info("mapservd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		log.G(ctx).WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, gracefulShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadConfig reads the config file (if given) and layers CLI flag
// overrides on top, per the precedence defaults < file < flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if v := c.String(listenAddrFlag); v != "" {
		cfg.ListenAddr = v
	}
	if v := c.String(logLevelFlag); v != "" {
		cfg.LogLevel = v
	}
	if c.Bool(logJSONFlag) {
		cfg.LogJSON = true
	}
	if v := c.String(mapPathFlag); v != "" {
		cfg.MapPath = v
	}
	if v := c.String(statePathFlag); v != "" {
		cfg.StatePath = v
	}
	if v := c.Int(maxSizeFlag); v != 0 {
		cfg.MaxSize = v
	}
	return cfg, nil
}
