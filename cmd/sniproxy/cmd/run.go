package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/munichmade/sniproxy/internal/backend"
	"github.com/munichmade/sniproxy/internal/config"
	"github.com/munichmade/sniproxy/internal/daemon"
	"github.com/munichmade/sniproxy/internal/logging"
	"github.com/munichmade/sniproxy/internal/proxy"
	"github.com/munichmade/sniproxy/internal/service"
)

// runProxy adopts the inherited listener and serves until shutdown. The
// working directory is the configuration root.
func runProxy() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining configuration root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	logging.Setup(logging.ParseLevel(cfg.Logging.Level), nil)
	logger := slog.Default()

	listener, err := service.InheritedListener()
	if err != nil {
		return err
	}

	handler := &proxy.Handler{
		Resolver:         &backend.Resolver{Root: root},
		HashedKeys:       cfg.HashedKeys,
		HandshakeTimeout: time.Duration(cfg.Timeouts.Handshake),
		Logger:           logger,
	}
	srv := proxy.NewServer(listener, handler, logger)

	shutdown := daemon.NewShutdownHandler()
	shutdown.Start()
	defer shutdown.Stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	logger.Info("sniproxy accepting connections",
		"addr", listener.Addr(),
		"root", root,
		"hashed_keys", cfg.HashedKeys,
	)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("accept loop failed: %w", err)
		}
		return nil

	case <-shutdown.Kill():
		logger.Info("exiting immediately on signal")
		return nil

	case <-shutdown.Drain():
		logger.Info("received SIGHUP, draining", "window", time.Duration(cfg.Timeouts.Drain))
		drained := make(chan struct{})
		go func() {
			srv.Drain(time.Duration(cfg.Timeouts.Drain))
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdown.Kill():
			logger.Info("second signal during drain, exiting immediately")
		}
		return nil
	}
}
