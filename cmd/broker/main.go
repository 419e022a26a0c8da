// Command broker runs the SMQ message broker: a pub/sub and durable
// queue server speaking either the native SMQ wire protocol or MQTT
// 3.1.1, configured entirely from a YAML file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sptk/smq/broker"
	"github.com/sptk/smq/config"
	"github.com/sptk/smq/hook"
	"github.com/sptk/smq/persist"
	"github.com/sptk/smq/pkg/logger"
	"github.com/sptk/smq/session"
)

func main() {
	os.Exit(run())
}

// sessionStoreFor builds the session registry's backing Store per
// config.SessionConfig.Backend. "pebble" gives the registry a durable,
// embedded store so a reconnecting client can still Resume after the
// broker process itself restarts; "memory" (the default) keeps the
// registry only for the lifetime of the process.
func sessionStoreFor(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "pebble":
		return session.NewPebbleStore(session.PebbleStoreConfig{Path: cfg.PebbleDir})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func run() int {
	configPath := flag.String("config", "broker.yaml", "path to the broker's YAML configuration file")
	metricsAddr := flag.String("metrics-address", "", "address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
	logFile := flag.String("log-file", "", "path to a log file; stderr if empty")
	flag.Parse()

	writer := os.Stderr
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "broker: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		writer = f
	}
	log := logger.NewSlogLogger(slog.LevelInfo, writer)
	return runWithLogger(*configPath, *metricsAddr, *logFile, log)
}

func runWithLogger(configPath, metricsAddr, logFile string, log *logger.SlogLogger) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("failed to load configuration", "path", configPath, "err", err)
		return 1
	}

	var opts []broker.Option
	opts = append(opts, broker.WithLogger(log))

	if cfg.Store.Root != "" {
		store, err := persist.Open(cfg.Store.Root, cfg.Store.BucketSize)
		if err != nil {
			log.Error("failed to open persistent store", "root", cfg.Store.Root, "err", err)
			return 1
		}
		opts = append(opts, broker.WithStore(store))
	}

	sessionStore, err := sessionStoreFor(cfg.Session)
	if err != nil {
		log.Error("failed to open session store", "backend", cfg.Session.Backend, "err", err)
		return 1
	}
	sessions := session.NewManager(session.ManagerConfig{
		Store:               sessionStore,
		ExpiryCheckInterval: 30 * time.Second,
	})
	opts = append(opts, broker.WithSessions(sessions))

	if cfg.RateLimit.Enabled {
		window := time.Duration(cfg.RateLimit.WindowMS) * time.Millisecond
		opts = append(opts, broker.WithHook(hook.NewRateLimitHook(cfg.RateLimit.MaxRate, window)))
	}

	b, err := broker.New(cfg, opts...)
	if err != nil {
		log.Error("failed to build broker", "err", err)
		return 1
	}

	if err := b.Start(); err != nil {
		log.Error("failed to start broker", "err", err)
		return 2
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "err", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					log.Error("failed to reopen log file", "err", err)
					continue
				}
				log.SetOutput(f)
				log.Info("reopened log file", "path", logFile)
			}
		case syscall.SIGINT, syscall.SIGTERM:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := b.Stop(ctx)
			cancel()
			if metricsSrv != nil {
				_ = metricsSrv.Close()
			}
			if err != nil {
				log.Error("error during shutdown", "err", err)
				return 2
			}
			return 0
		}
	}
	return 0
}
