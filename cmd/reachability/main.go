package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/toska-mesh/reachability/internal/api"
	"github.com/toska-mesh/reachability/internal/config"
	"github.com/toska-mesh/reachability/internal/consul"
	"github.com/toska-mesh/reachability/internal/grpcstatus"
	"github.com/toska-mesh/reachability/internal/messaging"
	"github.com/toska-mesh/reachability/internal/metrics"
	"github.com/toska-mesh/reachability/internal/reachability"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) (err error) {
	configPath := flag.String("config", envOr("REACHABILITY_CONFIG", "reachability.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	config.ApplyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	targetURL, err := cfg.Monitor.TargetURL()
	if err != nil {
		return err
	}
	target := targetURL.String()

	// RabbitMQ publisher (no-op if URL is empty).
	publisher, err := messaging.NewPublisher(cfg.RabbitURL, logger)
	if err != nil {
		return fmt.Errorf("rabbitmq publisher: %w", err)
	}
	defer func() { err = multierr.Append(err, publisher.Close()) }()

	// Prometheus.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(promRegistry, target)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// gRPC health service mirrors reachability.
	grpcServer := grpc.NewServer()
	healthSvc := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSvc)
	reflection.Register(grpcServer)
	grpcReporter := grpcstatus.NewReporter(healthSvc, cfg.ServiceName, logger)

	history := reachability.NewHistory(cfg.HistorySize)
	stream := api.NewStream(logger)

	opts := []reachability.Option{
		reachability.WithNotifier(history),
		reachability.WithNotifier(collector),
		reachability.WithNotifier(stream),
		reachability.WithNotifier(grpcReporter),
		reachability.WithNotifier(messaging.NewTransitionNotifier(publisher, cfg.ServiceID, target, logger)),
	}

	// Consul registration (skipped if no address is configured).
	if cfg.ConsulAddr != "" {
		registry, regErr := consul.NewRegistry(cfg.ConsulAddr, logger)
		if regErr != nil {
			return fmt.Errorf("consul registry: %w", regErr)
		}
		if regErr := registry.Register(registration(cfg, target)); regErr != nil {
			return regErr
		}
		defer func() { err = multierr.Append(err, registry.Deregister(cfg.ServiceID)) }()

		opts = append(opts, reachability.WithNotifier(consul.NewReporter(registry, cfg.ServiceID, logger)))
	}

	monitor, err := reachability.NewMonitor(cfg.Monitor, nil, logger, opts...)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(monitor, api.Options{
		History:    history,
		Stream:     stream,
		Metrics:    promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORS:       cfg.CORS,
		ResetLimit: cfg.ResetLimit,
		OnReset: func(ctx context.Context, requestedBy string) {
			collector.ObserveReset()
			if err := messaging.PublishReset(ctx, publisher, cfg.ServiceID, target, requestedBy); err != nil {
				logger.Warn("publish reset failed", "error", err)
			}
		},
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Attach()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("reachability http server starting",
			"port", cfg.Port,
			"target", target,
			"interval", cfg.Monitor.Interval,
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("reachability grpc server starting", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		monitor.Close()
		grpcReporter.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func registration(cfg config.Config, target string) consul.Registration {
	port, _ := strconv.Atoi(cfg.Port) // checked by Config.Validate
	address := os.Getenv("REACHABILITY_ADVERTISE_ADDRESS")
	if address == "" {
		address, _ = os.Hostname()
	}

	// A bounded backoff keeps reporting within the TTL; an unbounded one lets
	// the check go critical while the target is down.
	checkInterval := cfg.Monitor.Interval
	if cfg.Monitor.MaxInterval > 0 {
		checkInterval = cfg.Monitor.MaxInterval
	}

	return consul.Registration{
		ServiceName: cfg.ServiceName,
		ServiceID:   cfg.ServiceID,
		Address:     address,
		Port:        port,
		Metadata: map[string]string{
			"target":    target,
			"grpc_port": cfg.GRPCPort,
		},
		CheckInterval:           checkInterval,
		DeregisterCriticalAfter: cfg.ConsulDeregisterAfter,
	}
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
