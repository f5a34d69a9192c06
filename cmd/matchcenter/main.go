package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/api"
	"github.com/sawdustofmind/matchcenter/internal/config"
	"github.com/sawdustofmind/matchcenter/internal/gateway"
	"github.com/sawdustofmind/matchcenter/internal/generator"
	"github.com/sawdustofmind/matchcenter/internal/hub"
	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/matches"
	"github.com/sawdustofmind/matchcenter/internal/registry"
	"github.com/sawdustofmind/matchcenter/internal/simulator"
	"github.com/sawdustofmind/matchcenter/internal/store"
)

const shutdownTimeout = 10 * time.Second

func openStore(cfg config.Config) (store.Store, io.Closer, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), io.NopCloser(nil), nil
	}
	s, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

func openRegistry(cfg config.Config) (registry.SetStore, io.Closer, error) {
	if cfg.RegistryBackend == config.BackendMemory {
		log.Warn("Using in-memory subscription registry")
		return registry.NewMemoryStore(), io.NopCloser(nil), nil
	}
	s, err := registry.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Error("Failed to close resource", zap.Error(err))
		}
	}
}

func run(cfg config.Config) int {
	port := flag.String("port", cfg.Port, "Port to listen on")
	redisAddr := flag.String("redis", cfg.RedisAddr, "Redis address")
	flag.Parse()
	cfg.Port, cfg.RedisAddr = *port, *redisAddr

	log.Info("Starting Match Center",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreBackend),
		zap.String("registry", cfg.RegistryBackend),
		zap.String("redis_addr", cfg.RedisAddr),
	)

	st, stCloser, err := openStore(cfg)
	if err != nil {
		log.Error("Failed to open store", zap.Error(err))
		return 1
	}
	setStore, regCloser, err := openRegistry(cfg)
	if err != nil {
		log.Error("Failed to open subscription registry", zap.Error(err))
		closeAll(stCloser)
		return 1
	}
	defer closeAll(regCloser, stCloser)

	reg := registry.New(setStore, cfg.SocketTTL)
	gw := gateway.New(reg, cfg.AllowedOrigins)
	streams := hub.NewStreams(cfg.StreamBuffer)
	h := hub.New(gw, streams)
	svc := matches.NewService(st, h)

	gen := generator.NewRandom()
	if cfg.GeneratorSeed != 0 {
		gen = generator.New(cfg.GeneratorSeed)
	}
	engine := simulator.NewEngine(st, svc, h, gen, clockwork.NewRealClock(), simulator.Config{
		TickInterval:   cfg.TickInterval,
		MinuteDuration: cfg.MinuteDuration,
		Workers:        cfg.TickWorkers,
		MatchTimeout:   cfg.MatchTimeout,
	})

	server := api.NewServer(api.Options{
		Matches:        svc,
		Simulator:      engine,
		Streams:        streams,
		Presence:       reg,
		WebSocket:      gw,
		AllowedOrigins: cfg.AllowedOrigins,
		KeepAlive:      cfg.SSEKeepAlive,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Long-lived streams end with the process context.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          zap.NewStdLog(log.L()),
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(ctx)
	}()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Match center listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping server")
	case <-errChan:
		code = 1
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down server", zap.Error(err))
	}
	if err := <-engineDone; err != nil {
		log.Error("Simulation driver error", zap.Error(err))
		code = 1
	}

	log.Info("Match center stopped")
	return code
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize global logger
	if err := log.Init(cfg.Development); err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	code := run(cfg)
	_ = log.Sync()
	os.Exit(code)
}
