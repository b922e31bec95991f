package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/tuning-core/internal/metrics"
	"github.com/GoSim-25-26J-441/tuning-core/internal/storage"
	"github.com/GoSim-25-26J-441/tuning-core/internal/tund"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/config"
	"github.com/GoSim-25-26J-441/tuning-core/pkg/logger"
)

func main() {
	var (
		configPath string
		envFile    string
		grpcAddr   string
		httpAddr   string
		logLevel   string
		logFormat  string
		dbPath     string
		sessionTTL string
		notifyURL  string
	)

	flag.StringVar(&configPath, "config", "", "daemon YAML config (defaults apply when empty)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with DSICE_* overrides")
	flag.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address (empty disables gRPC)")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address (empty disables HTTP)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&logFormat, "log-format", "json", "log format (json, text)")
	flag.StringVar(&dbPath, "db", "", "SQLite database path (empty disables persistence)")
	flag.StringVar(&sessionTTL, "session-ttl", "30m", "idle time after which a session is dropped")
	flag.StringVar(&notifyURL, "notify-url", "", "default webhook for finished sessions")
	flag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", envFile, err)
			os.Exit(1)
		}
	}

	cfg := config.DefaultDaemon()
	if configPath != "" {
		loaded, err := config.LoadDaemon(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// explicit flags win over the file, DSICE_* variables over both
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc-addr":
			cfg.GRPCAddr = grpcAddr
		case "http-addr":
			cfg.HTTPAddr = httpAddr
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		case "db":
			cfg.DBPath = dbPath
		case "session-ttl":
			cfg.SessionTTL = sessionTTL
		case "notify-url":
			cfg.NotifyURL = notifyURL
		}
	})
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetDefault(logger.NewFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("daemon stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Daemon) error {
	ttl, err := cfg.GetSessionTTL()
	if err != nil {
		return err
	}

	notifier := tund.NewNotifier()
	opts := []tund.StoreOption{tund.WithNotifier(notifier, cfg.NotifyURL)}
	if cfg.Metrics {
		opts = append(opts, tund.WithInstruments(metrics.NewInstruments()))
	}
	if cfg.DBPath != "" {
		db, err := storage.OpenSqlite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, tund.WithStorage(db))
		logger.Info("persistence enabled", "db_path", cfg.DBPath)
	}
	store := tund.NewSessionStore(ttl, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		// TODO: add TLS credentials before exposing the gRPC port beyond localhost.
		grpcServer = grpc.NewServer()
		tund.RegisterTuningServiceServer(grpcServer, tund.NewTuningGRPCServer(store))
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errs <- fmt.Errorf("gRPC server: %w", err)
				cancel()
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           tund.NewHTTPServer(store).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("HTTP server: %w", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
	notifier.Wait()

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
