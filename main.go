package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"fundcarry/config"
	"fundcarry/internal/dashboard"
	"fundcarry/internal/metrics"
	"fundcarry/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	command := "backtest"
	if flag.NArg() > 0 {
		command = strings.ToLower(flag.Arg(0))
	}

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"env":     config.AppEnvironment(),
		"command": command,
	}).Info("starting fundcarry")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	switch command {
	case "backtest":
		err = runBacktestCommand(ctx, cfg, log)
	case "collect":
		err = runCollect(ctx, cfg, log)
	default:
		log.WithFields(logger.Fields{"command": command}).Error("unknown command, expected backtest or collect")
		os.Exit(2)
	}

	logger.Report(log)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("interrupted")
			return
		}
		log.WithError(err).Error(command + " failed")
		os.Exit(1)
	}
	log.Info("fundcarry stopped")
}

// runBacktestCommand runs the sweep and, when the dashboard is enabled, keeps
// serving its results until the process is interrupted.
func runBacktestCommand(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	dashCfg := cfg.Dashboard
	if dashCfg.DiskPath == "" && cfg.Output.CSVPath != "" {
		dashCfg.DiskPath = filepath.Dir(cfg.Output.CSVPath)
	}
	srv, err := dashboard.NewServer(dashCfg, log)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	dashCtx, cancelDash := context.WithCancel(ctx)
	defer func() {
		cancelDash()
		wg.Wait()
	}()

	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(dashCtx, cfg.App.Name); err != nil {
				log.WithComponent("dashboard").WithError(err).Error("dashboard server stopped")
			}
		}()
	}

	runID, rows, err := runBacktest(ctx, cfg)
	if err != nil {
		return err
	}

	if srv == nil {
		return nil
	}
	srv.SetResults(runID, rows)
	log.WithFields(logger.Fields{"address": srv.Address(), "run_id": runID}).Info("serving results until interrupted")
	<-ctx.Done()
	return nil
}
