package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"indexcheck-go/internal/app"
	"indexcheck-go/internal/config"
	"indexcheck-go/pkg/logger"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	application := &Application{}

	flag.StringVar(&application.configPath, "config", os.Getenv("INDEXCHECK_CONFIG"), "Configuration file path (env: INDEXCHECK_CONFIG)")
	flag.BoolVar(&application.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := application.Run(); err != nil {
		logger.GetLogger().WithError(err).Fatal("Application failed")
	}
}

func (application *Application) Run() error {
	cfg, err := config.NewManager().Load(application.configPath)
	if err != nil {
		return err
	}
	if application.debug {
		cfg.Logger.Level = "debug"
	}
	logger.SetLogger(logger.New(cfg.Logger))
	log := logger.GetLogger().WithField("component", "main")

	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithField("config", application.configPath).Info("Starting indexcheck server")
	return a.Run(ctx)
}
