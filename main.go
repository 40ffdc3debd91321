package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wingside/loyalty-engine/internal/app"
	"github.com/wingside/loyalty-engine/internal/config"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("starting loyalty engine...")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logrus.SetLevel(cfg.LogrusLevel())

	ctx := context.Background()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}
