package main

import (
	"context"
	"fmt"
	"os"

	"github.com/08351ty/Google-Meet-Bot/config"
	"github.com/08351ty/Google-Meet-Bot/internal/app"
	"github.com/08351ty/Google-Meet-Bot/internal/cli"
	"github.com/08351ty/Google-Meet-Bot/internal/logging"
	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer application.Close()

	deps := &cli.Dependencies{
		App:    application,
		Config: cfg,
	}

	return cli.NewRootCmd(deps).Execute()
}
