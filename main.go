// Package main implements the main entry point of a read-only mirror of a
// foreign process memory object graph
package main

import (
	"context"
	"errors"
	"os"

	mirror "github.com/retroenv/procmirror/internal/app"
	"github.com/retroenv/procmirror/internal/cli"
	"github.com/retroenv/procmirror/internal/config"
	"github.com/retroenv/procmirror/internal/fileprocessor"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logger.Fatal(err.Error())
	}
	cli.Apply(opts, &cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err.Error())
	}

	if opts.Dump != "" {
		if err := fileprocessor.ProcessDump(logger, cfg, opts); err != nil {
			logger.Error("Processing dump failed", log.Err(err))
			os.Exit(1)
		}
		return
	}

	m, err := mirror.New(logger, cfg, opts, nil, nil)
	if err != nil {
		logger.Fatal(err.Error())
	}
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror stopped", log.Err(err))
		os.Exit(1)
	}
	logger.Info("Mirror stopped")
}
