package main

import (
	"context"
	"errors"
	"os"

	"finviz/internal/amqp"
	"finviz/internal/backend"
	"finviz/internal/cli"
	"finviz/internal/core"
	"finviz/internal/log"
	"finviz/internal/services"
	"finviz/internal/sheets"
	gsheet "finviz/internal/sheets/google"
	memsheet "finviz/internal/sheets/memory"
	"finviz/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting finviz-worker")

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker reads what the server wrote, so it needs shared storage.
	if !backendCfg.Type.Persistent() {
		logger.Error("Export worker requires a persistent backend", "backend", backendCfg.Type)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("Export worker requires AMQP_URL")
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	var writer sheets.MonthlyWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = memsheet.New()
		logger.Info("Google Sheets disabled - exporting to memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	order, err := core.ParseSortOrder(cfg.ChartOrder)
	if err != nil {
		logger.Error("Invalid chart order", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewExportWorker(services.NewTransactionService(res.Store), writer, order)

	if err := w.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeInvalidations(gctx, w.HandleInvalidation)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.RunPeriodic(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	exports, last := w.Stats()
	logger.Info("Worker shutdown complete", "exports", exports, "last_export", last)
}
