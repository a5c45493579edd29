package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finviz/internal/amqp"
	"finviz/internal/backend"
	"finviz/internal/cache"
	"finviz/internal/cli"
	"finviz/internal/core"
	"finviz/internal/events"
	apphttp "finviz/internal/http"
	"finviz/internal/log"
	"finviz/internal/ports"
	"finviz/internal/services"
	"finviz/internal/views"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 30 * time.Second
	cacheCleanInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	bus := events.NewBus()
	dash := views.NewDashboard(views.ListerFunc(res.Store.ListByDateDesc), views.Options{})

	notifiers := []ports.Notifier{dash, bus}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exports will rely on the periodic sweep", log.FieldError, err)
		} else {
			notifiers = append(notifiers, amqpClient)
			logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
		}
	}
	svc := services.NewTransactionService(res.Store, notifiers...)

	order, err := core.ParseSortOrder(cfg.ChartOrder)
	if err != nil {
		logger.Error("Invalid chart order", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(svc, dash, bus, apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ChartOrder:         order,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting finviz server", "port", cfg.Port, "backend", backendCfg.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewManager(dash.Caches()...).Run(gctx, cacheCleanInterval)
	})
	g.Go(func() error {
		return srv.RateLimiter().Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		bus.Close()
		if cerr := svc.Close(); cerr != nil {
			logger.Error("Failed to close service", log.FieldError, cerr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
