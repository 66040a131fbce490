package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/DevByZero/flowlens-api/internal/ai"
	"github.com/DevByZero/flowlens-api/internal/broadcast"
	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/insight"
	"github.com/DevByZero/flowlens-api/internal/listener"
	"github.com/DevByZero/flowlens-api/internal/poller"
	"github.com/DevByZero/flowlens-api/internal/processor"
	"github.com/DevByZero/flowlens-api/internal/repository/postgres"
	myhttp "github.com/DevByZero/flowlens-api/internal/transport/http"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/DevByZero/flowlens-api/pkg/logger/slogpretty"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.MustLoad()
	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting flowlens-api", slog.String("env", cfg.Env))

	errChan := make(chan error, 1)

	db, err := postgres.NewDB(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to init db: %v", err)
	}
	defer func() {
		if err := db.DB().Close(); err != nil {
			log.Error("db close failed", sl.Err(err))
		}
	}()

	prRepo := postgres.NewPullRequestRepository(db.DB(), log)
	runRepo := postgres.NewPipelineRunRepository(db.DB(), log)
	insightRepo := postgres.NewInsightRepository(db.DB(), log)

	hub := broadcast.NewHub(log)
	generator := ai.NewClient(cfg.AI, log)
	retries := insight.NewRetryStore()
	engine := insight.NewEngine(insightRepo, generator, retries, cfg.AI, cfg.Retry, log)

	proc := processor.New(prRepo, runRepo, insightRepo, engine, hub, processor.NewFlight(), log)

	var wg sync.WaitGroup

	if cfg.Listener.Enabled {
		lst, err := listener.New(cfg.Postgres.ConnString(), proc, cfg.Listener, log)
		if err != nil {
			return fmt.Errorf("failed to init listener: %v", err)
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := lst.Run(ctx); err != nil {
				errChan <- fmt.Errorf("listener error: %v", err)
			}
		}()
	} else {
		log.Warn("notification listener disabled, relying on the poller alone")
	}

	pol := poller.New(prRepo, runRepo, insightRepo, proc, cfg.Poller, log)

	wg.Add(1)

	go func() {
		defer wg.Done()

		if err := pol.Run(ctx); err != nil {
			errChan <- fmt.Errorf("poller error: %v", err)
		}
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()
		engine.RunSweep(ctx)
	}()

	srv := myhttp.NewServer(log, hub)
	httpServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     srv.Routes(),
		ReadTimeout: cfg.Server.Timeout,
	}

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %v", err)
	}

	wg.Wait()

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %v", err)
	}
}
