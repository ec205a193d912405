// coffee-scheduler — планировщик циклов random coffee.
//
// Несколько экземпляров могут работать одновременно: изменяющую работу
// выполняет только владелец lease, остальные ждут в standby и
// подхватывают lease после её истечения.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/randomcoffee/internal/config"
	"github.com/shaiso/randomcoffee/internal/lease"
	"github.com/shaiso/randomcoffee/internal/mq"
	"github.com/shaiso/randomcoffee/internal/repo"
	"github.com/shaiso/randomcoffee/internal/scheduler"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()

	if err := run(logger); err != nil {
		logger.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	scopes := cfg.DomainScopes()
	logger.Info("starting coffee-scheduler", "scopes", len(scopes))

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("connected to database")

	cycleRepo := repo.NewCycleRepo(pool)

	var (
		notifier scheduler.Notifier
		conn     *mq.Connection
	)
	if cfg.RabbitMQ.URL != "" {
		conn, err = mq.NewConnection(cfg.RabbitMQ.URL, "coffee-scheduler", logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return err
		}
		logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())

		notifier = mq.NewNotifier(mq.NewPublisher(conn, logger), scopes)
	} else {
		logger.Warn("rabbitmq url not configured, notifications are only logged")
	}

	sched, err := scheduler.New(scheduler.Config{
		Scopes:   scopes,
		Cycles:   cycleRepo,
		Roster:   repo.NewRosterRepo(pool),
		History:  repo.NewHistoryRepo(pool),
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	leases := lease.NewManager(lease.Config{
		Store:            repo.NewLeaseRepo(pool),
		TTL:              cfg.Lease.TTL.Std(),
		RenewInterval:    cfg.Lease.RenewInterval.Std(),
		AcquireTimeout:   cfg.Lease.AcquireTimeout.Std(),
		MaxRenewAttempts: cfg.Lease.MaxRenewAttempts,
		RetryDelay:       cfg.Lease.RetryDelay.Std(),
		Logger:           logger,
	})

	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Leases:       leases,
		Scheduler:    sched,
		TickInterval: cfg.Scheduler.TickInterval.Std(),
		Logger:       logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		role := "standby"
		if runner.Holding() {
			role = "leader"
		}
		// Без брокера уведомления копятся в outbox, планирование продолжается
		if conn != nil && !conn.IsConnected() {
			role += " rabbitmq=down"
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", role)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.SchedulerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
