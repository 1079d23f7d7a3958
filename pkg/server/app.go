package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/handler/api"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/scheduler"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/analyzers"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/usecase"
	pkgch "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/clickhouse"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	xhttp "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/http"
	pkgkafka "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/kafka"
	applogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/queue"
)

// backfill depth for analyzer cold starts
const backfillCandles = 240

// Components carries the wired application parts. Optional infrastructure
// (Kafka, Redis queue, ClickHouse) may be nil.
type Components struct {
	Scheduler  *scheduler.Scheduler
	Runner     *analyzers.Runner
	Loop       *usecase.AgentLoop
	Market     *usecase.MarketCollector
	Social     *usecase.SocialCollector
	Processor  *usecase.SnapshotProcessor
	Candles    *usecase.CandlesUseCase
	History    *history.Store
	Params     *usecase.ParamRegister
	Tracker    *usecase.Tracker
	Exchange   domrepo.Exchange
	Handler    *api.StatusHandler
	Consumer   *pkgkafka.Consumer
	KafkaSink  *usecase.KafkaSnapshotSink
	Queue      *queue.RedisQueue
	ClickHouse *pkgch.Client
}

// App encapsulates the agent lifecycle: restore parameters, backfill
// history, connect the venue, start feeds and the scheduler, serve the
// operator API, and shut everything down in order.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates an App from wired components.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// restore the last persisted parameter generation
	if err := a.c.Params.Restore(ctx); err != nil {
		a.log.Warn("parameter restore failed, using config seed", applogger.Error(err))
	}

	// seed analyzer windows from persisted candles
	a.c.Candles.Backfill(ctx, a.c.History, a.cfg.Symbols, backfillCandles)

	// venue first: position replay must precede any decision tick
	if err := a.c.Exchange.Connect(ctx); err != nil {
		a.log.Error("exchange connect failed", applogger.Error(err))
		return err
	}
	if err := a.c.Tracker.Reconcile(ctx, a.c.Exchange); err != nil {
		a.log.Warn("position reconcile failed", applogger.Error(err))
	}

	go func() {
		if err := a.c.Market.Start(ctx); err != nil {
			a.log.Error("market collector error", applogger.Error(err))
		}
	}()
	a.log.Info("market collector started", applogger.Strings("symbols", a.cfg.Symbols))

	go func() {
		if err := a.c.Social.Start(ctx); err != nil {
			a.log.Error("social collector error", applogger.Error(err))
		}
	}()

	if a.c.Consumer != nil && a.c.KafkaSink != nil {
		a.c.Consumer.RegisterHandler(a.c.KafkaSink)
		go func() {
			if err := a.c.Consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.KafkaSink.Topic()))
	}

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			a.log.Warn("directive queue start failed", applogger.Error(err))
		} else {
			a.c.Queue.StartRetryProcessor()
		}
	}

	// all cadences hang off the one scheduler
	a.c.Runner.Schedule()
	a.c.Loop.Schedule()
	a.c.Scheduler.Start(ctx)

	a.httpServer = xhttp.NewServer(a.c.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("operator api listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops services in reverse dependency order.
func (a *App) shutdown(ctx context.Context) error {
	// stop producing new work first
	a.c.Scheduler.Stop()

	if err := a.c.Market.Shutdown(ctx); err != nil {
		a.log.Warn("market collector stop error", applogger.Error(err))
	}
	if err := a.c.Social.Close(); err != nil {
		a.log.Warn("social collector stop error", applogger.Error(err))
	}

	// flush buffered snapshots before closing the backends
	if err := a.c.Processor.Flush(ctx); err != nil {
		a.log.Warn("snapshot flush error", applogger.Error(err))
	}
	a.c.Processor.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(shutdownCtx); err != nil {
			a.log.Warn("directive queue stop error", applogger.Error(err))
		}
	}

	if err := a.c.Exchange.Close(); err != nil {
		a.log.Warn("exchange close error", applogger.Error(err))
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
