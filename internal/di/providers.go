package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/handler/api"
	mid "github.com/sjn96/solana-ai-trading-bot-sub002/internal/middleware"
	internalrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/scheduler"
	icache "github.com/sjn96/solana-ai-trading-bot-sub002/internal/service/cache"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/service/exchange"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/service/feeds"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/analyzers"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/estimator"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/usecase"
	pkgcache "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/cache"
	pkgch "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/clickhouse"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	xhttp "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/http"
	pkgkafka "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/kafka"
	applogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/metrics"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/queue"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/server"
)

// agentDomains is the fixed set of assessment domains.
var agentDomains = []string{
	"accumulation", "buying_pressure", "volatility", "swing", "catalyst",
	"sentiment", "emotion", "fear_greed", "psychology",
}

// ProvideLogger creates the structured application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "dev" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideHistory creates the rolling in-memory market history. Retention
// covers the widest analyzer window.
func ProvideHistory(cfg *config.Config) *history.Store {
	var widest time.Duration
	for _, d := range agentDomains {
		if w := cfg.AnalyzerFor(d).Window(); w > widest {
			widest = w
		}
	}
	return history.New(
		history.WithRetention(widest),
		history.WithCandleBucket(time.Minute),
	)
}

// ProvideBus creates the assessment bus with per-domain retention.
func ProvideBus(cfg *config.Config, m domrepo.Metrics) *bus.Bus {
	opts := make([]bus.Option, 0, len(agentDomains))
	for _, d := range agentDomains {
		opts = append(opts, bus.WithRetention(d, cfg.AnalyzerFor(d).Retention()))
	}
	return bus.New(m, opts...)
}

// ProvideScheduler creates the wall-clock scheduler owning every cadence.
func ProvideScheduler(log *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(scheduler.RealClock{}, log)
}

// ProvideClickHouseClient creates a ClickHouse client, nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore picks the snapshot store backend.
func ProvideSnapshotStore(ch *pkgch.Client, log *applogger.Logger) (domrepo.SnapshotStore, error) {
	if ch == nil {
		return internalrepo.NewNullSnapshotStore(), nil
	}
	store := internalrepo.NewCHSnapshotStore(ch)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSnapshotPublisher creates the snapshot topic publisher, nil
// without Kafka.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) usecase.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer, nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				ctx = pkgkafka.WithStartTime(ctx, time.Now())
				return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
			},
			After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
				if start, ok := ctx.Value(pkgkafka.CtxStartTime).(time.Time); ok {
					m.RecordLatency("kafka_consume", time.Since(start).Seconds())
				}
			},
		},
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
				m.RecordError("kafka_consume")
				log.Warn("kafka message failed",
					applogger.String("topic", topic), applogger.Error(err))
			},
		},
	))
	return consumer, nil
}

// ProvideKafkaSnapshotSink creates the consumer-side snapshot sink.
func ProvideKafkaSnapshotSink(store domrepo.SnapshotStore, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaSnapshotSink {
	return usecase.NewKafkaSnapshotSink(cfg.Kafka.Topic, store, m)
}

// ProvideRedisClient creates a raw Redis client for the queue, nil when
// disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideParamStore picks the parameter persistence backend.
func ProvideParamStore(cfg *config.Config) (domrepo.ParamStore, error) {
	if !cfg.Redis.Enabled {
		return internalrepo.NewMemoryParamStore(), nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(hostOf(cfg.Redis.Addr)),
		pkgcache.WithRedisPort(portOf(cfg.Redis.Addr)),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return internalrepo.NewRedisParamStore(c), nil
}

// ProvideAttributionStore picks the report persistence backend.
func ProvideAttributionStore(ch *pkgch.Client) domrepo.AttributionStore {
	if ch == nil {
		return internalrepo.NewMemoryAttributionStore(1000)
	}
	return internalrepo.NewCHAttributionStore(ch)
}

// ProvideAnalysisLog creates the JSONL decision trail.
func ProvideAnalysisLog(cfg *config.Config) (domrepo.AnalysisLog, error) {
	return internalrepo.NewJSONLAnalysisLog(cfg.AnalysisLogPath)
}

// ProvideEstimator creates the swing probability model manager.
func ProvideEstimator(cfg *config.Config, log *applogger.Logger) *estimator.Manager {
	return estimator.NewManager(
		estimator.NewLogistic(),
		cfg.Learning.MinModelAccuracy,
		cfg.Learning.InferenceWorkers,
		log,
	)
}

// ProvideRegistry builds the analyzer registry.
func ProvideRegistry(cfg *config.Config, est *estimator.Manager) (*analyzers.Registry, error) {
	var swing domsvc.Estimator = est
	return analyzers.BuildRegistry(cfg, swing)
}

// ProvideRunner creates the analyzer runner.
func ProvideRunner(
	reg *analyzers.Registry,
	hist *history.Store,
	b *bus.Bus,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *analyzers.Runner {
	return analyzers.NewRunner(reg, hist, b, sched, cfg, m, log)
}

// ProvideParamRegister seeds generation 1 from config.
func ProvideParamRegister(cfg *config.Config, store domrepo.ParamStore, m domrepo.Metrics, log *applogger.Logger) (*usecase.ParamRegister, error) {
	return usecase.NewParamRegister(usecase.InitialParameters(cfg, time.Now()), store, m, log)
}

// ProvideFreezeList creates the invariant-violation freeze list.
func ProvideFreezeList(log *applogger.Logger) *usecase.FreezeList {
	return usecase.NewFreezeList(log)
}

// ProvideTracker creates the performance tracker.
func ProvideTracker(
	cfg *config.Config,
	store domrepo.AttributionStore,
	analysis domrepo.AnalysisLog,
	est *estimator.Manager,
	frozen *usecase.FreezeList,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.Tracker {
	return usecase.NewTracker(
		cfg.Exchange.Paper.Equity,
		cfg.Risk.MaxDrawdown,
		cfg.Risk.RecoveryPeriod,
		cfg.Execution.MaxSlippage,
		store, analysis, est, frozen, m, log,
	)
}

// ProvideExchange builds the venue adapter and wraps it with the breaker
// and rate limit guard.
func ProvideExchange(cfg *config.Config, hist *history.Store, log *applogger.Logger) domrepo.Exchange {
	var inner domrepo.Exchange
	switch cfg.Exchange.Type {
	case "ws":
		inner = exchange.NewWS(exchange.WSConfig{
			WebSocketURL:   cfg.Exchange.WebSocketURL,
			APIKey:         cfg.Exchange.APIKey,
			RESTTimeout:    cfg.Exchange.RESTTimeout,
			PingInterval:   cfg.Exchange.PingInterval,
			ReconnectDelay: cfg.Exchange.ReconnectDelay,
		}, log)
	default:
		inner = exchange.NewPaper(exchange.PaperConfig{
			Equity:       cfg.Exchange.Paper.Equity,
			FeeRate:      cfg.Exchange.Paper.FeeRate,
			FillLatency:  cfg.Exchange.Paper.FillLatency,
			SlippageBps:  cfg.Exchange.Paper.SlippageBps,
			PartialRatio: cfg.Exchange.Paper.PartialRatio,
		}, hist, log)
	}
	return exchange.NewGuarded(inner, cfg.Exchange.Type, cfg.Exchange.RateLimit, cfg.Exchange.RateBurst, log)
}

// ProvideExecutionEngine creates the execution engine; the tracker is its
// result sink.
func ProvideExecutionEngine(
	ex domrepo.Exchange,
	hist *history.Store,
	tracker *usecase.Tracker,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.ExecutionEngine {
	engine := usecase.NewExecutionEngine(ex, hist, tracker, cfg, m, log)
	tracker.SetBusy(engine.HasOpenPlan)
	return engine
}

// ProvideDecisionEngine creates the decision engine; the execution engine
// serves as the open-plan guard.
func ProvideDecisionEngine(
	b *bus.Bus,
	params *usecase.ParamRegister,
	frozen *usecase.FreezeList,
	engine *usecase.ExecutionEngine,
	runner *analyzers.Runner,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.DecisionEngine {
	return usecase.NewDecisionEngine(b, params, frozen, engine, runner.MaxStaleness(), m, log)
}

// ProvideRiskGate creates the risk gate over the tracker's portfolio view.
func ProvideRiskGate(
	params *usecase.ParamRegister,
	tracker *usecase.Tracker,
	hist *history.Store,
	b *bus.Bus,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.RiskGate {
	return usecase.NewRiskGate(params, tracker, hist, b, cfg.Categories, cfg.Risk.CorrelationWindow, m, log)
}

// ProvidePlanner creates the execution planner.
func ProvidePlanner(params *usecase.ParamRegister, hist *history.Store, cfg *config.Config, log *applogger.Logger) *usecase.Planner {
	return usecase.NewPlanner(params, hist, cfg, log)
}

// ProvideLearner creates the parameter learner.
func ProvideLearner(params *usecase.ParamRegister, store domrepo.ParamStore, cfg *config.Config, log *applogger.Logger) *usecase.Learner {
	return usecase.NewLearner(params, store, cfg.Learning.ReplayTTL, log)
}

// ProvideDirectiveQueue creates the Redis-backed directive queue, nil
// without Redis. The learner's job consumes directives off the queue.
func ProvideDirectiveQueue(client *redis.Client, learner *usecase.Learner, cfg *config.Config, log *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	qc := &queue.QueueConfig{Workers: 1, RetryLimit: 3}
	q := queue.NewRedisQueue(log, qc, client, queue.ModeProducerConsumer,
		queue.WithKeyPrefix("tokenagent:directives"))
	q.RegisterJob(usecase.NewDirectiveJob(learner))
	return q
}

// ProvideDirectiveSink routes feedback directives: through the queue when
// Redis is up, straight into the learner otherwise.
func ProvideDirectiveSink(q *queue.RedisQueue, learner *usecase.Learner) usecase.DirectiveSink {
	if q != nil {
		return usecase.NewQueueDirectiveSink(q)
	}
	return learner
}

// ProvideFeedback creates the feedback processor and wires it as the
// tracker's report sink.
func ProvideFeedback(
	params *usecase.ParamRegister,
	tracker *usecase.Tracker,
	sink usecase.DirectiveSink,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.FeedbackProcessor {
	fb := usecase.NewFeedbackProcessor(params, tracker, sink, cfg, log)
	tracker.SetSink(fb)
	return fb
}

// ProvideSnapshotProcessor routes validated snapshots to history and the
// persistence backend.
func ProvideSnapshotProcessor(
	hist *history.Store,
	pub usecase.SnapshotPublisher,
	store domrepo.SnapshotStore,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.SnapshotProcessor {
	backend := ""
	switch {
	case cfg.Kafka.Enabled:
		backend = "kafka"
	case cfg.ClickHouse.Enabled:
		backend = "clickhouse"
	}
	return usecase.NewSnapshotProcessor(hist, pub, store, m, backend, cfg.Kafka.Producer.BatchSize)
}

// ProvideMarketFeed creates the market WebSocket feed.
func ProvideMarketFeed(cfg *config.Config, log *applogger.Logger) domrepo.MarketFeed {
	return feeds.NewMarketWS(
		cfg.Feeds.Market.APIKey,
		cfg.Feeds.Market.WebSocketURL,
		cfg.Feeds.Market.ReconnectDelay,
		cfg.Feeds.Market.PingInterval,
		log,
	)
}

// ProvideSocialFeed creates the polling social feed, nil when disabled.
func ProvideSocialFeed(cfg *config.Config, log *applogger.Logger) domrepo.SocialFeed {
	if !cfg.Feeds.Social.Enabled || cfg.Feeds.Social.BaseURL == "" {
		return nil
	}
	client := xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	return feeds.NewSocialPoll(client, cfg.Feeds.Social.BaseURL, cfg.Feeds.Social.Sources, cfg.Symbols, cfg.Feeds.Social.PollInterval, log)
}

// ProvideMarketCollector creates the market ingest loop with its throttle
// and buffer middleware.
func ProvideMarketCollector(
	feed domrepo.MarketFeed,
	proc *usecase.SnapshotProcessor,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.MarketCollector {
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Feeds.Market.MaxRPS),
		mid.WithBufferSize(cfg.Feeds.Market.BufferSize),
	)
	return usecase.NewMarketCollector(feed, proc, pipe, cfg.Symbols, m, log)
}

// ProvideSocialCollector creates the social ingest loop.
func ProvideSocialCollector(feed domrepo.SocialFeed, hist *history.Store, m domrepo.Metrics, log *applogger.Logger) *usecase.SocialCollector {
	return usecase.NewSocialCollector(feed, hist, m, log)
}

// ProvideCandles creates the candle read/backfill usecase.
func ProvideCandles(store domrepo.SnapshotStore, log *applogger.Logger) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store, log)
}

// ProvideAgentLoop wires the trade control plane.
func ProvideAgentLoop(
	decision *usecase.DecisionEngine,
	risk *usecase.RiskGate,
	planner *usecase.Planner,
	engine *usecase.ExecutionEngine,
	tracker *usecase.Tracker,
	est *estimator.Manager,
	hist *history.Store,
	ex domrepo.Exchange,
	analysis domrepo.AnalysisLog,
	frozen *usecase.FreezeList,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.AgentLoop {
	return usecase.NewAgentLoop(decision, risk, planner, engine, tracker, est, hist, ex, analysis, frozen, sched, cfg, m, log)
}

// ProvideStatusUseCase creates the operator status usecase.
func ProvideStatusUseCase(
	b *bus.Bus,
	loop *usecase.AgentLoop,
	tracker *usecase.Tracker,
	params *usecase.ParamRegister,
	frozen *usecase.FreezeList,
	est *estimator.Manager,
	runner *analyzers.Runner,
	cfg *config.Config,
) *usecase.StatusUseCase {
	return usecase.NewStatusUseCase(b, loop, tracker, params, frozen, est, runner.MaxStaleness(), cfg.Symbols)
}

// ProvideStatusHandler creates the operator API handler with an in-process
// response cache.
func ProvideStatusHandler(cfg *config.Config, log *applogger.Logger, status *usecase.StatusUseCase, candles *usecase.CandlesUseCase, learner *usecase.Learner) *api.StatusHandler {
	h := api.NewStatusHandler(log, status, candles, learner)
	h.SetCache(icache.NewTTLCache())
	if cfg.Redis.Enabled {
		c, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(hostOf(cfg.Redis.Addr)),
			pkgcache.WithRedisPort(portOf(cfg.Redis.Addr)),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			log.Warn("api cache falling back to in-process", applogger.Error(err))
		} else {
			h.SetCache(icache.NewRedisBytesCache(c.Client()))
		}
	}
	return h
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher contract.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	producer *pkgkafka.Producer,
	sched *scheduler.Scheduler,
	runner *analyzers.Runner,
	loop *usecase.AgentLoop,
	market *usecase.MarketCollector,
	social *usecase.SocialCollector,
	proc *usecase.SnapshotProcessor,
	candles *usecase.CandlesUseCase,
	hist *history.Store,
	params *usecase.ParamRegister,
	tracker *usecase.Tracker,
	ex domrepo.Exchange,
	handler *api.StatusHandler,
	consumer *pkgkafka.Consumer,
	sink *usecase.KafkaSnapshotSink,
	dq *queue.RedisQueue,
	chClient *pkgch.Client,
) *server.App {
	// aggregate repeated error logs onto the analysis stream when Kafka is up
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "agent.logs",
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	return server.New(cfg, log, server.Components{
		Scheduler:  sched,
		Runner:     runner,
		Loop:       loop,
		Market:     market,
		Social:     social,
		Processor:  proc,
		Candles:    candles,
		History:    hist,
		Params:     params,
		Tracker:    tracker,
		Exchange:   ex,
		Handler:    handler,
		Consumer:   consumer,
		KafkaSink:  sink,
		Queue:      dq,
		ClickHouse: chClient,
	})
}

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

func portOf(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			p := 0
			for _, c := range addr[i+1:] {
				if c < '0' || c > '9' {
					return 6379
				}
				p = p*10 + int(c-'0')
			}
			return p
		}
	}
	return 6379
}
