package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/gateway"
	"RiskPulse/internal/handler/api"
	mid "RiskPulse/internal/middleware"
	internalrepo "RiskPulse/internal/repository"
	"RiskPulse/internal/services/alert"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/services/optimizer"
	"RiskPulse/internal/services/risk"
	"RiskPulse/internal/services/sizing"
	"RiskPulse/internal/services/stress"
	"RiskPulse/internal/usecase"
	pkgcache "RiskPulse/pkg/cache"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	pkgqueue "RiskPulse/pkg/queue"
	"RiskPulse/pkg/sched"
	"RiskPulse/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache builds the cache service selected by config.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	switch cfg.Cache.Type {
	case "memory":
		return pkgcache.NewMemoryCache(), nil
	case "redis", "layered":
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Addr),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		if cfg.Cache.Type == "layered" {
			return pkgcache.NewLayeredCache(rc), nil
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}

// ProvideClickHouseClient creates the ClickHouse client and initializes the
// envelope archive schema. Returns nil when ClickHouse is disabled.
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
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ArchiveSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideArchive wraps the ClickHouse client as the envelope audit sink.
func ProvideArchive(client *pkgch.Client) repository.Archive {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseArchive(client.DB(), "risk_envelopes")
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled; publication then falls back to the in-process bus.
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

// ProvidePublisher selects the envelope bus: Kafka when configured,
// otherwise the in-process fan-out bus. With Kafka available, aggregated
// error logs are shipped to their own topic.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.Publisher {
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".logs",
			Publisher:      kafkaLogPublisher{producer: producer},
		})
		return internalrepo.NewKafkaBus(producer, cfg.Kafka.Topic)
	}
	return internalrepo.NewMemoryBus()
}

// kafkaLogPublisher adapts the Kafka producer to the log collector sink.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideKafkaConsumer creates the control-topic consumer, or nil when
// Kafka or the control topic is not configured.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.ControlTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
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
	consumer.WithConsumerHook(pkgkafka.TimingHook{
		Record: func(topic string, elapsed time.Duration, err error) {
			if err != nil {
				m.RecordError("consume")
				l.Warn("control message failed",
					applogger.String("topic", topic),
					applogger.Duration("elapsed", elapsed),
					applogger.Error(err))
				return
			}
			l.Debug("control message handled",
				applogger.String("topic", topic),
				applogger.Duration("elapsed", elapsed))
		},
	})
	return consumer, nil
}

// ProvideGateway builds the resilient data gateway over the provider API.
func ProvideGateway(cfg *config.Config, cacheSvc pkgcache.Service, m repository.Metrics, l *applogger.Logger) *gateway.Gateway {
	raw := internalrepo.NewProviderClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	return gateway.New(gateway.Config{
		RetryAttempts: cfg.Provider.RetryAttempts,
		RetryBackoff:  cfg.Provider.RetryBackoff,
		MaxFailures:   uint32(cfg.Provider.MaxFailures),
		BreakerReset:  cfg.Provider.BreakerReset,
		CacheTTL:      cfg.Provider.CacheTTL,
		RateLimitRPS:  cfg.Provider.RateLimitRPS,
	}, raw, cacheSvc, m, l)
}

// ProvideMarketData exposes the gateway under the domain boundary.
func ProvideMarketData(g *gateway.Gateway) repository.MarketData { return g }

// ProvidePriceStream creates the provider WebSocket stream, or nil when no
// stream URL is configured.
func ProvidePriceStream(cfg *config.Config, l *applogger.Logger) repository.PriceStream {
	if cfg.Provider.WebSocketURL == "" {
		return nil
	}
	return internalrepo.NewProviderStream(
		cfg.Provider.APIKey,
		cfg.Provider.WebSocketURL,
		cfg.Provider.Symbols,
		cfg.Provider.ReconnectWait,
		cfg.Provider.PingInterval,
		l,
	)
}

// ProvideCalculator builds the analytic risk calculator.
func ProvideCalculator(cfg *config.Config, l *applogger.Logger) *risk.Calculator {
	return risk.NewCalculator(risk.CalculatorConfig{
		ConfidenceLevel: cfg.Engine.ConfidenceLevel,
		RiskFreeRate:    cfg.Engine.RiskFreeRate,
		MonteCarloDraws: cfg.Engine.MonteCarloDraws,
	}, l)
}

// ProvideWeightStore selects the classifier weight source: the model
// service when configured, a local file otherwise, nil for a cold start.
func ProvideWeightStore(cfg *config.Config) risk.WeightStore {
	if cfg.Classifier.ServiceURL != "" {
		return analytics.NewRemoteWeightStore(cfg.Classifier.ServiceURL, cfg.Classifier.Timeout)
	}
	if cfg.Classifier.WeightsFile != "" {
		return risk.FileWeightStore{Path: cfg.Classifier.WeightsFile}
	}
	return nil
}

// ProvideClassifier builds the neural risk classifier.
func ProvideClassifier(store risk.WeightStore, l *applogger.Logger) domsvc.Classifier {
	return risk.NewNeuralClassifier(store, 0, l)
}

// ProvideOptimizer builds the blended portfolio optimizer.
func ProvideOptimizer(cfg *config.Config, l *applogger.Logger) domsvc.Optimizer {
	o := cfg.Optimizer
	return optimizer.NewBlended(optimizer.Config{
		MethodWeights: map[string]float64{
			optimizer.MethodMeanVariance:   o.MethodWeights.MeanVariance,
			optimizer.MethodMinVariance:    o.MethodWeights.MinimumVariance,
			optimizer.MethodRiskParity:     o.MethodWeights.RiskParity,
			optimizer.MethodBlackLitterman: o.MethodWeights.BlackLitterman,
		},
		RiskTolerance:      o.RiskTolerance,
		Tau:                o.Tau,
		ViewConfidence:     o.ViewConfidence,
		MaxPosition:        o.MaxPosition,
		TotalExposure:      o.TotalExposure,
		CashReserve:        o.CashReserve,
		RebalanceThreshold: o.RebalanceTolerance,
	}, l)
}

// ProvideStressTester loads the scenario library and builds the tester.
func ProvideStressTester(cfg *config.Config, l *applogger.Logger) (domsvc.StressTester, error) {
	if cfg.Stress.ScenariosFile != "" {
		scn, err := stress.LoadScenarios(cfg.Stress.ScenariosFile)
		if err != nil {
			return nil, fmt.Errorf("stress scenarios: %w", err)
		}
		return stress.NewTester(scn, 0, l), nil
	}
	return stress.NewTester(nil, 0, l), nil
}

// ProvideAlertManager builds the alert manager with configured thresholds.
func ProvideAlertManager(cfg *config.Config, l *applogger.Logger) *alert.Manager {
	return alert.NewManager(alert.Thresholds{
		Drawdown:        cfg.Engine.AlertThreshold,
		VaR:             cfg.Engine.MaxPortfolioRisk,
		Correlation:     cfg.Engine.CorrelationThreshold,
		MaxPositionSize: cfg.Engine.MaxPositionSize,
	}, sched.RealClock{}, l)
}

// ProvideSizer builds the position sizer.
func ProvideSizer(cfg *config.Config) *sizing.Sizer {
	o := cfg.Optimizer
	return sizing.New(sizing.Config{
		MaxPosition:        o.MaxPosition,
		TotalExposure:      o.TotalExposure,
		CashReserve:        o.CashReserve,
		RebalanceTolerance: o.RebalanceTolerance,
	})
}

// ProvideRedisQueue builds the envelope delivery queue when enabled. The
// queue decouples tick latency from bus publication and retries failures.
func ProvideRedisQueue(cfg *config.Config, pub repository.Publisher, archive repository.Archive, m repository.Metrics, l *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled || cfg.Cache.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, pkgqueue.WithKeyPrefix("riskpulse:envelopes"))
	q.RegisterJob(usecase.NewEnvelopeJob(pub, archive, m, l))
	return q
}

// ProvideDispatcher routes envelopes through the queue when present,
// directly to the bus otherwise.
func ProvideDispatcher(q *pkgqueue.RedisQueue, pub repository.Publisher, archive repository.Archive, m repository.Metrics, l *applogger.Logger) usecase.Dispatcher {
	if q != nil {
		return usecase.NewQueueDispatcher(q)
	}
	return usecase.NewDirectDispatcher(pub, archive, m, l)
}

// ProvideEngine builds the risk engine.
func ProvideEngine(
	cfg *config.Config,
	data repository.MarketData,
	calc *risk.Calculator,
	classifier domsvc.Classifier,
	opt domsvc.Optimizer,
	tester domsvc.StressTester,
	alerts *alert.Manager,
	sizer *sizing.Sizer,
	dispatch usecase.Dispatcher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Engine {
	return usecase.NewEngine(usecase.EngineConfig{
		Lookback:          cfg.Engine.LookbackPeriod,
		EmergencyStopLoss: cfg.Engine.EmergencyStopLoss,
		MaxPortfolioRisk:  cfg.Engine.MaxPortfolioRisk,
	}, data, calc, classifier, opt, tester, alerts, sizer, dispatch, m, l)
}

// ProvideControlHandler builds the Kafka control-topic handler.
func ProvideControlHandler(cfg *config.Config, engine *usecase.Engine, g *gateway.Gateway, m repository.Metrics, l *applogger.Logger) *usecase.ControlHandler {
	return usecase.NewControlHandler(cfg.Kafka.ControlTopic, engine, g, m, l)
}

// ProvidePricePipeline builds the mark ingestion pipeline in front of the
// engine.
func ProvidePricePipeline(engine *usecase.Engine, m repository.Metrics) *mid.PricePipeline {
	return mid.NewPricePipeline(engine, m,
		mid.WithMaxRPS(20),
		mid.WithBufferSize(1000),
	)
}

// ProvideHTTPHandler builds the read API handler.
func ProvideHTTPHandler(l *applogger.Logger, engine *usecase.Engine, g *gateway.Gateway) xhttp.Handler {
	return api.NewRiskEchoHandler(l, engine, g)
}

// ProvideScheduler registers the four engine cadences on a real clock.
func ProvideScheduler(cfg *config.Config, engine *usecase.Engine, m repository.Metrics, l *applogger.Logger) *sched.Scheduler {
	onErr := func(task string, err error) {
		if m != nil {
			m.RecordError("task_" + task)
		}
		if l != nil {
			l.Error("task cycle failed",
				applogger.String("task", task),
				applogger.Error(err))
		}
	}
	s := sched.New(sched.RealClock{}, onErr)
	e := cfg.Engine
	s.Register(&sched.Task{Name: "risk", Interval: e.UpdateInterval, SoftDeadline: e.SoftDeadline, Run: engine.RiskTick})
	s.Register(&sched.Task{Name: "optimization", Interval: e.OptimizationInterval, SoftDeadline: e.OptimizationInterval, Run: engine.OptimizationTick})
	s.Register(&sched.Task{Name: "stress", Interval: e.StressInterval, SoftDeadline: e.StressInterval, Run: engine.StressTick})
	s.Register(&sched.Task{Name: "correlation", Interval: e.CorrelationInterval, SoftDeadline: e.CorrelationInterval, Run: engine.CorrelationTick})
	return s
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *sched.Scheduler,
	handler xhttp.Handler,
	stream repository.PriceStream,
	pipeline *mid.PricePipeline,
	consumer *pkgkafka.Consumer,
	ch *usecase.ControlHandler,
	queue *pkgqueue.RedisQueue,
	pub repository.Publisher,
	archive repository.Archive,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, scheduler, handler, stream, pipeline, consumer, ch, queue, pub, archive, chClient)
}
