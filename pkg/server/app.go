package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"RiskPulse/internal/domain/repository"
	mid "RiskPulse/internal/middleware"
	"RiskPulse/internal/usecase"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	pkgqueue "RiskPulse/pkg/queue"
	"RiskPulse/pkg/sched"
)

// App owns the process lifecycle: it starts the scheduler, the optional
// price stream, the control consumer, the delivery queue and the HTTP
// server, then tears them down in reverse on shutdown.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	scheduler *sched.Scheduler
	handler   xhttp.Handler
	stream    repository.PriceStream
	pipeline  *mid.PricePipeline
	consumer  *pkgkafka.Consumer
	control   *usecase.ControlHandler
	queue     *pkgqueue.RedisQueue
	publisher repository.Publisher
	archive   repository.Archive
	chClient  *pkgch.Client

	httpServer *xhttp.Server
}

// New creates the application. stream, consumer, queue, archive and
// chClient may be nil depending on configuration.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *sched.Scheduler,
	handler xhttp.Handler,
	stream repository.PriceStream,
	pipeline *mid.PricePipeline,
	consumer *pkgkafka.Consumer,
	control *usecase.ControlHandler,
	queue *pkgqueue.RedisQueue,
	publisher repository.Publisher,
	archive repository.Archive,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    l,
		scheduler: scheduler,
		handler:   handler,
		stream:    stream,
		pipeline:  pipeline,
		consumer:  consumer,
		control:   control,
		queue:     queue,
		publisher: publisher,
		archive:   archive,
		chClient:  chClient,
	}
}

// Run starts all components and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.logger.Error("queue start failed", applogger.Error(err))
			return err
		}
		a.queue.StartRetryProcessor()
		a.logger.Info("delivery queue started")
	}

	a.scheduler.Start(ctx)
	a.logger.Info("scheduler started",
		applogger.Any("risk_interval", a.cfg.Engine.UpdateInterval),
		applogger.Any("optimization_interval", a.cfg.Engine.OptimizationInterval))

	if a.stream != nil {
		a.pipeline.Start(ctx)
		go a.runStream(ctx)
		a.logger.Info("price stream started",
			applogger.Strings("symbols", a.cfg.Provider.Symbols))
	}

	if a.consumer != nil && a.control != nil {
		a.consumer.RegisterHandler(a.control)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("control consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("control consumer started",
			applogger.String("topic", a.control.Topic()))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start failed", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runStream pumps marks from the WebSocket into the pipeline and
// reconnects on stream errors until the context ends.
func (a *App) runStream(ctx context.Context) {
	if err := a.stream.Connect(ctx); err != nil {
		a.logger.Error("stream connect failed", applogger.Error(err))
		return
	}
	if err := a.stream.Subscribe(ctx); err != nil {
		a.logger.Error("stream subscribe failed", applogger.Error(err))
		return
	}

	marks, errs := a.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-marks:
			if !ok {
				return
			}
			if err := a.pipeline.Process(ctx, m); err != nil {
				a.logger.Debug("mark dropped",
					applogger.String("symbol", m.Symbol),
					applogger.Error(err))
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			a.logger.Warn("stream error, reconnecting", applogger.Error(err))
			if rerr := a.stream.Reconnect(ctx); rerr != nil {
				a.logger.Error("stream reconnect failed", applogger.Error(rerr))
				return
			}
			if serr := a.stream.Subscribe(ctx); serr != nil {
				a.logger.Error("stream resubscribe failed", applogger.Error(serr))
				return
			}
			marks, errs = a.stream.Read(ctx)
		}
	}
}

// shutdown stops components in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("control consumer stop error", applogger.Error(err))
		}
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.logger.Warn("stream close error", applogger.Error(err))
		}
		a.pipeline.Stop()
	}

	a.scheduler.Stop()

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("archive close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
