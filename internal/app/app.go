package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopbot/internal/conversation"
	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/gateway"
	"github.com/xenking/shopbot/internal/notify"
	"github.com/xenking/shopbot/internal/push"
	"github.com/xenking/shopbot/internal/telegram"
	"github.com/xenking/shopbot/pkg/health"
	"github.com/xenking/shopbot/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the bot and the push listener, and
// handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("gateway", cfg.Gateway.URL),
		zap.String("push_addr", cfg.Push.Addr),
		zap.Int("operators", len(cfg.Operators)),
	)
	if len(cfg.Operators) == 0 {
		lg.Warn("No operators configured, order and support notifications will be dropped")
	}

	// Commerce backend.
	gw, err := gateway.New(gateway.Config{
		BaseURL:   cfg.Gateway.URL,
		Token:     cfg.Gateway.Token,
		Timeout:   cfg.Gateway.Timeout,
		Retries:   cfg.Gateway.Retries,
		RetryWait: cfg.Gateway.RetryWait,
		Breaker: gateway.BreakerConfig{
			Timeout:      cfg.Gateway.Breaker.Timeout,
			FailureRatio: cfg.Gateway.Breaker.FailureRatio,
			MinRequests:  cfg.Gateway.Breaker.MinRequests,
		},
	}, gateway.Options{
		Logger:         lg.Named("gateway"),
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create gateway")
	}

	// Chat transport.
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.BotToken,
		PollTimeout: cfg.Telegram.PollTimeout,
		Rate:        cfg.Telegram.Rate,
		Burst:       cfg.Telegram.Burst,
		Debug:       cfg.Debug,
	}, lg)
	if err != nil {
		return errors.Wrap(err, "create bot")
	}

	// Domain state and services.
	carts := cart.NewStore()
	sessions := checkout.NewStore(cfg.Checkout.TTL)
	notifier := notify.New(bot, notify.Config{
		Recipients:  cfg.Operators,
		Timeout:     cfg.Notify.Timeout,
		Parallelism: cfg.Notify.Parallelism,
	})
	orders := order.NewService(carts, sessions, gw, notifier, gw)
	svc := conversation.NewService(
		conversation.Config{PageSize: cfg.Catalog.PageSize},
		gw, orders, notifier, carts, sessions,
	)
	dispatcher := conversation.NewDispatcher(svc, bot, sessions, conversation.DispatcherConfig{
		Queue:       cfg.Dispatcher.Queue,
		IdleTimeout: cfg.Dispatcher.IdleTimeout,
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("gateway", 5*time.Second, gw.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(4*cfg.Dispatcher.MaxWorkers))
	healthSvc.AddLivenessCheck("workers", time.Second,
		health.GaugeCheck("active workers", dispatcher.Active, cfg.Dispatcher.MaxWorkers),
	)
	healthSvc.Start(ctx, 10*time.Second)

	// Push listener.
	pushSrv := push.NewServer(bot, gw)
	router := pushSrv.Router(ctx, push.Config{
		Secret:  cfg.Push.Secret,
		Origins: cfg.Push.Origins,
		RateLimit: httpmiddleware.RateLimitConfig{
			Max:    cfg.Push.RateLimit.Max,
			Window: cfg.Push.RateLimit.Window,
		},
	}, healthSvc)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Push.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(router,
				httpmiddleware.Recovery(),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx).Named("push")),
				httpmiddleware.LogRequests(),
			),
			"push",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("Polling updates")
		if err := bot.Run(gCtx, dispatcher); err != nil {
			return errors.Wrap(err, "bot")
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Push server listening", zap.String("addr", cfg.Push.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "push server")
		}
		return nil
	})

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down push server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}

		lg.Info("Waiting for user workers", zap.Int("active", dispatcher.Active()))
		dispatcher.Wait()
		healthSvc.Stop()
		return nil
	})

	healthSvc.SetReady(true)
	return g.Wait()
}
