package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/microsafety/microsafety/internal/alerting"
	"github.com/microsafety/microsafety/internal/api"
	"github.com/microsafety/microsafety/internal/api/middleware"
	"github.com/microsafety/microsafety/internal/auth"
	"github.com/microsafety/microsafety/internal/config"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/provider/resilience"
	"github.com/microsafety/microsafety/internal/session"
	"github.com/microsafety/microsafety/internal/telemetry"
	"github.com/microsafety/microsafety/internal/weather"
	"github.com/microsafety/microsafety/internal/worker"
)

// devSigningKey signs session tokens outside production when JWT_SECRET is unset.
const devSigningKey = "local-dev-signing-key-change-in-production"

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API, feed client and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg, os.Stdout)
	log.Info().
		Str("build_time", BuildTime).
		Str("transport", cfg.Feed.Transport).
		Str("store", cfg.Store.Driver).
		Msg("starting microsafety")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Labels: map[string]string{
			"feed.transport": cfg.Feed.Transport,
			"store.driver":   cfg.Store.Driver,
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics(tp.Meters())
	if err != nil {
		return err
	}
	prom := observability.NewMetrics()
	registry := resilience.NewRegistry()

	dialer, closeDialer, err := newDialer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDialer.Close()

	feedClient := feed.NewClient(feed.ClientConfig{
		Dialer:         dialer,
		Logger:         log.With().Str("component", "feed").Logger(),
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		Metrics:        prom,
	})

	origin, err := newUpstream(cfg, registry, prom, log.With().Str("component", "upstream").Logger())
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: st.flags,
		Logger:     log.With().Str("component", "featureflags").Logger(),
	})
	if err := flags.Apply(ctx, cfg.FeatureFlags); err != nil {
		return err
	}

	store := session.NewService(session.ServiceConfig{
		Repository: st.sessions,
		Logger:     log.With().Str("component", "session").Logger(),
		Metrics:    prom,
	})

	wcfg := weather.DefaultServiceConfig()
	wcfg.Source = origin
	wcfg.Logger = log.With().Str("component", "weather").Logger()
	weatherService := weather.NewService(wcfg)

	controller := dashboard.New(dashboard.Config{
		Feed:    feedClient,
		Store:   store,
		Origin:  origin,
		Weather: weatherService,
		Logger:  log.With().Str("component", "dashboard").Logger(),
	})

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.DefaultRefreshConfig(),
		Logger: log.With().Str("component", "worker").Logger(),
		Tasks: []worker.Task{
			worker.WeatherTask(weatherService),
			worker.HealthTask(origin, log),
		},
	})
	scheduler, err := worker.NewScheduler(job, cfg.Schedules, log)
	if err != nil {
		return err
	}

	signingKey := cfg.JWTSecret
	if signingKey == "" {
		signingKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: signingKey,
			Issuer:     serviceName,
			Audience:   api.DefaultServiceName,
		}),
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: api.DefaultServiceName,
		Metrics:     httpMetrics,
		Prom:        prom,
		AuthService: authService,
		Controller:  controller,
		Feed:        feedClient,
		Transport:   cfg.Feed.Transport,
		Providers:   registry,
		Jobs:        job,
		Flags:       flags,
		RequireTLS:  cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(feedClient.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(store.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(controller.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(scheduler.Run(gctx)) })

	if sink, err := newAlertSink(cfg, log); err == nil {
		dispatcher := alerting.NewDispatcher(alerting.DispatcherConfig{
			Sink:    sink,
			Logger:  log.With().Str("component", "alerting").Logger(),
			Metrics: prom,
			Flags:   flags,
		})
		updates, unsubscribe := feedClient.Subscribe()
		g.Go(func() error {
			defer unsubscribe()
			defer sink.Close()
			return ignoreCanceled(dispatcher.Run(gctx, updates))
		})
	} else if !errors.Is(err, errNoSink) {
		return err
	}

	if cfg.TriggerSubscription != "" {
		triggers, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Feed.PubSubProjectID,
			SubscriptionName: cfg.TriggerSubscription,
			RefreshJob:       job,
			Logger:           log.With().Str("component", "triggers").Logger(),
		})
		if err != nil {
			return err
		}
		defer triggers.Close()
		g.Go(func() error { return ignoreCanceled(triggers.Start(gctx)) })
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
			return err
		}
		return nil
	})

	err = g.Wait()
	if n := store.Flush(); n > 0 {
		log.Info().Int("records", n).Msg("flushed session writes from shutdown")
	}
	if err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// ignoreCanceled treats a cancelled context as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
