// Command fixgate serves FIX message templates over HTTP and delivers them to
// counterparty sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/fixgate"
	"github.com/bjaus/fixgate/config"
	"github.com/bjaus/fixgate/httpapi"
	"github.com/bjaus/fixgate/logging"
	"github.com/bjaus/fixgate/metrics"
	"github.com/bjaus/fixgate/quickfixconn"
	"github.com/bjaus/fixgate/templates"
	"github.com/bjaus/fixgate/wire"
)

func main() {
	configPath := flag.String("config", "fixgate.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("fixgate stopped", zap.Error(err))
	}
	logger.Info("fixgate stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	codec := fixgate.NewCodec(templates.Dictionary())
	reg := fixgate.NewRegistry()
	if err := templates.Register(reg, time.Now); err != nil {
		return fmt.Errorf("register templates: %w", err)
	}
	if err := reg.Validate(codec); err != nil {
		return fmt.Errorf("validate templates: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	router := fixgate.NewRouter(codec,
		fixgate.WithResetOnLogon(cfg.FIX.ResetOnLogon),
		logging.RouterOption(logger),
		m.RouterOption(),
	)

	var acceptor *quickfix.Acceptor
	if cfg.FIX.SettingsFile != "" {
		settings, err := quickfixconn.LoadSettings(cfg.FIX.SettingsFile)
		if err != nil {
			return err
		}
		app := quickfixconn.NewApplication(router, logger.Named("engine"),
			quickfixconn.WithSendTimeout(cfg.FIX.SendTimeout))
		store := quickfixconn.Store{Kind: cfg.FIX.Store, DSN: cfg.FIX.StoreDSN}
		if acceptor, err = quickfixconn.NewAcceptor(app, settings, store, logger); err != nil {
			return err
		}
	}

	opts := []fixgate.Option{fixgate.WithStamp(templates.TextStamp())}
	opts = append(opts, logging.GatewayOptions(logger)...)
	opts = append(opts, m.GatewayOptions()...)
	gw := fixgate.NewGateway(codec, reg, router, opts...)

	server := httpapi.NewServer(logger, gw,
		httpapi.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if acceptor != nil {
		if err := acceptor.Start(); err != nil {
			return fmt.Errorf("start acceptor: %w", err)
		}
		logger.Info("quickfix acceptor started", zap.String("settings", cfg.FIX.SettingsFile))
		g.Go(func() error {
			<-ctx.Done()
			acceptor.Stop()
			return nil
		})
	}

	for _, s := range cfg.Sessions {
		id := fixgate.SessionID{BeginString: s.BeginString, SenderCompID: s.SenderCompID, TargetCompID: s.TargetCompID}
		peer := wire.NewPeer(router, codec, id, s.Address,
			wire.WithLogger(logger.Named("wire")),
			wire.WithWriteTimeout(cfg.FIX.SendTimeout),
			wire.WithGroupSpecs(templates.GroupSpecs()...),
		)
		g.Go(func() error { return peer.Run(ctx) })
	}

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
