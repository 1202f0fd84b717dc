package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/posfleet/printpool/internal/api"
	"github.com/posfleet/printpool/internal/api/middleware"
	"github.com/posfleet/printpool/internal/config"
	"github.com/posfleet/printpool/internal/core"
	"github.com/posfleet/printpool/internal/logging"
	"github.com/posfleet/printpool/internal/store"
	"github.com/posfleet/printpool/internal/transport"
	"github.com/posfleet/printpool/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	sender := webhook.NewSender(cfg.Webhooks, log.Named("webhook"))
	sender.Start()
	defer sender.Stop()

	pool := core.NewPool(st, sender, log.Named("pool"))
	defer pool.Close()

	restored, err := st.LoadPrinters(context.Background())
	if err != nil {
		return err
	}
	pool.Restore(restored)
	log.Info("printers restored", zap.Int("count", len(restored)))

	dispatcher := core.NewDispatcher(pool, core.DispatcherConfig{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		Timeouts: transport.Timeouts{
			Open:  cfg.Transports.OpenTimeout,
			Write: cfg.Transports.WriteTimeout,
		},
	}, sender, log.Named("dispatch"))

	auth, err := middleware.NewAuthMiddleware(st)
	if err != nil {
		return err
	}

	router := api.NewRouter(pool, dispatcher, auth, log.Named("http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
