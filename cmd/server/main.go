package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mksbai/backend-chat-buy-crypto/core/config"
	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/core/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg) // panic on error

	mode := logger.WithDevelopment(cfg.AppName)
	if cfg.IsProd() {
		mode = logger.WithProduction(cfg.AppName)
	}
	log := logger.New(mode, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))

	a := newApp(cfg, log)

	srv := server.New(cfg.Addr,
		server.WithLogger(log),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithIdleTimeout(cfg.IdleTimeout),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(a.sessions.Run(ctx))
	eg.Go(srv.Run(ctx, a.handler()))

	log.Info("application started", logger.Component("main"), "addr", cfg.Addr, "env", cfg.AppEnv)

	if err := eg.Wait(); err != nil {
		log.Error("application failed", logger.Component("main"), logger.Error(err))
		os.Exit(1)
	}

	log.Info("application stopped", logger.Component("main"))
}
