package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Versifine/warden/internal/admin"
	"github.com/Versifine/warden/internal/config"
	"github.com/Versifine/warden/internal/console"
	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/logger"
	"github.com/Versifine/warden/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	noConsole := flag.Bool("no-console", false, "do not read operator commands from stdin")
	flag.Parse()

	cfg, result, err := config.Load(*configPath)
	if err != nil {
		logger.L().Error().Err(err).Str("path", *configPath).Msg("Failed to load config")
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log := logger.Component("main")
	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create server")
		os.Exit(1)
	}
	srv.Bus().Subscribe(event.EventChatBroadcast, event.NewChatLogger(logger.Component("chat")))

	errs := make(chan error, 4)
	run := func(name string, fn func(context.Context) error) {
		go func() {
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("service", name).Msg("service stopped")
				errs <- err
			}
		}()
	}

	run("listener", srv.ListenTCP)
	if cfg.WebSocket.Enabled {
		run("websocket", srv.ListenWebSocket)
	}
	if cfg.Admin.Enabled {
		api := admin.New(srv, cfg.Logging.Level == "debug")
		run("admin", func(ctx context.Context) error {
			return api.Serve(ctx, cfg.Admin.Addr())
		})
	}
	if !*noConsole {
		go func() {
			if err := console.New(srv, stop).Start(ctx); err != nil {
				log.Warn().Err(err).Msg("console stopped")
			}
		}()
	}
	go func() {
		select {
		case <-errs:
			stop()
		case <-ctx.Done():
		}
	}()

	log.Info().Str("addr", cfg.Listen.Addr()).Int("tick_rate", cfg.Server.TickRate).Msg("server starting")
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
