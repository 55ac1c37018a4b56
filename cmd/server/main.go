package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/roomcast/internal/auth"
	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/config"
	"github.com/omochice/roomcast/internal/logging"
	"github.com/omochice/roomcast/internal/store"
	"github.com/omochice/roomcast/internal/transport"
	"github.com/omochice/roomcast/internal/transport/tcp"
	"github.com/omochice/roomcast/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal arrives or a server
// fails. Deferred cleanup runs before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	defer func() { _ = log.Sync() }()

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := store.OpenBadgerHistory(cfg.HistoryPath, log.Named("history"))
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing history store...")
		_ = history.Close()
	}()

	var unread chat.UnreadStore = chat.NewMemoryUnread()
	if cfg.UnreadBackend == config.UnreadRedis {
		redisUnread, err := store.DialRedisUnread(ctx, store.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
		if err != nil {
			return err
		}
		defer redisUnread.Close()
		unread = redisUnread
	}

	hub := chat.NewHub(
		chat.WithLogger(log.Named("hub")),
		chat.WithVerifier(verifier),
		chat.WithLimiter(chat.NewLimiter(cfg.Budgets())),
		chat.WithUnreadStore(unread),
		chat.WithHistory(history),
		chat.WithMaxMessageLength(cfg.MaxMessageLength),
		chat.WithAuthTimeout(cfg.AuthTimeout),
		chat.WithIdleTimeout(cfg.IdleTimeout),
		chat.WithPruneInterval(cfg.PruneInterval),
	)

	opts := []transport.Option{
		transport.WithLogger(log.Named("transport")),
		transport.WithQueueSize(cfg.SendQueueSize),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hub.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.SinglePort {
		srv := tcp.NewUnified(cfg.ListenAddr, hub, opts...)
		g.Go(func() error { return srv.Start(ctx) })
	} else {
		tcpSrv := tcp.New(cfg.ListenAddr, hub, opts...)
		wsSrv := ws.New(cfg.WSAddr, hub, opts...)
		g.Go(func() error { return tcpSrv.Start(ctx) })
		g.Go(func() error { return wsSrv.Start(ctx) })
	}

	log.Info("roomcast started",
		zap.String("tcp", cfg.ListenAddr), zap.String("ws", cfg.WSAddr), zap.Bool("singlePort", cfg.SinglePort),
		zap.String("unread", cfg.UnreadBackend))

	err = g.Wait()
	hub.Shutdown()
	if err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}
