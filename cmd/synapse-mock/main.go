package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/logging"
	"github.com/richsynapse/synapsehub-client/internal/mockbackend"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8101", "listen address")
	delay := flag.Duration("chunk-delay", 150*time.Millisecond, "pause between streamed chunks")
	requireLogin := flag.Bool("require-login", false, "refuse streams without a session cookie")
	seedUser := flag.String("user", "demo", "account created at startup (password demo-pass)")
	flag.Parse()

	logger, closer, err := logging.New(logging.Options{Level: "info", Environment: "mock"})
	if err != nil {
		panic(err)
	}
	defer closer.Close()
	defer func() { _ = logger.Sync() }()

	opts := []mockbackend.Option{mockbackend.WithChunkDelay(*delay)}
	if *requireLogin {
		opts = append(opts, mockbackend.WithLoginRequired())
	}
	backend := mockbackend.New(opts...)
	if *seedUser != "" {
		id := backend.AddUser(*seedUser, "demo-pass")
		logger.Info("seeded user", zap.String("account", *seedUser), zap.Int64("id", id))
	}

	srv := &http.Server{Addr: *addr, Handler: backend.Handler(), ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock backend listening", zap.String("addr", *addr), zap.String("base_url", "http://"+*addr+"/api"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
