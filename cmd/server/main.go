package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/config"
	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/flavor"
	"github.com/DoyleJ11/party-board-backend/internal/history"
	"github.com/DoyleJ11/party-board-backend/internal/httpapi"
	"github.com/DoyleJ11/party-board-backend/internal/hub"
	"github.com/DoyleJ11/party-board-backend/internal/session"
	"github.com/DoyleJ11/party-board-backend/internal/ws"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	board := engine.DefaultBoard()
	if cfg.BoardFile != "" {
		if board, err = engine.LoadBoard(cfg.BoardFile); err != nil {
			return err
		}
		log.Info("board loaded", zap.String("file", cfg.BoardFile), zap.Int("spaces", len(board.Spaces)))
	}

	var gen flavor.Generator = flavor.Fallback{}
	if cfg.FlavorURL != "" {
		gen = flavor.NewHTTPGenerator(cfg.FlavorURL, cfg.FlavorTimeout)
	}

	var (
		recorder history.Recorder
		archive  httpapi.History
	)
	if cfg.DatabaseURL != "" {
		db, openErr := history.Open(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, db.Close()) }()
		recorder, archive = db, db
	} else {
		mem := &history.MemoryRecorder{}
		recorder, archive = mem, mem
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, session.Config{
		Board:      board,
		RoundLimit: cfg.RoundLimit,
		Flavor:     flavor.NewSafe(gen, cfg.FlavorTimeout, log),
		Recorder:   recorder,
	}, hub.WithLogger(log))
	defer h.Close()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, httpapi.Options{
			Logger:  log,
			History: archive,
			WS: ws.Config{
				ReadTimeout:    cfg.WSReadTimeout,
				OriginPatterns: cfg.AllowedOrigins,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		// Hijacked websocket links are not tracked by Shutdown; closing the
		// hub ends their sessions.
		h.Close()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
