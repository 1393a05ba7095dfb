package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/handler"
	chathandler "github.com/celeste-app/celeste/backend/internal/handler/chat"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/internal/observability"
	"github.com/celeste-app/celeste/backend/internal/service/ai"
	"github.com/celeste-app/celeste/backend/internal/service/chat"
	"github.com/celeste-app/celeste/backend/internal/service/conversation"
	"github.com/celeste-app/celeste/backend/internal/service/export"
	"github.com/celeste-app/celeste/backend/internal/service/mail"
	"github.com/celeste-app/celeste/backend/internal/storage"
	"github.com/celeste-app/celeste/backend/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.Setup(os.Stdout, slog.LevelInfo)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	gateway, err := storage.Open(cfg.Store)
	if err != nil {
		logger.Error("failed to configure session store", "err", err)
		os.Exit(1)
	}
	logger.Info("session store configured", "backend", cfg.Store.Backend)

	personaStore := persona.NewMemoryStore(persona.Seed())
	active, ok := persona.Resolve(personaStore, cfg.Chat.PersonaID)
	if !ok {
		logger.Error("no persona available")
		os.Exit(1)
	}

	repo := chat.NewRepository(gateway)

	var turns chathandler.TurnHandler
	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		logger.Warn("continuing without AI functionality", "provider", cfg.AI.Provider, "err", err)
	} else {
		turns = conversation.NewService(repo, completer, active, conversation.WithLocation(cfg.Chat.Location))
		logger.Info("AI service initialized", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	}

	var finalizer chathandler.Finalizer
	if mailer, err := mail.NewMailer(cfg.Mail, active.Name); err != nil {
		logger.Warn("continuing without email export", "err", err)
	} else {
		finalizer = export.NewService(repo, mailer, active.Name)
	}

	var nt *transport.NATSTransport
	if cfg.NATS.Enabled() {
		nt, err = transport.NewNATSTransport(cfg.NATS, transport.NewDispatcher(turns, repo, finalizer))
		if err != nil {
			logger.Error("failed to start NATS transport", "err", err)
			os.Exit(1)
		}
		if err := nt.Start(); err != nil {
			logger.Error("failed to subscribe NATS subjects", "err", err)
			os.Exit(1)
		}
	}

	router := handler.NewRouter(cfg.Server, active, turns, repo, finalizer)

	startServer(ctx, cfg.Server, router)

	if nt != nil {
		if err := nt.Close(); err != nil {
			logger.Warn("NATS close failed", "err", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gateway.Close(closeCtx); err != nil {
		logger.Warn("session store close failed", "err", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	observability.Logger().Info("Celeste backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		observability.Logger().Error("server error", "err", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
