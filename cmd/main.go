// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ElazAzel/inkmax-sub002/internal/config"
	"github.com/ElazAzel/inkmax-sub002/internal/database"
	"github.com/ElazAzel/inkmax-sub002/internal/draft"
	"github.com/ElazAzel/inkmax-sub002/internal/draft/sqlite"
	"github.com/ElazAzel/inkmax-sub002/internal/handler"
	"github.com/ElazAzel/inkmax-sub002/internal/repository"
	"github.com/ElazAzel/inkmax-sub002/internal/repository/memory"
	"github.com/ElazAzel/inkmax-sub002/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// stores is the persistence surface the services depend on.
type stores struct {
	events        service.EventStore
	registrations service.RegistrationStore
	tickets       service.TicketStore
	blocks        service.BlockStore
	bookings      service.BookingStore
	close         func()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		db := memory.New()
		return &stores{
			events:        db.Events(),
			registrations: db.Registrations(),
			tickets:       db.Tickets(),
			blocks:        db.Blocks(),
			bookings:      db.Bookings(),
			close:         func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("connected to postgres", slog.String("host", cfg.Postgres.Host), slog.String("db", cfg.Postgres.DBName))
	return &stores{
		events:        repository.NewEventRepository(pool),
		registrations: repository.NewRegistrationRepository(pool),
		tickets:       repository.NewTicketRepository(pool),
		blocks:        repository.NewBlockRepository(pool),
		bookings:      repository.NewBookingRepository(pool),
		close:         pool.Close,
	}, nil
}

func openDrafts(cfg config.Draft) (*draft.Cache, func(), error) {
	if cfg.Driver == "memory" {
		return draft.New(draft.NewMemoryStore(), cfg.TTL), func() {}, nil
	}
	store, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("drafts: %w", err)
	}
	return draft.New(store, cfg.TTL), func() { _ = store.Close() }, nil
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open storage ──────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	drafts, closeDrafts, err := openDrafts(cfg.Draft)
	if err != nil {
		return err
	}
	defer closeDrafts()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	dispatcher := service.NewDispatcher(service.NewLogNotifier(log), log)
	defer dispatcher.Wait()

	gate := service.NewCapacityGate(st.events, st.registrations, nil)
	issuer := service.NewTicketIssuer(st.tickets, service.TicketIssuerConfig{
		CodeLength:     cfg.Tickets.CodeLength,
		CodeAttempts:   cfg.Tickets.CodeAttempts,
		VisibilityWait: cfg.Tickets.VisibilityWait,
	}, log)

	h := handler.New(
		service.NewEventService(st.events, gate, drafts, log),
		service.NewRegistrationService(st.events, st.registrations, gate, issuer, drafts, dispatcher, log),
		service.NewCheckInProcessor(st.tickets, log),
		service.NewBookingService(st.blocks, st.bookings, dispatcher, log),
		log,
	)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(h, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", slog.String("addr", srv.Addr), slog.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}
