package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"coursebook/internal/adapters/email"
	web "coursebook/internal/adapters/http"
	"coursebook/internal/adapters/http/perf"
	"coursebook/internal/adapters/storage"
	accountstore "coursebook/internal/adapters/storage/account"
	auditstore "coursebook/internal/adapters/storage/audit"
	bookingstore "coursebook/internal/adapters/storage/booking"
	coursestore "coursebook/internal/adapters/storage/course"
	customerstore "coursebook/internal/adapters/storage/customer"
	lessonstore "coursebook/internal/adapters/storage/lesson"
	outboxstore "coursebook/internal/adapters/storage/outbox"
	registrationstore "coursebook/internal/adapters/storage/registration"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/domain/outbox"
	"coursebook/internal/i18n"
	"coursebook/internal/platform/config"
	"coursebook/internal/platform/scheduler"
	"coursebook/internal/platform/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

// newLogger logs JSON in production and text elsewhere.
func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, version, cfg.OTelEndpoint)
	if err != nil {
		slog.Warn("telemetry_event", "event", "tracing_unavailable", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("telemetry_event", "event", "flush_failed", "error", err)
		}
	}()

	db, err := sql.Open("sqlite", storage.DSN(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timed := storage.NewTimedDB(db, collector, cfg.SlowQuery)
	stores := web.Stores{
		Accounts:      accountstore.NewSQLiteStore(timed),
		Audit:         auditstore.NewSQLiteStore(timed),
		Bookings:      bookingstore.NewSQLiteStore(timed),
		Courses:       coursestore.NewSQLiteStore(timed),
		Customers:     customerstore.NewSQLiteStore(timed),
		Lessons:       lessonstore.NewSQLiteStore(timed),
		Outbox:        outboxstore.NewSQLiteStore(timed),
		Registrations: registrationstore.NewSQLiteStore(timed),
	}

	if err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.AccountDeps{
		Accounts:  stores.Accounts,
		Customers: stores.Customers,
		Audit:     stores.Audit,
	}, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	var sender email.Sender
	if cfg.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailReplyTo)
		slog.Info("email_event", "event", "sender_configured", "provider", "resend")
	} else {
		sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_event", "event", "delivery_disabled", "reason", "COURSEBOOK_RESEND_API_KEY not set")
		}
	}
	processor := orchestrators.NewOutboxProcessor(stores.Outbox,
		map[string]orchestrators.ActionExecutor{
			outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender, ReplyTo: cfg.EmailReplyTo},
		},
		orchestrators.WithBackoff(cfg.OutboxBackoff, cfg.OutboxBackoffMax),
		orchestrators.WithBatchSize(cfg.OutboxBatchSize),
	)

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	server := web.NewServer(web.Deps{
		Stores:  stores,
		Outbox:  processor,
		Catalog: catalog,
		Perf:    collector,
	}, web.Config{
		CSRFKey:        csrfKey,
		SecureCookies:  cfg.SecureCookies,
		TrustedOrigins: cfg.TrustedOrigins,
		SessionTTL:     cfg.SessionTTL,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		SlowRequest:    cfg.SlowRequest,
		Location:       cfg.Location(),
	})

	jobs := scheduler.New(cfg.Location())
	if err := jobs.Add("outbox", cfg.OutboxSchedule, func(ctx context.Context) error {
		res, err := processor.ProcessPending(ctx)
		if res.Processed > 0 {
			slog.Info("outbox_event", "event", "batch_processed",
				"processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed)
		}
		return err
	}); err != nil {
		return err
	}
	if err := jobs.Add("complete_lessons", cfg.CompletionSchedule, func(ctx context.Context) error {
		_, err := orchestrators.ExecuteCompletePastLessons(ctx, orchestrators.CompletePastLessonsDeps{
			Lessons: stores.Lessons,
			Courses: stores.Courses,
		})
		return err
	}); err != nil {
		return err
	}
	if err := jobs.Add("sweep", cfg.SweepSchedule, func(context.Context) error {
		sessions, visitors := server.Sweep(time.Now())
		slog.Debug("sweep_event", "sessions", sessions, "visitors", visitors)
		return nil
	}); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_start", "addr", cfg.Addr, "version", version, "env", cfg.Env,
			"schema", storage.LatestSchemaVersion(), "timezone", cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		jobs.Start()
		<-gctx.Done()
		slog.Info("server_stop", "reason", context.Cause(gctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		if err := jobs.Stop(shutdownCtx); err != nil {
			slog.Warn("scheduler_stop_timeout", "error", err)
		}
		return nil
	})
	return g.Wait()
}
