// main wires the registration orchestrator: stores, validators, downstream
// clients, the event pipeline, and the HTTP surface. Business logic lives in
// the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"registrar/internal/org"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/mail"
	"registrar/internal/platform/metrics"
	platformredis "registrar/internal/platform/redis"
	"registrar/internal/platform/token"
	"registrar/internal/registration/clients"
	"registrar/internal/registration/coordinator"
	"registrar/internal/registration/events"
	"registrar/internal/registration/handler"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/progress"
	"registrar/internal/registration/service"
	"registrar/internal/registration/store/directory"
	sessionstore "registrar/internal/registration/store/session"
	"registrar/internal/registration/validation"
	httptransport "registrar/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session store: Redis when configured, memory otherwise.
	var sessions sessionstore.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	health := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionstore.NewRedis(redisClient.Client)
		health["redis"] = redisClient
		log.Info("session store: redis")
	} else {
		sessions = sessionstore.NewInMemory()
		log.Warn("session store: in-memory, sessions will not survive restarts")
	}

	// Duplicate-check directories: optional per deployment.
	var members ports.MemberDirectory = directory.Empty{}
	if cfg.Postgres.MemberDSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.MemberDSN)
		if err != nil {
			log.Error("member directory unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		members = directory.NewMemberStore(db)
		health["member_directory"] = sqlHealth{db}
	}
	var legacy ports.LegacyDirectory = directory.Empty{}
	if cfg.Postgres.LegacyDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.LegacyDSN)
		if err != nil {
			log.Error("legacy directory unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		legacy = directory.NewLegacyStore(pool)
		health["legacy_directory"] = poolHealth{pool}
	}

	duplicates := validation.NewDuplicateValidator(members, legacy, log)
	duplicates.Strict = cfg.Registration.DuplicateStrict
	pipeline := validation.NewPipeline(
		validation.NewEntityValidator(),
		validation.NewCrossEntityValidator(),
		validation.NewBusinessRuleValidator(validation.DefaultBusinessRules()),
		duplicates,
	)

	// Downstream entity services.
	entityClient := clients.NewEntityClient(cfg.Entities.BaseURL, log)
	coord := coordinator.New(entityClient.Services(), progress.NewTracker(log), log)

	// Organizations: seeded in memory; swap in the Postgres store when the
	// member database carries the organizations table.
	orgStore := org.NewInMemory()
	if err := org.SeedDefault(ctx, orgStore, cfg.Registration.DefaultAdminEmail, log); err != nil {
		log.Error("could not seed default organization", "error", err)
		os.Exit(1)
	}

	// Outbound mail.
	var sender ports.EmailSender
	if cfg.Mail.Host != "" {
		sender, err = mail.NewSMTPSender(cfg.Mail, log)
		if err != nil {
			log.Error("mail sender unavailable", "error", err)
			os.Exit(1)
		}
	} else {
		sender = mail.LogSender{Logger: log}
	}

	// Lifecycle events: bus always, Kafka sink when brokers are configured.
	bus := events.NewBus(cfg.Registration.EventBusCapacity, log)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka sink unavailable", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		worker := events.NewWorker(bus.Inbox(), sink, log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event worker stopped", "error", err)
			}
		}()
	}

	registrations := service.New(
		sessions,
		pipeline,
		coord,
		org.NewResolver(orgStore, log),
		sender,
		entityClient,
		service.WithLogger(log),
		service.WithEmitter(bus),
		service.WithMetrics(metrics.New()),
	)

	// Expired-session sweeper.
	go func() {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept, err := registrations.SweepExpired(ctx, cfg.Sweep.Batch)
				if err != nil {
					log.Error("session sweep failed", "error", err)
					continue
				}
				if swept > 0 {
					log.Info("swept expired sessions", "count", swept)
				}
			}
		}
	}()

	adminTokens := token.NewService(cfg.Admin.JWTSigningKey, cfg.Admin.TokenIssuer, cfg.Admin.TokenAudience)
	router := httptransport.NewRouter(handler.New(registrations, adminTokens, log), health)
	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("registrar listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

type sqlHealth struct{ db *sql.DB }

func (h sqlHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }

type poolHealth struct{ pool *pgxpool.Pool }

func (h poolHealth) Health(ctx context.Context) error { return h.pool.Ping(ctx) }
