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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"attester/internal/attestation"
	"attester/internal/audit"
	"attester/internal/chain"
	"attester/internal/credential"
	"attester/internal/keys"
	"attester/internal/message"
	"attester/internal/platform/config"
	"attester/internal/platform/httpserver"
	"attester/internal/platform/logger"
	"attester/internal/platform/metrics"
	platformredis "attester/internal/platform/redis"
	"attester/internal/session"
	"attester/internal/terms"
	httpapi "attester/internal/transport/http"
)

const auditBufferSize = 256

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	keyring, err := keys.NewKeyring(cfg.AuthenticationSeed, cfg.AssertionSeed, cfg.KeyAgreementSeed, cfg.PayerSeed)
	if err != nil {
		return err
	}

	ledger := chain.NewInMemoryLedger()
	ledger.RegisterAttester(keyring.DID())
	ledger.RegisterPayer(keyring.PayerAddress(), keyring.PayerPublicKey())

	sessionStore, closeRedis, err := newSessionStore(cfg, log)
	if err != nil {
		return err
	}
	if closeRedis != nil {
		defer closeRedis()
	}

	credentialStore, closeDB, err := newCredentialStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if closeDB != nil {
		defer closeDB()
	}

	publisher := audit.NewPublisher(auditBufferSize, log)
	sink, closeSink, err := newAuditSink(cfg, log)
	if err != nil {
		return err
	}
	if closeSink != nil {
		defer closeSink()
	}
	worker := audit.NewWorker(publisher, sink, log)

	tokens := session.NewTokenService(cfg.SessionTokenSecret, cfg.SessionTTL)
	sessions := session.NewService(sessionStore, keyring, tokens, m, log, cfg.SessionTTL)
	codec := message.NewCodec(keyring)

	attester := attestation.NewService(ledger, keyring, m, log)
	credentials := credential.NewService(credentialStore, attester, publisher, m, log)
	termsService := terms.NewService(codec, keyring, sessions, publisher, m, log, cfg.QuoteTTL)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Users:          httpapi.NewUserHandler(sessions, termsService, credentials, log),
		Admin:          httpapi.NewAdminHandler(credentials, log),
		SessionTokens:  tokens,
		AdminUser:      cfg.AdminUsername,
		AdminPassword:  cfg.AdminPassword,
		RequestTimeout: 30 * time.Second,
		Logger:         log,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		log.Info("starting attester",
			"addr", cfg.Addr,
			"did", keyring.DID().String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func newSessionStore(cfg config.Server, log *slog.Logger) (session.Store, func(), error) {
	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		log.Info("using in-memory session store")
		return session.NewInMemoryStore(), nil, nil
	}
	log.Info("using redis session store")
	return session.NewRedisStore(rdb.Client), func() { _ = rdb.Close() }, nil
}

func newCredentialStore(ctx context.Context, cfg config.Server, log *slog.Logger) (credential.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory credential store")
		return credential.NewInMemoryStore(), nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := credential.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("using postgres credential store")
	return store, pool.Close, nil
}

func newAuditSink(cfg config.Server, log *slog.Logger) (audit.Sink, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NewLogSink(log), nil, nil
	}
	sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("audit events flowing to kafka", "topic", cfg.KafkaTopic)
	return sink, sink.Close, nil
}
