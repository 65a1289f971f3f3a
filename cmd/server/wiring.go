package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"vendorkyc/internal/platform/config"
	"vendorkyc/internal/platform/kafka"
	"vendorkyc/internal/platform/postgres"
	"vendorkyc/internal/platform/redis"
	"vendorkyc/internal/verification/idlock"
	"vendorkyc/internal/verification/notify"
	"vendorkyc/internal/verification/ports"
	"vendorkyc/internal/verification/providers"
	"vendorkyc/internal/verification/store/account"
	"vendorkyc/internal/verification/store/record"
	audit "vendorkyc/pkg/platform/audit"
	auditmemory "vendorkyc/pkg/platform/audit/store/memory"
	pgaudit "vendorkyc/pkg/platform/audit/store/postgres"
	"vendorkyc/pkg/platform/audit/worker"
	txcontext "vendorkyc/pkg/platform/tx"
)

// stores groups the persistence backends selected by configuration.
type stores struct {
	db       *sql.DB
	records  ports.RecordStore
	accounts accountStore
	audit    audit.Store
	tx       ports.TxRunner
}

// accountStore is the union the service needs from one account backend.
type accountStore interface {
	ports.AccountStore
	ports.AccountProvisioner
}

// openStores uses Postgres when DATABASE_URL is set and in-memory stores
// otherwise. The in-memory mode is for local development only.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return &stores{
			records:  record.NewInMemory(),
			accounts: account.NewInMemory(),
			audit:    auditmemory.NewInMemoryStore(),
			tx:       txcontext.NewLocalRunner(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &stores{
		db:       db,
		records:  record.NewPostgres(db),
		accounts: account.NewPostgres(db),
		audit:    pgaudit.New(db),
		tx:       txcontext.NewSQLRunner(db),
	}, nil
}

// newLocker uses Redis when REDIS_URL is set. The client is nil for the
// process-local lock.
func newLocker(ctx context.Context, cfg config.RedisConfig, secret []byte, logger *slog.Logger) (idlock.Locker, *redis.Client, error) {
	hasher := idlock.NewHasher(secret)
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		logger.WarnContext(ctx, "REDIS_URL not set, id number lock is process-local")
		return idlock.NewMemoryLocker(hasher, cfg.LockTTL), nil, nil
	}
	return idlock.NewRedisLocker(client.Client, hasher, cfg.LockTTL), client, nil
}

// recognition holds the provider clients. Text and face detection are
// mandatory; the comparator registry needs at least one entry.
type recognition struct {
	text        ports.TextDetector
	faces       ports.FaceDetector
	comparators *providers.ComparatorRegistry
}

func buildRecognition(cfg config.Config) (*recognition, error) {
	p := cfg.Providers
	var errs []error
	if p.OCRURL == "" {
		errs = append(errs, errors.New("OCR_URL is required"))
	}
	if p.FaceDetectURL == "" {
		errs = append(errs, errors.New("FACE_DETECT_URL is required"))
	}
	if !p.ComparatorsConfigured() {
		errs = append(errs, errors.New("at least one face comparator URL is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Comparators get the per-method timeout; the pool enforces it as well.
	timeout := cfg.Verification.ComparatorTimeout
	reg := providers.NewComparatorRegistry()
	if p.EmbeddingURL != "" {
		if err := reg.Register(providers.NewEmbeddingComparator(p.EmbeddingURL, "", timeout)); err != nil {
			return nil, err
		}
	}
	if p.DeepVerifyURL != "" {
		if err := reg.Register(providers.NewDeepVerifyComparator(p.DeepVerifyURL, "", timeout)); err != nil {
			return nil, err
		}
	}
	if p.CloudCompareURL != "" {
		if err := reg.Register(providers.NewCloudCompareComparator(p.CloudCompareURL, p.CloudCompareKey, timeout)); err != nil {
			return nil, err
		}
	}
	return &recognition{
		text:        providers.NewOCRClient(p.OCRURL, p.OCRAPIKey, p.HTTPTimeout),
		faces:       providers.NewFaceDetectClient(p.FaceDetectURL, "", p.HTTPTimeout),
		comparators: reg,
	}, nil
}

// newNotifier sends through SendGrid when an API key is configured and only
// logs otherwise.
func newNotifier(cfg config.EmailConfig, logger *slog.Logger) ports.Notifier {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set, notifications are only logged")
		return notify.NewLog(logger)
	}
	return notify.NewSendGrid(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName, map[string]string{
		ports.TemplateTrialStarted:    cfg.TrialStartedTmpl,
		ports.TemplateTrialEndingSoon: cfg.TrialEndingTmpl,
	}, notify.WithLogger(logger), notify.WithSandbox(cfg.SandboxMode))
}

// newRelay builds the outbox relay. Both results are nil when there is no
// database to read the outbox from or no brokers to publish to.
func newRelay(ctx context.Context, cfg config.KafkaConfig, db *sql.DB, logger *slog.Logger) (*worker.Worker, *kafka.Producer, error) {
	if db == nil || len(cfg.Brokers) == 0 {
		logger.InfoContext(ctx, "audit outbox relay disabled")
		return nil, nil, nil
	}
	producer, err := kafka.NewProducer(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
		producer.Close()
		return nil, nil, err
	}
	w := worker.NewWorker(pgaudit.NewOutbox(db), kafka.NewAuditSink(producer), cfg.PollInterval, cfg.BatchSize, logger)
	return w, producer, nil
}

// dependencyChecks lists the backends /readyz probes. In-memory backends
// have nothing to probe.
func dependencyChecks(db *sql.DB, cache *redis.Client, producer *kafka.Producer) []dependencyCheck {
	var checks []dependencyCheck
	if db != nil {
		checks = append(checks, dependencyCheck{name: "postgres", check: db.PingContext})
	}
	if cache != nil {
		checks = append(checks, dependencyCheck{name: "redis", check: cache.Health})
	}
	if producer != nil {
		checks = append(checks, dependencyCheck{name: "kafka", check: producer.Health})
	}
	return checks
}
