package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "vendorkyc/internal/jwt_token"
	"vendorkyc/internal/platform/config"
	"vendorkyc/internal/platform/httpserver"
	"vendorkyc/internal/platform/logger"
	httpmetrics "vendorkyc/internal/platform/metrics"
	"vendorkyc/internal/verification/authenticity"
	"vendorkyc/internal/verification/biometric"
	"vendorkyc/internal/verification/duplicate"
	"vendorkyc/internal/verification/extraction"
	"vendorkyc/internal/verification/handler"
	"vendorkyc/internal/verification/liveness"
	"vendorkyc/internal/verification/metrics"
	"vendorkyc/internal/verification/objectstore"
	"vendorkyc/internal/verification/service"
	"vendorkyc/pkg/platform/audit/publishers/compliance"
	"vendorkyc/pkg/platform/middleware/metadata"
	request "vendorkyc/pkg/platform/middleware/request"
	"vendorkyc/pkg/platform/middleware/requesttime"
)

// main wires dependencies from configuration, serves HTTP and runs the
// background jobs until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vendorkyc:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := buildRecognition(cfg)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("stores: %w", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	locker, cache, err := newLocker(ctx, cfg.Redis, []byte(cfg.Storage.SigningKey), log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
	}

	objects, err := objectstore.NewLocal(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL,
		[]byte(cfg.Storage.SigningKey), objectstore.WithTTL(cfg.Storage.URLTTL))
	if err != nil {
		return err
	}

	verificationMetrics := metrics.New()
	pool, err := biometric.New(rec.comparators, objects,
		biometric.WithLogger(log),
		biometric.WithMetrics(verificationMetrics),
		biometric.WithThreshold(cfg.Verification.MatchThreshold),
		biometric.WithTimeout(cfg.Verification.ComparatorTimeout),
	)
	if err != nil {
		return err
	}

	v := cfg.Verification
	svc, err := service.New(service.Deps{
		Records:     st.records,
		Accounts:    st.accounts,
		Provisioner: st.accounts,
		Objects:     objects,
		Tx:          st.tx,
		Locker:      locker,
		Audit: compliance.New(st.audit,
			compliance.WithLogger(log),
			compliance.WithMetrics(compliance.NewMetrics()),
		),
		Notifier: newNotifier(cfg.Email, log),
		Extractor: extraction.New(objects, rec.text,
			extraction.WithLogger(log),
			extraction.WithLanguageHint(cfg.Providers.OCRLanguageHint),
		),
		Authenticity: authenticity.New(objects, rec.text,
			authenticity.WithLogger(log),
			authenticity.WithMinConfidence(v.AuthenticityMinAvg),
			authenticity.WithLanguageHint(cfg.Providers.OCRLanguageHint),
		),
		Biometric: pool,
		Liveness: liveness.New(objects, rec.faces,
			liveness.WithLogger(log),
			liveness.WithThresholds(liveness.Thresholds{
				BlurThreshold:   v.BlurThreshold,
				MinBrightness:   v.MinBrightness,
				MaxBrightness:   v.MaxBrightness,
				MinFaceFraction: v.MinFaceFraction,
			}),
		),
		Duplicates: duplicate.New(st.records, log),
	}, service.Config{
		ApprovalThreshold: v.ApprovalThreshold,
		OuterDeadline:     v.OuterDeadline,
		PromotionalTier:   v.PromotionalTier,
		PromotionalPeriod: v.PromotionalPeriod,
		URLRefreshWindow:  time.Hour,
		ReminderLeadTime:  cfg.Email.ReminderLeadTime,
	}, service.WithLogger(log), service.WithMetrics(verificationMetrics))
	if err != nil {
		return err
	}

	relay, producer, err := newRelay(ctx, cfg.Kafka, st.db, log)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if producer != nil {
		defer producer.Close()
	}

	router, err := newRouter(cfg, log, svc, objects, dependencyChecks(st.db, cache, producer)...)
	if err != nil {
		return err
	}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if relay != nil {
			_ = relay.Run(ctx)
		}
	}()

	reminders, err := service.NewReminderScheduler(svc, cfg.Email.ReminderSchedule, log)
	if err != nil {
		return err
	}
	reminders.Start()

	srv := httpserver.New(cfg.Server.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting vendorkyc", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			<-relayDone
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	reminders.Stop(shutdownCtx)
	<-relayDone
	return nil
}

func newRouter(cfg config.Config, log *slog.Logger, svc *service.Service, objects *objectstore.LocalStore, checks ...dependencyCheck) (http.Handler, error) {
	base, err := url.Parse(cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage public url: %w", err)
	}
	objectsPath := base.Path
	if objectsPath == "" {
		objectsPath = "/"
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	httpMetrics := httpmetrics.New()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", readyHandler(checks, log))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount(objectsPath, objects.Handler(log))

	handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService), cfg.Server.AdminToken,
		handler.WithMaxImageBytes(cfg.Storage.MaxImageBytes),
		handler.WithSubmitTimeout(cfg.Verification.OuterDeadline+15*time.Second),
	).Register(r)
	return r, nil
}
