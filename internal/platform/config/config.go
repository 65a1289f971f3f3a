package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgstrings "vendorkyc/pkg/platform/strings"
)

// Config is the full service configuration. It is built once in main and
// passed explicitly into constructors.
type Config struct {
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Storage      StorageConfig
	Providers    ProvidersConfig
	Verification VerificationConfig
	Email        EmailConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	AdminToken    string
	LogLevel      string
}

// DatabaseConfig points at Postgres. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the advisory lock backend. An empty URL selects the
// in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
	BatchSize    int
}

// StorageConfig configures the signed local object store.
type StorageConfig struct {
	BaseDir       string
	PublicBaseURL string
	SigningKey    string
	URLTTL        time.Duration
	MaxImageBytes int64
}

// ProvidersConfig holds endpoints of the external recognition services. A
// comparator with an empty URL is not registered.
type ProvidersConfig struct {
	OCRURL          string
	OCRAPIKey       string
	OCRLanguageHint string
	FaceDetectURL   string
	EmbeddingURL    string
	DeepVerifyURL   string
	CloudCompareURL string
	CloudCompareKey string
	HTTPTimeout     time.Duration
}

// VerificationConfig holds the decision thresholds and deadlines.
type VerificationConfig struct {
	MatchThreshold     float64
	ApprovalThreshold  float64
	ComparatorTimeout  time.Duration
	OuterDeadline      time.Duration
	PromotionalTier    string
	PromotionalPeriod  time.Duration
	BlurThreshold      float64
	MinBrightness      float64
	MaxBrightness      float64
	MinFaceFraction    float64
	AuthenticityMinAvg float64
}

// EmailConfig configures the SendGrid dispatcher and reminder schedule.
type EmailConfig struct {
	SendGridAPIKey   string
	FromAddress      string
	FromName         string
	TrialStartedTmpl string
	TrialEndingTmpl  string
	ReminderSchedule string
	ReminderLeadTime time.Duration
	SandboxMode      bool
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Values already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Server: Server{
			Addr:          e.str("VENDORKYC_ADDR", ":8080"),
			JWTSigningKey: e.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     e.str("JWT_ISSUER", "vendorkyc"),
			JWTAudience:   e.str("JWT_AUDIENCE", "vendorkyc-api"),
			AdminToken:    e.str("ADMIN_API_TOKEN", ""),
			LogLevel:      e.str("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      e.duration("ID_NUMBER_LOCK_TTL", 45*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      e.list("KAFKA_BROKERS"),
			AuditTopic:   e.str("KAFKA_AUDIT_TOPIC", "kyc.audit"),
			PollInterval: e.duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    e.int("OUTBOX_BATCH_SIZE", 100),
		},
		Storage: StorageConfig{
			BaseDir:       e.str("STORAGE_DIR", "./data/objects"),
			PublicBaseURL: e.str("STORAGE_PUBLIC_URL", "http://localhost:8080/objects"),
			SigningKey:    e.str("STORAGE_SIGNING_KEY", "dev-storage-key-change-in-production"),
			URLTTL:        e.duration("STORAGE_URL_TTL", 7*24*time.Hour),
			MaxImageBytes: int64(e.int("MAX_IMAGE_BYTES", 10<<20)),
		},
		Providers: ProvidersConfig{
			OCRURL:          e.str("OCR_URL", ""),
			OCRAPIKey:       e.str("OCR_API_KEY", ""),
			OCRLanguageHint: e.str("OCR_LANGUAGE_HINT", "en"),
			FaceDetectURL:   e.str("FACE_DETECT_URL", ""),
			EmbeddingURL:    e.str("EMBEDDING_COMPARATOR_URL", ""),
			DeepVerifyURL:   e.str("DEEP_VERIFY_URL", ""),
			CloudCompareURL: e.str("CLOUD_COMPARE_URL", ""),
			CloudCompareKey: e.str("CLOUD_COMPARE_API_KEY", ""),
			HTTPTimeout:     e.duration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
		},
		Verification: VerificationConfig{
			MatchThreshold:     e.float("MATCH_THRESHOLD", 0.75),
			ApprovalThreshold:  e.float("APPROVAL_THRESHOLD", 0.5),
			ComparatorTimeout:  e.duration("COMPARATOR_TIMEOUT", 12*time.Second),
			OuterDeadline:      e.duration("VERIFICATION_DEADLINE", 30*time.Second),
			PromotionalTier:    e.str("PROMOTIONAL_TIER", "premium_trial"),
			PromotionalPeriod:  e.duration("PROMOTIONAL_PERIOD", 30*24*time.Hour),
			BlurThreshold:      e.float("LIVENESS_BLUR_THRESHOLD", 100),
			MinBrightness:      e.float("LIVENESS_MIN_BRIGHTNESS", 40),
			MaxBrightness:      e.float("LIVENESS_MAX_BRIGHTNESS", 220),
			MinFaceFraction:    e.float("LIVENESS_MIN_FACE_FRACTION", 0.1),
			AuthenticityMinAvg: e.float("AUTHENTICITY_MIN_CONFIDENCE", 80),
		},
		Email: EmailConfig{
			SendGridAPIKey:   e.str("SENDGRID_API_KEY", ""),
			FromAddress:      e.str("EMAIL_FROM_ADDRESS", "no-reply@vendorkyc.local"),
			FromName:         e.str("EMAIL_FROM_NAME", "Marketplace Onboarding"),
			TrialStartedTmpl: e.str("SENDGRID_TEMPLATE_TRIAL_STARTED", ""),
			TrialEndingTmpl:  e.str("SENDGRID_TEMPLATE_TRIAL_ENDING", ""),
			ReminderSchedule: e.str("REMINDER_SCHEDULE", "0 9 * * *"),
			ReminderLeadTime: e.duration("REMINDER_LEAD_TIME", 48*time.Hour),
			SandboxMode:      e.bool("SENDGRID_SANDBOX", false),
		},
	}
	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c Config) Validate() error {
	var errs []error
	if c.Verification.MatchThreshold <= 0 || c.Verification.MatchThreshold > 1 {
		errs = append(errs, errors.New("MATCH_THRESHOLD must be in (0,1]"))
	}
	if c.Verification.ApprovalThreshold <= 0 || c.Verification.ApprovalThreshold > 1 {
		errs = append(errs, errors.New("APPROVAL_THRESHOLD must be in (0,1]"))
	}
	if c.Verification.ComparatorTimeout <= 0 || c.Verification.OuterDeadline <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Verification.ComparatorTimeout >= c.Verification.OuterDeadline {
		errs = append(errs, errors.New("COMPARATOR_TIMEOUT must be shorter than VERIFICATION_DEADLINE"))
	}
	if c.Verification.MinBrightness >= c.Verification.MaxBrightness {
		errs = append(errs, errors.New("LIVENESS_MIN_BRIGHTNESS must be below LIVENESS_MAX_BRIGHTNESS"))
	}
	if c.Storage.URLTTL <= 0 {
		errs = append(errs, errors.New("STORAGE_URL_TTL must be positive"))
	}
	if c.Kafka.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// ComparatorsConfigured reports whether at least one biometric comparator
// endpoint is set. The server refuses to start otherwise.
func (p ProvidersConfig) ComparatorsConfigured() bool {
	return p.EmbeddingURL != "" || p.DeepVerifyURL != "" || p.CloudCompareURL != ""
}

type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) list(key string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(raw, ","))
}

func (e *envReader) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return v
}

func (e *envReader) fail(key string, err error) {
	e.err = errors.Join(e.err, fmt.Errorf("invalid %s: %w", key, err))
}
