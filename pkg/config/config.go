package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends for appeal records and drafts.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Appeals       AppealsConfig
	Remote        RemoteConfig
	Notifications NotificationsConfig
	Reminder      ReminderConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
	KeyPrefix   string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AppealsConfig governs storage, validation and SLA for the appeal workflow.
type AppealsConfig struct {
	StorageBackend       string
	StorageDir           string
	AuditDir             string
	DraftBackend         string
	DraftDir             string
	DraftTTL             time.Duration
	ReferenceSource      string
	ReferenceDataFile    string
	ResponseSLADays      int
	ScoringScheme        string
	MaxEvidenceSizeBytes int64
	MaxEvidenceCount     int
	AllowedEvidenceMIMEs []string
	DefaultReviewerID    string
	DefaultReviewerName  string
	DefaultReviewerEmail string
}

// RemoteConfig configures the external evaluation system used by cross-system submissions.
type RemoteConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

// NotificationsConfig holds channel endpoints; an empty URL falls back to log delivery.
type NotificationsConfig struct {
	EmailWebhookURL string
	PushWebhookURL  string
	SMSWebhookURL   string
	Timeout         time.Duration
	AdminRecipients []string
}

// ReminderConfig controls the deadline reminder sweep.
type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
	LeadTime time.Duration
	Workers  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		KeyPrefix:   v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxEvidence := v.GetInt64("APPEAL_EVIDENCE_MAX_SIZE")
	if maxEvidence <= 0 {
		maxEvidence = 10 * 1024 * 1024
	}
	slaDays := v.GetInt("APPEAL_RESPONSE_SLA_DAYS")
	if slaDays <= 0 {
		slaDays = 21
	}
	cfg.Appeals = AppealsConfig{
		StorageBackend:       strings.ToLower(v.GetString("APPEAL_STORAGE_BACKEND")),
		StorageDir:           v.GetString("APPEAL_STORAGE_DIR"),
		AuditDir:             v.GetString("APPEAL_AUDIT_DIR"),
		DraftBackend:         strings.ToLower(v.GetString("APPEAL_DRAFT_BACKEND")),
		DraftDir:             v.GetString("APPEAL_DRAFT_DIR"),
		DraftTTL:             parseDuration(v.GetString("APPEAL_DRAFT_TTL"), 7*24*time.Hour),
		ReferenceSource:      strings.ToLower(v.GetString("APPEAL_REFERENCE_SOURCE")),
		ReferenceDataFile:    v.GetString("APPEAL_REFERENCE_FILE"),
		ResponseSLADays:      slaDays,
		ScoringScheme:        v.GetString("APPEAL_SCORING_SCHEME"),
		MaxEvidenceSizeBytes: maxEvidence,
		MaxEvidenceCount:     v.GetInt("APPEAL_EVIDENCE_MAX_COUNT"),
		AllowedEvidenceMIMEs: splitAndTrim(v.GetString("APPEAL_EVIDENCE_ALLOWED_MIME_TYPES")),
		DefaultReviewerID:    v.GetString("APPEAL_DEFAULT_REVIEWER_ID"),
		DefaultReviewerName:  v.GetString("APPEAL_DEFAULT_REVIEWER_NAME"),
		DefaultReviewerEmail: v.GetString("APPEAL_DEFAULT_REVIEWER_EMAIL"),
	}

	cfg.Remote = RemoteConfig{
		Enabled:     v.GetBool("ENABLE_REMOTE_SUBMISSION"),
		BaseURL:     v.GetString("REMOTE_EVALUATION_BASE_URL"),
		APIKey:      v.GetString("REMOTE_EVALUATION_API_KEY"),
		Timeout:     parseDuration(v.GetString("REMOTE_EVALUATION_TIMEOUT"), 10*time.Second),
		MaxAttempts: v.GetInt("REMOTE_EVALUATION_MAX_ATTEMPTS"),
		BaseDelay:   parseDuration(v.GetString("REMOTE_EVALUATION_BASE_DELAY"), time.Second),
	}

	cfg.Notifications = NotificationsConfig{
		EmailWebhookURL: v.GetString("NOTIFY_EMAIL_WEBHOOK_URL"),
		PushWebhookURL:  v.GetString("NOTIFY_PUSH_WEBHOOK_URL"),
		SMSWebhookURL:   v.GetString("NOTIFY_SMS_WEBHOOK_URL"),
		Timeout:         parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
		AdminRecipients: splitAndTrim(v.GetString("NOTIFY_ADMIN_RECIPIENTS")),
	}

	cfg.Reminder = ReminderConfig{
		Enabled:  v.GetBool("ENABLE_APPEAL_REMINDERS"),
		Interval: parseDuration(v.GetString("APPEAL_REMINDER_INTERVAL"), time.Hour),
		LeadTime: parseDuration(v.GetString("APPEAL_REMINDER_LEAD_TIME"), 72*time.Hour),
		Workers:  v.GetInt("APPEAL_REMINDER_WORKERS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "staff_appeals")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_KEY_PREFIX", "appeals:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPEAL_STORAGE_BACKEND", BackendFile)
	v.SetDefault("APPEAL_STORAGE_DIR", "./data/appeals")
	v.SetDefault("APPEAL_AUDIT_DIR", "./data/audit")
	v.SetDefault("APPEAL_DRAFT_BACKEND", BackendFile)
	v.SetDefault("APPEAL_DRAFT_DIR", "./data/drafts")
	v.SetDefault("APPEAL_DRAFT_TTL", "168h")
	v.SetDefault("APPEAL_REFERENCE_SOURCE", BackendFile)
	v.SetDefault("APPEAL_REFERENCE_FILE", "./reference.yaml")
	v.SetDefault("APPEAL_RESPONSE_SLA_DAYS", 21)
	v.SetDefault("APPEAL_SCORING_SCHEME", "standard")
	v.SetDefault("APPEAL_EVIDENCE_MAX_SIZE", 10*1024*1024)
	v.SetDefault("APPEAL_EVIDENCE_MAX_COUNT", 10)
	v.SetDefault("APPEAL_EVIDENCE_ALLOWED_MIME_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,image/png,image/jpeg")
	v.SetDefault("APPEAL_DEFAULT_REVIEWER_ID", "hr-appeals-desk")
	v.SetDefault("APPEAL_DEFAULT_REVIEWER_NAME", "HR Appeals Desk")
	v.SetDefault("APPEAL_DEFAULT_REVIEWER_EMAIL", "")

	v.SetDefault("ENABLE_REMOTE_SUBMISSION", false)
	v.SetDefault("REMOTE_EVALUATION_BASE_URL", "http://localhost:9090")
	v.SetDefault("REMOTE_EVALUATION_API_KEY", "")
	v.SetDefault("REMOTE_EVALUATION_TIMEOUT", "10s")
	v.SetDefault("REMOTE_EVALUATION_MAX_ATTEMPTS", 3)
	v.SetDefault("REMOTE_EVALUATION_BASE_DELAY", "1s")

	v.SetDefault("NOTIFY_EMAIL_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_PUSH_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_SMS_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("NOTIFY_ADMIN_RECIPIENTS", "")

	v.SetDefault("ENABLE_APPEAL_REMINDERS", false)
	v.SetDefault("APPEAL_REMINDER_INTERVAL", "1h")
	v.SetDefault("APPEAL_REMINDER_LEAD_TIME", "72h")
	v.SetDefault("APPEAL_REMINDER_WORKERS", 2)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
