package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/handler"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	"github.com/noah-isme/staff-appeal-api/internal/service"
	"github.com/noah-isme/staff-appeal-api/pkg/cache"
	"github.com/noah-isme/staff-appeal-api/pkg/config"
	"github.com/noah-isme/staff-appeal-api/pkg/database"
	"github.com/noah-isme/staff-appeal-api/pkg/evaluation"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

// app holds the wired services and the resources that must be released on shutdown.
type app struct {
	metrics  *service.MetricsService
	tokens   *service.TokenService
	appeals  *handler.AppealHandler
	health   *handler.MetricsHandler
	reminder *service.ReminderService

	db    *sqlx.DB
	redis *redis.Client
}

func (a *app) Close() {
	if a.reminder != nil {
		a.reminder.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Remote.Enabled && cfg.Appeals.DraftBackend == config.BackendRedis
}

func needsPostgres(cfg *config.Config) bool {
	return cfg.Appeals.StorageBackend == config.BackendPostgres || cfg.Appeals.ReferenceSource == config.BackendPostgres
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	a := &app{metrics: service.NewMetricsService()}
	checks := make(map[string]handler.ReadinessCheck)

	if needsPostgres(cfg) {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db
		checks["postgres"] = db.PingContext
	}
	var cacheRepo *repository.CacheRepository
	if needsRedis(cfg) || cfg.Reminder.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			if needsRedis(cfg) {
				a.Close()
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			logr.Sugar().Warnw("redis unavailable, reminder ledger stays in memory", "error", err)
		} else {
			a.redis = client
			cacheRepo = repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr)
			checks["redis"] = cacheRepo.Ping
		}
	}

	store, err := buildAppealStore(ctx, cfg, a.db, logr)
	if err != nil {
		a.Close()
		return nil, err
	}

	auditFiles, err := storage.NewLocalStorage(cfg.Appeals.AuditDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open audit dir: %w", err)
	}
	audit := service.NewAuditService(repository.NewFileAuditRepository(auditFiles), logr, a.metrics)

	ref, err := config.LoadReferenceData(cfg.Appeals.ReferenceDataFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	periods, err := buildPeriodProvider(ctx, cfg, ref, a.db, logr)
	if err != nil {
		a.Close()
		return nil, err
	}
	reviewers := repository.NewStaticReviewerDirectory(ref)

	notifier := service.NewNotificationService(buildChannels(cfg, logr), logr,
		service.WithAdministrators(adminRecipients(cfg.Notifications.AdminRecipients)),
		service.WithNotificationTimeout(cfg.Notifications.Timeout),
		service.WithNotificationMetrics(a.metrics),
	)

	fallback := models.ReviewerRef{
		ID:    cfg.Appeals.DefaultReviewerID,
		Name:  cfg.Appeals.DefaultReviewerName,
		Email: cfg.Appeals.DefaultReviewerEmail,
	}
	assigner := service.NewReviewerAssigner(reviewers, fallback, notifier, audit, a.metrics, logr)

	validate := validator.New()
	policy := service.EvidencePolicy{
		MaxSizeBytes: cfg.Appeals.MaxEvidenceSizeBytes,
		MaxCount:     cfg.Appeals.MaxEvidenceCount,
		AllowedMIMEs: cfg.Appeals.AllowedEvidenceMIMEs,
	}
	eligibility := service.NewEligibilityService(periods, logr)
	engine := service.NewPriorityEngine(service.SchemeByName(cfg.Appeals.ScoringScheme))

	submissions := service.NewSubmissionService(store, eligibility, engine, assigner, audit, notifier, validate, logr,
		service.WithResponseSLADays(cfg.Appeals.ResponseSLADays),
		service.WithSubmissionEvidencePolicy(policy),
		service.WithSubmissionMetrics(a.metrics),
	)
	appeals := service.NewAppealService(store, assigner, audit, notifier, validate, logr,
		service.WithAppealEvidencePolicy(policy),
		service.WithReviewerLookup(reviewers),
		service.WithAppealMetrics(a.metrics),
	)

	var remote *service.RemoteSubmissionService
	if cfg.Remote.Enabled {
		drafts, err := buildDraftStore(cfg, cacheRepo, logr)
		if err != nil {
			a.Close()
			return nil, err
		}
		client := evaluation.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout)
		remote = service.NewRemoteSubmissionService(submissions, client, drafts, logr,
			service.WithRetryPolicy(cfg.Remote.MaxAttempts, cfg.Remote.BaseDelay),
			service.WithRemoteMetrics(a.metrics),
		)
	}

	if cfg.Reminder.Enabled {
		var ledger repository.ReminderLedger
		if cacheRepo != nil {
			ledger = repository.NewRedisReminderLedger(cacheRepo)
		}
		a.reminder = service.NewReminderService(store, ledger, notifier, audit, logr,
			service.WithReminderLeadTime(cfg.Reminder.LeadTime),
			service.WithReminderMetrics(a.metrics),
		)
	}

	a.tokens = service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	if remote != nil {
		a.appeals = handler.NewAppealHandler(submissions, remote, appeals, audit, eligibility)
	} else {
		a.appeals = handler.NewAppealHandler(submissions, nil, appeals, audit, eligibility)
	}
	a.health = handler.NewMetricsHandler(a.metrics, checks)
	return a, nil
}

func buildAppealStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (repository.AppealStore, error) {
	switch cfg.Appeals.StorageBackend {
	case config.BackendPostgres:
		return repository.NewPostgresAppealRepository(db), nil
	case "", config.BackendFile:
		files, err := storage.NewLocalStorage(cfg.Appeals.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open appeal storage: %w", err)
		}
		repo := repository.NewFileAppealRepository(files, logr)
		repaired, err := repo.Reconcile(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile appeal storage: %w", err)
		}
		if repaired > 0 {
			logr.Sugar().Infow("repaired interrupted appeal migrations", "count", repaired)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported appeal storage backend %q", cfg.Appeals.StorageBackend)
	}
}

func buildPeriodProvider(ctx context.Context, cfg *config.Config, ref *config.ReferenceData, db *sqlx.DB, logr *zap.Logger) (service.PeriodProvider, error) {
	periods, err := repository.PeriodsFromReference(ref)
	if err != nil {
		return nil, err
	}
	if cfg.Appeals.ReferenceSource != config.BackendPostgres {
		return repository.NewStaticPeriodRepository(periods), nil
	}
	repo := repository.NewPeriodRepository(db)
	seeded, err := repo.Seed(ctx, periods)
	if err != nil {
		return nil, fmt.Errorf("seed evaluation periods: %w", err)
	}
	logr.Sugar().Infow("evaluation periods seeded", "reference", len(periods), "total", len(seeded))
	return repo, nil
}

type draftBackend interface {
	Save(ctx context.Context, draft *models.SubmissionDraft) error
	Get(ctx context.Context, key string) (*models.SubmissionDraft, error)
	Delete(ctx context.Context, key string) error
}

func buildDraftStore(cfg *config.Config, cacheRepo *repository.CacheRepository, logr *zap.Logger) (draftBackend, error) {
	if cfg.Appeals.DraftBackend == config.BackendRedis {
		if cacheRepo == nil {
			return nil, fmt.Errorf("redis draft backend requires a redis connection")
		}
		return repository.NewRedisDraftRepository(cacheRepo, cfg.Appeals.DraftTTL), nil
	}
	files, err := storage.NewLocalStorage(cfg.Appeals.DraftDir)
	if err != nil {
		return nil, fmt.Errorf("open draft storage: %w", err)
	}
	repo := repository.NewFileDraftRepository(files)
	if cfg.Appeals.DraftTTL > 0 {
		removed, err := repo.Cleanup(cfg.Appeals.DraftTTL)
		if err != nil {
			logr.Sugar().Warnw("failed to purge expired drafts", "error", err)
		} else if removed > 0 {
			logr.Sugar().Infow("purged expired drafts", "count", removed)
		}
	}
	return repo, nil
}

func buildChannels(cfg *config.Config, logr *zap.Logger) []service.NotificationChannel {
	endpoints := []struct {
		name string
		url  string
	}{
		{models.ChannelEmail, cfg.Notifications.EmailWebhookURL},
		{models.ChannelPush, cfg.Notifications.PushWebhookURL},
		{models.ChannelSMS, cfg.Notifications.SMSWebhookURL},
	}
	channels := make([]service.NotificationChannel, 0, len(endpoints))
	for _, ep := range endpoints {
		if strings.TrimSpace(ep.url) == "" {
			channels = append(channels, service.NewLogChannel(ep.name, logr))
			continue
		}
		channels = append(channels, service.NewWebhookChannel(ep.name, ep.url, cfg.Notifications.Timeout))
	}
	return channels
}

func adminRecipients(addresses []string) []models.Recipient {
	recipients := make([]models.Recipient, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		recipients = append(recipients, models.Recipient{ID: addr, Email: addr})
	}
	return recipients
}
