package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	"github.com/noah-isme/staff-appeal-api/pkg/jobs"
)

const (
	// DefaultReminderLeadTime is how long before the expected response date reviewers are reminded.
	DefaultReminderLeadTime = 72 * time.Hour

	reminderKindDue     = "due"
	reminderKindOverdue = "overdue"

	sweepJobID   = "appeal-reminder-sweep"
	sweepJobKind = "sweep"
)

type bucketLister interface {
	ListByBucket(ctx context.Context, bucket repository.AppealBucket) ([]*models.Appeal, error)
}

type reminderNotifier interface {
	eventNotifier
	adminNotifier
}

// SweepResult summarises one reminder sweep.
type SweepResult struct {
	Reminded  int
	Escalated int
	Skipped   int
}

// ReminderService reminds reviewers about approaching response dates and
// escalates overdue appeals. Each appeal is handled at most once per UTC day.
type ReminderService struct {
	store    bucketLister
	ledger   repository.ReminderLedger
	notifier reminderNotifier
	audit    auditRecorder
	metrics  *MetricsService
	leadTime time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	queue *jobs.Queue
	stop  chan struct{}
	done  chan struct{}
}

// ReminderOption configures the service.
type ReminderOption func(*ReminderService)

// WithReminderClock overrides the clock.
func WithReminderClock(now func() time.Time) ReminderOption {
	return func(s *ReminderService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReminderLeadTime sets the reminder window.
func WithReminderLeadTime(lead time.Duration) ReminderOption {
	return func(s *ReminderService) {
		if lead > 0 {
			s.leadTime = lead
		}
	}
}

// WithReminderMetrics attaches metrics.
func WithReminderMetrics(metrics *MetricsService) ReminderOption {
	return func(s *ReminderService) {
		s.metrics = metrics
	}
}

// NewReminderService constructs the service.
func NewReminderService(store bucketLister, ledger repository.ReminderLedger, notifier reminderNotifier, audit auditRecorder, logger *zap.Logger, opts ...ReminderOption) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		ledger = repository.NewMemoryReminderLedger()
	}
	svc := &ReminderService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		audit:    audit,
		leadTime: DefaultReminderLeadTime,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Sweep scans open appeals once.
func (s *ReminderService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()
	for _, bucket := range []repository.AppealBucket{repository.BucketPending, repository.BucketInProgress} {
		appeals, err := s.store.ListByBucket(ctx, bucket)
		if err != nil {
			return result, fmt.Errorf("list %s appeals: %w", bucket, err)
		}
		for _, appeal := range appeals {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			kind, due := s.classify(appeal, now)
			if !due {
				continue
			}
			key := fmt.Sprintf("%s:%s", appeal.AppealID, now.UTC().Format("2006-01-02"))
			first, err := s.ledger.MarkSent(ctx, key)
			if err != nil {
				s.logger.Sugar().Warnw("reminder ledger unavailable", "appeal_id", appeal.AppealID, "error", err)
				result.Skipped++
				continue
			}
			if !first {
				result.Skipped++
				continue
			}
			if kind == reminderKindOverdue {
				s.escalate(ctx, appeal, now)
				result.Escalated++
			} else {
				s.remind(ctx, appeal)
				result.Reminded++
			}
			s.metrics.ReminderSent(kind)
		}
	}
	if result.Reminded+result.Escalated > 0 {
		s.logger.Sugar().Infow("reminder sweep finished", "reminded", result.Reminded, "escalated", result.Escalated, "skipped", result.Skipped)
	}
	return result, nil
}

func (s *ReminderService) classify(appeal *models.Appeal, now time.Time) (string, bool) {
	if appeal.Status.IsTerminal() || appeal.ExpectedResponseDate.IsZero() {
		return "", false
	}
	remaining := appeal.ExpectedResponseDate.Sub(now)
	switch {
	case remaining < 0:
		return reminderKindOverdue, true
	case remaining <= s.leadTime:
		return reminderKindDue, true
	default:
		return "", false
	}
}

func (s *ReminderService) remind(ctx context.Context, appeal *models.Appeal) {
	due := appeal.ExpectedResponseDate.UTC().Format("2006-01-02")
	if appeal.AssignedReviewer != nil {
		s.notifier.Notify(ctx, models.NotificationEvent{
			Type:       models.EventDeadlineReminder,
			AppealID:   appeal.AppealID,
			Priority:   appeal.Priority,
			Subject:    fmt.Sprintf("Appeal %s is due on %s", appeal.AppealID, due),
			Message:    fmt.Sprintf("A response to appeal %s (%s) is expected by %s.", appeal.AppealID, appeal.Status, due),
			Recipients: []models.Recipient{reviewerRecipient(appeal.AssignedReviewer)},
		})
	} else {
		s.notifier.NotifyAdministrators(ctx, models.AdministratorNotification{
			AppealID: appeal.AppealID,
			Priority: appeal.Priority,
			Reason:   fmt.Sprintf("Unassigned appeal is due on %s.", due),
		})
	}
	s.audit.Record(ctx, newAuditEntry(appeal.AppealID, models.AuditActionRemind, models.SystemActor, map[string]string{
		"kind":                 reminderKindDue,
		"expectedResponseDate": due,
	}))
}

func (s *ReminderService) escalate(ctx context.Context, appeal *models.Appeal, now time.Time) {
	due := appeal.ExpectedResponseDate.UTC().Format("2006-01-02")
	overdue := now.Sub(appeal.ExpectedResponseDate).Truncate(time.Hour)
	s.notifier.NotifyAdministrators(ctx, models.AdministratorNotification{
		AppealID: appeal.AppealID,
		Priority: appeal.Priority,
		Reason:   fmt.Sprintf("Response was due on %s and is overdue by %s.", due, overdue),
		Reviewer: appeal.AssignedReviewer,
	})
	s.audit.Record(ctx, newAuditEntry(appeal.AppealID, models.AuditActionEscalate, models.SystemActor, map[string]string{
		"reason":               "response overdue",
		"expectedResponseDate": due,
	}))
	s.audit.Record(ctx, newAuditEntry(appeal.AppealID, models.AuditActionRemind, models.SystemActor, map[string]string{
		"kind":                 reminderKindOverdue,
		"expectedResponseDate": due,
	}))
}

// Start runs a sweep every interval on a worker queue until Stop is called.
func (s *ReminderService) Start(ctx context.Context, interval time.Duration, workers int) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = jobs.NewQueue("appeal-reminders", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 1,
		RetryDelay: time.Minute,
		Logger:     s.logger,
	})
	s.queue.Start(ctx)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(queue *jobs.Queue, stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		s.enqueueSweep(queue)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.enqueueSweep(queue)
			}
		}
	}(s.queue, s.stop, s.done)
}

// Stop halts the ticker and waits for running sweeps.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	queue, stop, done := s.queue, s.stop, s.done
	s.queue = nil
	s.mu.Unlock()
	if queue == nil {
		return
	}
	close(stop)
	<-done
	queue.Stop()
}

func (s *ReminderService) enqueueSweep(queue *jobs.Queue) {
	err := queue.Enqueue(jobs.Job{ID: sweepJobID, Kind: sweepJobKind})
	if err != nil && !errors.Is(err, jobs.ErrDuplicate) {
		s.logger.Sugar().Warnw("failed to schedule reminder sweep", "error", err)
	}
}

func (s *ReminderService) handle(ctx context.Context, job jobs.Job) error {
	if job.Kind != sweepJobKind {
		return fmt.Errorf("unknown reminder job kind %q", job.Kind)
	}
	_, err := s.Sweep(ctx)
	return err
}
