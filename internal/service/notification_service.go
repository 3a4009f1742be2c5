package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

const urgentPrefix = "[URGENT] "

type eventNotifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) models.DeliveryResult
}

type adminNotifier interface {
	NotifyAdministrators(ctx context.Context, notification models.AdministratorNotification) models.DeliveryResult
}

// NotificationService fans events out to delivery channels. Each channel
// succeeds or fails on its own and failures are never returned to callers.
type NotificationService struct {
	channels map[string]NotificationChannel
	admins   []models.Recipient
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
	now      func() time.Time
}

// NotificationOption configures the service.
type NotificationOption func(*NotificationService)

// WithAdministrators sets the recipients of administrator notifications.
func WithAdministrators(admins []models.Recipient) NotificationOption {
	return func(s *NotificationService) {
		s.admins = append([]models.Recipient(nil), admins...)
	}
}

// WithNotificationTimeout bounds each dispatch.
func WithNotificationTimeout(timeout time.Duration) NotificationOption {
	return func(s *NotificationService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithNotificationMetrics attaches metrics.
func WithNotificationMetrics(metrics *MetricsService) NotificationOption {
	return func(s *NotificationService) {
		s.metrics = metrics
	}
}

// NewNotificationService constructs the dispatcher over channels keyed by their names.
func NewNotificationService(channels []NotificationChannel, logger *zap.Logger, opts ...NotificationOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		channels: make(map[string]NotificationChannel, len(channels)),
		timeout:  5 * time.Second,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, ch := range channels {
		if ch != nil {
			svc.channels[ch.Name()] = ch
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Notify dispatches event. Normal events go to email and push; urgent events
// get the urgent template and SMS as well.
func (s *NotificationService) Notify(ctx context.Context, event models.NotificationEvent) models.DeliveryResult {
	urgent := event.IsUrgent()
	names := []string{models.ChannelEmail, models.ChannelPush}
	if urgent {
		names = append(names, models.ChannelSMS)
	}
	subject := event.Subject
	if urgent {
		subject = urgentPrefix + subject
	}
	recipients := event.Recipients
	if event.Type == models.EventAppealSubmitted || event.Type == models.EventEscalation {
		recipients = append(append([]models.Recipient(nil), recipients...), s.admins...)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	outcomes := make([]bool, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, name, ChannelMessage{
				Channel:    name,
				Event:      event.Type,
				AppealID:   event.AppealID,
				Subject:    subject,
				Body:       event.Message,
				Recipients: recipients,
				Urgent:     urgent,
				SentAt:     s.now(),
			})
			return nil
		})
	}
	_ = g.Wait()

	var result models.DeliveryResult
	for i, name := range names {
		switch name {
		case models.ChannelEmail:
			result.Email = outcomes[i]
		case models.ChannelPush:
			result.Push = outcomes[i]
		case models.ChannelSMS:
			result.SMS = outcomes[i]
		}
	}
	return result
}

// NotifyAdministrators raises an urgent escalation to the configured administrators.
func (s *NotificationService) NotifyAdministrators(ctx context.Context, n models.AdministratorNotification) models.DeliveryResult {
	message := n.Reason
	if n.Reviewer != nil {
		message = fmt.Sprintf("%s Temporarily assigned to %s (%s).", n.Reason, n.Reviewer.Name, n.Reviewer.ID)
	}
	return s.Notify(ctx, models.NotificationEvent{
		Type:     models.EventEscalation,
		AppealID: n.AppealID,
		Priority: n.Priority,
		Subject:  fmt.Sprintf("Appeal %s needs administrator attention", n.AppealID),
		Message:  message,
		Urgent:   true,
	})
}

func (s *NotificationService) deliver(ctx context.Context, name string, msg ChannelMessage) bool {
	ch, ok := s.channels[name]
	if !ok {
		s.logger.Sugar().Warnw("notification channel not configured", "channel", name, "appeal_id", msg.AppealID)
		s.metrics.NotificationDelivered(name, false)
		return false
	}
	if err := ch.Send(ctx, msg); err != nil {
		s.logger.Sugar().Warnw("notification delivery failed", "channel", name, "appeal_id", msg.AppealID, "event", msg.Event, "error", err)
		s.metrics.NotificationDelivered(name, false)
		return false
	}
	s.metrics.NotificationDelivered(name, true)
	return true
}
