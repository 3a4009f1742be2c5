package models

// NotificationEventType names the workflow moment a notification describes.
type NotificationEventType string

const (
	EventAppealSubmitted  NotificationEventType = "appeal_submitted"
	EventStatusChanged    NotificationEventType = "status_changed"
	EventInfoRequested    NotificationEventType = "info_requested"
	EventCommentAdded     NotificationEventType = "comment_added"
	EventDeadlineReminder NotificationEventType = "deadline_reminder"
	EventEscalation       NotificationEventType = "escalation"
)

// Channel names.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelSMS   = "sms"
)

// Recipient is an addressee of a notification.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// NotificationEvent is the dispatch contract consumed by the notification dispatcher.
type NotificationEvent struct {
	Type       NotificationEventType `json:"type"`
	AppealID   string                `json:"appealId"`
	Priority   Priority              `json:"priority,omitempty"`
	Subject    string                `json:"subject"`
	Message    string                `json:"message"`
	Recipients []Recipient           `json:"recipients"`
	Urgent     bool                  `json:"urgent,omitempty"`
}

// IsUrgent reports whether the event takes the urgent delivery path.
func (e NotificationEvent) IsUrgent() bool {
	return e.Urgent || e.Priority == PriorityHigh || e.Type == EventEscalation
}

// DeliveryResult records per-channel outcomes.
type DeliveryResult struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// AdministratorNotification asks a human to act on an appeal, usually a manual reassignment.
type AdministratorNotification struct {
	AppealID string       `json:"appealId"`
	Priority Priority     `json:"priority"`
	Reason   string       `json:"reason"`
	Reviewer *ReviewerRef `json:"reviewer,omitempty"`
}
