package models

import "time"

// AuditAction names a state-changing action recorded against an appeal.
type AuditAction string

const (
	AuditActionSubmit         AuditAction = "submit"
	AuditActionReceive        AuditAction = "receive"
	AuditActionStartReview    AuditAction = "start-review"
	AuditActionRequestInfo    AuditAction = "request-info"
	AuditActionProvideInfo    AuditAction = "provide-info"
	AuditActionCompleteReview AuditAction = "complete-review"
	AuditActionApprove        AuditAction = "approve"
	AuditActionReject         AuditAction = "reject"
	AuditActionWithdraw       AuditAction = "withdraw"
	AuditActionEscalate       AuditAction = "escalate"
	AuditActionComment        AuditAction = "comment"
	AuditActionRemind         AuditAction = "remind"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	AppealID  string            `json:"appealId"`
	Action    AuditAction       `json:"action"`
	ActorID   string            `json:"actorId"`
	ActorRole string            `json:"actorRole,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}
