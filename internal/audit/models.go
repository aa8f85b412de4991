// Package audit is the append-only ledger of privileged attempts. Every
// privileged request produces exactly one record, success or not; records
// are immutable once written and expire only at the retention boundary.
package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Result is the outcome recorded for a privileged attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
)

// Actions recorded in the ledger.
const (
	ActionReboot          = "REBOOT"
	ActionAccessDenied    = "ACCESS_DENIED"
	ActionRateLimitBypass = "RATE_LIMIT_BYPASSED"
	ActionListInstances   = "LIST_INSTANCES"
	ActionQueryAudit      = "QUERY_AUDIT"
)

// Record is one immutable ledger entry. AuditID is a ULID, so records sort
// by creation time within a subject's partition; ordering between subjects
// is not guaranteed.
type Record struct {
	AuditID       string    `json:"auditId"`
	SubjectID     string    `json:"subjectId"`
	SubjectEmail  string    `json:"subjectEmail,omitempty"`
	Action        string    `json:"action"`
	ResourceType  string    `json:"resourceType,omitempty"`
	ResourceID    string    `json:"resourceId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Result        Result    `json:"result"`
	Details       string    `json:"details,omitempty"`
	SourceAddress string    `json:"sourceAddress,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// NewRecord builds a Record with a fresh AuditID, the current timestamp,
// and an expiry at the retention boundary.
func NewRecord(subjectID, action string, result Result, retention time.Duration) Record {
	now := time.Now().UTC()
	return Record{
		AuditID:   ulid.Make().String(),
		SubjectID: subjectID,
		Action:    action,
		Timestamp: now,
		Result:    result,
		ExpiresAt: now.Add(retention),
	}
}

// Query narrows a ledger lookup. SubjectID, Action, and ResourceID are
// independent filter paths; a record must be discoverable both as "what did
// this user do" and "what happened to this resource".
type Query struct {
	SubjectID  string
	Action     string
	ResourceID string
	StartTime  time.Time
	Limit      int
}
