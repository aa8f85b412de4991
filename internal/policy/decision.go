// Package policy is the single choke point turning bearer tokens into
// authorization decisions. Decisions are cached outside the process, keyed
// by token fingerprint, so parallel invocations reuse verification work
// without sharing memory.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"fleetgate/internal/token"
)

// Effect is the outcome of an authorization decision.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// DenyReason is the only reason ever attached to a denial. Callers never
// learn which verification check failed; distinguishing them would let an
// attacker probe tokens for valid subjects or audiences.
const DenyReason = "access denied"

// Decision is an immutable authorization decision for one token. A cached
// decision expires on its own TTL regardless of token lifetime, bounding
// how long a revoked role stays effective.
type Decision struct {
	TokenFingerprint string          `json:"tokenFingerprint"`
	Effect           Effect          `json:"effect"`
	Principal        token.Principal `json:"principal,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	IssuedAt         time.Time       `json:"issuedAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

// Allowed reports whether the decision admits the request.
func (d *Decision) Allowed() bool {
	return d != nil && d.Effect == EffectAllow
}

// Expired reports whether the decision's own TTL has elapsed.
func (d *Decision) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Fingerprint computes the stable cache key for a raw token. The raw token
// itself never goes into the store.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PolicyDocument is the access-policy artifact consumed by the request
// gateway to admit or reject the request before the business handler runs.
type PolicyDocument struct {
	Effect  Effect        `json:"effect"`
	Subject string        `json:"subject"`
	Context PolicyContext `json:"context"`
}

// PolicyContext carries the identity claims the gateway forwards downstream.
type PolicyContext struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Document renders the decision as an access-policy document.
func (d *Decision) Document() PolicyDocument {
	doc := PolicyDocument{
		Effect:  d.Effect,
		Subject: d.Principal.SubjectID,
	}
	if d.Allowed() {
		doc.Context = PolicyContext{
			SubjectID: d.Principal.SubjectID,
			Email:     d.Principal.Email,
			Role:      string(d.Principal.Role),
		}
	}
	return doc
}
