package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the persistence boundary for the ledger. Append must be
// conditional on AuditID: a duplicate ID never alters the stored record.
type Store interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context, query Query) ([]Record, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AlertMetrics raises the operational alert for failed ledger writes.
type AlertMetrics interface {
	IncAuditWriteFailure()
}

// Ledger appends records with bounded, best-effort-durable semantics: a
// failed write never fails the caller's request, but it is always logged
// and alerted. Coupling the write to the response would let a storage
// outage block legitimate operations.
type Ledger struct {
	store        Store
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      AlertMetrics
}

type LedgerOption func(*Ledger)

func WithAlertMetrics(m AlertMetrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store Store, writeTimeout time.Duration, logger *slog.Logger, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if writeTimeout <= 0 {
		return nil, fmt.Errorf("write timeout must be positive")
	}

	l := &Ledger{
		store:        store,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends one record. The write survives caller cancellation: a
// client that disconnects after the downstream action was dispatched still
// gets its attempt on the ledger. Errors are swallowed after logging and
// alerting; there is deliberately no error return.
func (l *Ledger) Record(ctx context.Context, record Record) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.writeTimeout)
	defer cancel()

	if err := l.store.Append(writeCtx, record); err != nil {
		l.logger.ErrorContext(ctx, "audit write failed",
			"audit_id", record.AuditID,
			"subject_id", record.SubjectID,
			"action", record.Action,
			"result", record.Result,
			"error", err,
		)
		if l.metrics != nil {
			l.metrics.IncAuditWriteFailure()
		}
	}
}

// List serves the admin audit query surface. Unlike Record, read failures
// propagate: a query caller needs to know the ledger was unreachable.
func (l *Ledger) List(ctx context.Context, query Query) ([]Record, error) {
	if query.Limit <= 0 || query.Limit > 1000 {
		query.Limit = 100
	}
	return l.store.List(ctx, query)
}

// RunRetentionSweep deletes expired records on a fixed interval until ctx
// is cancelled. This is the only path that removes records.
func (l *Ledger) RunRetentionSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := l.store.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				l.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				l.logger.InfoContext(ctx, "retention sweep purged records", "count", purged)
			}
		}
	}
}
