// Package handler exposes the instance routes. The interesting part is
// the reboot flow: the downstream call runs only after the full admission
// chain, and its outcome always lands on the audit ledger.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetgate/internal/audit"
	"fleetgate/internal/guard"
	"fleetgate/internal/instance"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/httputil"
	"fleetgate/pkg/requestcontext"
)

// Handler serves the instance listing and reboot endpoints.
type Handler struct {
	provider  instance.Provider
	ledger    *audit.Ledger
	retention time.Duration
	logger    *slog.Logger
}

func New(provider instance.Provider, ledger *audit.Ledger, retention time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		provider:  provider,
		ledger:    ledger,
		retention: retention,
		logger:    logger,
	}
}

// HandleList passes the provider's instance list through unchanged.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	instances, err := h.provider.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "instance list failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

// HandleReboot dispatches the reboot and records the attempt. The audit
// write happens after the action and never fails the response: by the
// time the write runs, the reboot has already happened (or failed), and
// the caller deserves that answer regardless of ledger health.
func (h *Handler) HandleReboot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "instance id is required"))
		return
	}

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}

	record := audit.NewRecord(principal.SubjectID, audit.ActionReboot, audit.ResultSuccess, h.retention)
	record.SubjectEmail = principal.Email
	record.ResourceType = "instance"
	record.ResourceID = instanceID
	record.SourceAddress = requestcontext.ClientIP(ctx)

	err := h.provider.Reboot(ctx, instanceID)
	if err != nil {
		record.Result = audit.ResultFailure
		record.Details = string(dErrors.CodeOf(err))
		h.ledger.Record(ctx, record)

		h.logger.ErrorContext(ctx, "reboot failed",
			"instance_id", instanceID,
			"subject_id", principal.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.ledger.Record(ctx, record)

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"instanceId": instanceID,
		"status":     "rebooting",
	})
}
