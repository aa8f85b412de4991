// Package handler serves the admin audit query surface.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fleetgate/internal/audit"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/httputil"
)

// Handler answers GET /audit. Role enforcement happens in the router; by
// the time a request lands here it is an authenticated admin.
type Handler struct {
	ledger *audit.Ledger
	logger *slog.Logger
}

func New(ledger *audit.Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// HandleQuery filters the ledger by any combination of subject, action,
// resource, and start time.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	query := audit.Query{
		SubjectID:  params.Get("subjectId"),
		Action:     params.Get("action"),
		ResourceID: params.Get("resourceId"),
	}

	if raw := params.Get("startTime"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "startTime must be RFC 3339"))
			return
		}
		query.StartTime = start
	}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		query.Limit = limit
	}

	records, err := h.ledger.List(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "audit query failed", err))
		return
	}

	if records == nil {
		records = []audit.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}
