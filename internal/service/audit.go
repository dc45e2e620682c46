package service

import (
	"context"
	"log/slog"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/store"
)

// Recorder writes audit events to the store and mirrors them to the log.
// Events carry only the token id and prefix, never secrets. A failed write
// is logged and swallowed; auditing must not fail the operation it records.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(st *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record persists one event. The write survives cancellation of the request
// context so that denied or timed-out requests still leave a trail.
func (r *Recorder) Record(ctx context.Context, ev model.AuditEvent) {
	if err := r.store.SaveAuditEvent(context.WithoutCancel(ctx), &ev); err != nil {
		r.logger.Warn("audit write failed", "action", ev.Action, "error", err)
	}
	r.logger.Info("audit",
		"action", ev.Action,
		"token_id", ev.TokenID,
		"token_prefix", ev.TokenPrefix,
		"caller_id", ev.CallerID,
		"ip", ev.IP,
		"outcome", ev.Outcome,
	)
}
