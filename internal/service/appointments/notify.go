package appointments

import (
	"context"
	"log/slog"

	"swasthiq/backend/internal/domain"
)

// MutationObserver is invoked after a mutation has committed. The default
// implementation only logs the intent to notify subscribers; a real fan-out
// transport can be swapped in without touching the service.
type MutationObserver interface {
	AppointmentCreated(ctx context.Context, appt domain.Appointment)
	AppointmentUpdated(ctx context.Context, appt domain.Appointment)
	AppointmentStatusChanged(ctx context.Context, appt domain.Appointment)
	AppointmentDeleted(ctx context.Context, appt domain.Appointment)
}

type LogObserver struct {
	log *slog.Logger
}

func NewLogObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{log: log.With(slog.String("component", "appointments.observer"))}
}

func (o *LogObserver) AppointmentCreated(ctx context.Context, appt domain.Appointment) {
	o.notify(ctx, "appointment_created", appt)
}

func (o *LogObserver) AppointmentUpdated(ctx context.Context, appt domain.Appointment) {
	o.notify(ctx, "appointment_updated", appt)
}

func (o *LogObserver) AppointmentStatusChanged(ctx context.Context, appt domain.Appointment) {
	o.notify(ctx, "appointment_status_changed", appt)
}

func (o *LogObserver) AppointmentDeleted(ctx context.Context, appt domain.Appointment) {
	o.notify(ctx, "appointment_deleted", appt)
}

func (o *LogObserver) notify(ctx context.Context, event string, appt domain.Appointment) {
	o.log.InfoContext(ctx, "would notify subscribers",
		slog.String("event", event),
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
}

var _ MutationObserver = (*LogObserver)(nil)
