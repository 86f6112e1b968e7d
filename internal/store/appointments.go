package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"swasthiq/backend/internal/domain"
)

// ListFilter narrows List results. Nil fields are absent; present fields are
// ANDed together.
type ListFilter struct {
	Date   *time.Time
	Status *domain.Status
}

// AppointmentPatch is a typed partial update: one optional field per mutable
// column. Only non-nil fields are written; updated_at is always bumped, so an
// empty patch is a valid no-op touch.
type AppointmentPatch struct {
	PatientName *string
	DoctorName  *string
	Date        *time.Time
	Time        *domain.TimeOfDay
	Duration    *int
	Status      *domain.Status
	Mode        *string
	Notes       *string
}

// IsZero reports whether the patch carries no fields.
func (p AppointmentPatch) IsZero() bool {
	return p.PatientName == nil && p.DoctorName == nil && p.Date == nil &&
		p.Time == nil && p.Duration == nil && p.Status == nil &&
		p.Mode == nil && p.Notes == nil
}

// TouchesSchedule reports whether applying the patch can move the appointment
// on a doctor's calendar, requiring a fresh conflict check.
func (p AppointmentPatch) TouchesSchedule() bool {
	return p.Time != nil || p.Date != nil || p.DoctorName != nil || p.Duration != nil
}

// Apply overlays the patch on an existing appointment and returns the merged
// view. The merged view is what conflict checking runs against.
func (p AppointmentPatch) Apply(a domain.Appointment) domain.Appointment {
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.DoctorName != nil {
		a.DoctorName = *p.DoctorName
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Duration != nil {
		a.Duration = *p.Duration
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Mode != nil {
		a.Mode = *p.Mode
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return a
}

type AppointmentRepository interface {
	// Create books the appointment after an in-transaction conflict check and
	// returns the stored row.
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// List returns appointments matching the filter, ordered by date then time.
	List(ctx context.Context, filter ListFilter) ([]domain.Appointment, error)
	// ListRange returns appointments with date between startDate and endDate
	// inclusive, same ordering as List.
	ListRange(ctx context.Context, startDate, endDate time.Time) ([]domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// Update applies the patch and returns the updated row. Schedule-affecting
	// patches are conflict-checked against the merged view, excluding the row
	// itself.
	Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (domain.Appointment, error)
	// UpdateStatus changes only the status and bumps updated_at.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Appointment, error)
	// Delete removes the row permanently and returns the pre-delete snapshot.
	Delete(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// Ping reports store reachability for the health probe.
	Ping(ctx context.Context) error
}
