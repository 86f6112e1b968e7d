package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is the appointment lifecycle label. It is a flat enum: any status may
// move to any other status, including back out of Cancelled.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusConfirmed Status = "Confirmed"
	StatusUpcoming  Status = "Upcoming"
	StatusCancelled Status = "Cancelled"
)

// ValidStatuses lists the accepted status values in the order they are
// reported to callers on validation failure.
var ValidStatuses = []Status{StatusConfirmed, StatusScheduled, StatusUpcoming, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, v := range ValidStatuses {
		if Status(s) == v {
			return v, true
		}
	}
	return "", false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	PatientName string    `bun:"patient_name,notnull"`
	DoctorName  string    `bun:"doctor_name,notnull"`
	Date        time.Time `bun:"date,notnull,type:date"`
	Time        TimeOfDay `bun:"time,notnull,type:time"`
	Duration    int       `bun:"duration,notnull"`
	Status      Status    `bun:"status,notnull"`
	Mode        string    `bun:"mode,notnull"`
	Notes       string    `bun:"notes"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Appointment)(nil)
