package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Business hours: appointments may start at 08:00 up to (but not including)
// 21:00. Only the start is checked; a booking that starts before close may run
// past it.
const (
	BusinessOpenHour  = 8
	BusinessCloseHour = 21
)

var ErrOutsideBusinessHours = errors.New("Appointments are only available between 8:00 AM and 9:00 PM")

// CheckBusinessHours rejects start times whose hour falls outside [open, close).
func CheckBusinessHours(t TimeOfDay) error {
	if t.Hour() < BusinessOpenHour || t.Hour() >= BusinessCloseHour {
		return ErrOutsideBusinessHours
	}
	return nil
}

// Conflict describes the booking that blocks a requested slot.
type Conflict struct {
	PatientName string
	Start       TimeOfDay
	End         TimeOfDay
	Duration    int
}

func (c Conflict) Message() string {
	return fmt.Sprintf(
		"This time slot is already booked! %s has an appointment from %s to %s. Please choose a different time.",
		c.PatientName, c.Start, c.End,
	)
}

// FindConflict scans existing bookings for one whose half-open minute interval
// overlaps [t, t+duration). Cancelled bookings and the booking identified by
// excludeID (the row being updated) are skipped. The scan preserves the order
// of the input; callers pass bookings in stored-query order (time ascending)
// so repeated calls report the same conflict for the same data.
//
// FindConflict performs no I/O: the candidate set is supplied by the caller.
func FindConflict(existing []Appointment, t TimeOfDay, duration int, excludeID uuid.UUID) *Conflict {
	start := t.Minutes()
	end := start + duration

	for _, appt := range existing {
		if appt.Status == StatusCancelled {
			continue
		}
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		otherStart := appt.Time.Minutes()
		otherEnd := otherStart + appt.Duration
		if start < otherEnd && end > otherStart {
			return &Conflict{
				PatientName: appt.PatientName,
				Start:       appt.Time,
				End:         TimeOfDay(otherEnd),
				Duration:    appt.Duration,
			}
		}
	}
	return nil
}
