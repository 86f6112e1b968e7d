package httpapi

import (
	"time"

	"swasthiq/backend/internal/domain"
)

// envelope is the uniform response shape the original frontend consumes.
type envelope struct {
	Data     any          `json:"data,omitempty"`
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Conflict *conflictDTO `json:"conflict,omitempty"`
}

type appointmentDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DoctorName string `json:"doctorName"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Duration   int    `json:"duration"`
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Notes      string `json:"notes"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

type conflictDTO struct {
	Patient  string `json:"patient"`
	Time     string `json:"time"`
	EndTime  string `json:"endTime"`
	Duration int    `json:"duration"`
}

// statusResult is the status-mutation response: the new status plus a
// mutation timestamp.
type statusResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ID        string `json:"id"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type createRequest struct {
	Name       string `json:"name" validate:"required"`
	DoctorName string `json:"doctorName" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Time       string `json:"time" validate:"required"`
	Duration   int    `json:"duration" validate:"required,gt=0"`
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	Notes      string `json:"notes"`
	// Accepted for forward compatibility with the booking widget; not persisted.
	AppointmentType string `json:"appointmentType"`
}

type updateRequest struct {
	Name            *string `json:"name"`
	DoctorName      *string `json:"doctorName"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	Duration        *int    `json:"duration"`
	Status          *string `json:"status"`
	Mode            *string `json:"mode"`
	Notes           *string `json:"notes"`
	AppointmentType *string `json:"appointmentType"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func toDTO(a domain.Appointment) appointmentDTO {
	dto := appointmentDTO{
		ID:         a.ID.String(),
		Name:       a.PatientName,
		DoctorName: a.DoctorName,
		Date:       a.Date.Format("2006-01-02"),
		Time:       a.Time.String(),
		Duration:   a.Duration,
		Status:     string(a.Status),
		Mode:       a.Mode,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !a.UpdatedAt.IsZero() {
		dto.UpdatedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toDTOs(appts []domain.Appointment) []appointmentDTO {
	out := make([]appointmentDTO, 0, len(appts))
	for _, a := range appts {
		out = append(out, toDTO(a))
	}
	return out
}

func toConflictDTO(c domain.Conflict) *conflictDTO {
	return &conflictDTO{
		Patient:  c.PatientName,
		Time:     c.Start.String(),
		EndTime:  c.End.String(),
		Duration: c.Duration,
	}
}
