package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"swasthiq/backend/internal/domain"
	"swasthiq/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func invalidStatusError() error {
	names := make([]string, 0, len(domain.ValidStatuses))
	for _, s := range domain.ValidStatuses {
		names = append(names, string(s))
	}
	return validationError("Invalid status. Must be one of: " + strings.Join(names, ", "))
}

const (
	defaultMode = "In-Person"
	dateLayout  = "2006-01-02"
)

type Service struct {
	repo     store.AppointmentRepository
	observer MutationObserver
}

// NewService wires the repository and the post-commit mutation observer. A nil
// observer falls back to the logging no-op.
func NewService(repo store.AppointmentRepository, observer MutationObserver) *Service {
	if observer == nil {
		observer = NewLogObserver(nil)
	}
	return &Service{repo: repo, observer: observer}
}

type CreateInput struct {
	Name       string
	DoctorName string
	Date       string
	Time       string
	Duration   int
	Status     string
	Mode       string
	Notes      string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Appointment{}, validationError("name is required")
	}
	doctor := strings.TrimSpace(in.DoctorName)
	if doctor == "" {
		return domain.Appointment{}, validationError("doctorName is required")
	}

	date, err := parseDate(in.Date)
	if err != nil {
		return domain.Appointment{}, validationError("date must be a valid YYYY-MM-DD date")
	}
	tod, err := domain.ParseTimeOfDay(in.Time)
	if err != nil {
		return domain.Appointment{}, validationError("time must be a valid HH:MM time")
	}
	if in.Duration <= 0 {
		return domain.Appointment{}, validationError("duration must be a positive number of minutes")
	}
	if err := domain.CheckBusinessHours(tod); err != nil {
		return domain.Appointment{}, validationError(err.Error())
	}

	status := domain.StatusScheduled
	if trimmed := strings.TrimSpace(in.Status); trimmed != "" {
		parsed, ok := domain.ParseStatus(trimmed)
		if !ok {
			return domain.Appointment{}, invalidStatusError()
		}
		status = parsed
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = defaultMode
	}

	created, err := s.repo.Create(ctx, domain.Appointment{
		PatientName: name,
		DoctorName:  doctor,
		Date:        date,
		Time:        tod,
		Duration:    in.Duration,
		Status:      status,
		Mode:        mode,
		Notes:       in.Notes,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.observer.AppointmentCreated(ctx, created)
	return created, nil
}

// ListInput carries optional filters; empty strings mean absent.
type ListInput struct {
	Date   string
	Status string
}

func (s *Service) List(ctx context.Context, in ListInput) ([]domain.Appointment, error) {
	var filter store.ListFilter
	if in.Date != "" {
		date, err := parseDate(in.Date)
		if err != nil {
			return nil, validationError("date must be a valid YYYY-MM-DD date")
		}
		filter.Date = &date
	}
	if in.Status != "" {
		status, ok := domain.ParseStatus(in.Status)
		if !ok {
			return nil, invalidStatusError()
		}
		filter.Status = &status
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) ListRange(ctx context.Context, startDate, endDate string) ([]domain.Appointment, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return nil, validationError("startDate and endDate are required")
	}
	start, err := parseDate(startDate)
	if err != nil {
		return nil, validationError("startDate must be a valid YYYY-MM-DD date")
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, validationError("endDate must be a valid YYYY-MM-DD date")
	}
	if end.Before(start) {
		return nil, validationError("endDate must not be before startDate")
	}
	return s.repo.ListRange(ctx, start, end)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// UpdateInput is a field-level patch; nil fields are left untouched.
type UpdateInput struct {
	Name       *string
	DoctorName *string
	Date       *string
	Time       *string
	Duration   *int
	Status     *string
	Mode       *string
	Notes      *string
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	var patch store.AppointmentPatch

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Appointment{}, validationError("name must not be empty")
		}
		patch.PatientName = &name
	}
	if in.DoctorName != nil {
		doctor := strings.TrimSpace(*in.DoctorName)
		if doctor == "" {
			return domain.Appointment{}, validationError("doctorName must not be empty")
		}
		patch.DoctorName = &doctor
	}
	if in.Date != nil {
		date, err := parseDate(*in.Date)
		if err != nil {
			return domain.Appointment{}, validationError("date must be a valid YYYY-MM-DD date")
		}
		patch.Date = &date
	}
	if in.Time != nil {
		tod, err := domain.ParseTimeOfDay(*in.Time)
		if err != nil {
			return domain.Appointment{}, validationError("time must be a valid HH:MM time")
		}
		if err := domain.CheckBusinessHours(tod); err != nil {
			return domain.Appointment{}, validationError(err.Error())
		}
		patch.Time = &tod
	}
	if in.Duration != nil {
		if *in.Duration <= 0 {
			return domain.Appointment{}, validationError("duration must be a positive number of minutes")
		}
		patch.Duration = in.Duration
	}
	if in.Status != nil {
		status, ok := domain.ParseStatus(strings.TrimSpace(*in.Status))
		if !ok {
			return domain.Appointment{}, invalidStatusError()
		}
		patch.Status = &status
	}
	if in.Mode != nil {
		patch.Mode = in.Mode
	}
	if in.Notes != nil {
		patch.Notes = in.Notes
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.observer.AppointmentUpdated(ctx, updated)
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (domain.Appointment, error) {
	parsed, ok := domain.ParseStatus(strings.TrimSpace(status))
	if !ok {
		return domain.Appointment{}, invalidStatusError()
	}

	updated, err := s.repo.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.observer.AppointmentStatusChanged(ctx, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.observer.AppointmentDeleted(ctx, deleted)
	return deleted, nil
}

// Health reports store reachability for the process-level probe.
func (s *Service) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(s))
}
