package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"swasthiq/backend/internal/service/appointments"
	"swasthiq/backend/internal/store"
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "SwasthiQ EMR Appointment API",
		"status":  "running",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "/health",
			"appointments": "/api/appointments",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.svc.Health(c.Request().Context()); err != nil {
		s.log.Error("health check failed", slog.Any("err", err))
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleList(c echo.Context) error {
	log := s.log.With(slog.String("route", "ListAppointments"))

	appts, err := s.svc.List(c.Request().Context(), appointments.ListInput{
		Date:   c.QueryParam("date"),
		Status: c.QueryParam("status"),
	})
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Debug("appointments listed", slog.Int("count", len(appts)))
	return c.JSON(http.StatusOK, envelope{
		Data:    toDTOs(appts),
		Success: true,
		Message: "Appointments retrieved successfully",
	})
}

func (s *Server) handleListByStatus(c echo.Context) error {
	log := s.log.With(slog.String("route", "ListAppointmentsByStatus"))

	appts, err := s.svc.List(c.Request().Context(), appointments.ListInput{
		Status: c.Param("status"),
	})
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Debug("appointments listed", slog.Int("count", len(appts)), slog.String("status", c.Param("status")))
	return c.JSON(http.StatusOK, envelope{
		Data:    toDTOs(appts),
		Success: true,
		Message: "Appointments retrieved successfully",
	})
}

func (s *Server) handleDateRange(c echo.Context) error {
	log := s.log.With(slog.String("route", "ListAppointmentsByDateRange"))

	appts, err := s.svc.ListRange(c.Request().Context(), c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Debug("appointments listed", slog.Int("count", len(appts)))
	return c.JSON(http.StatusOK, envelope{
		Data:    toDTOs(appts),
		Success: true,
		Message: "Appointments retrieved successfully",
	})
}

func (s *Server) handleGet(c echo.Context) error {
	log := s.log.With(slog.String("route", "GetAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Appointment id must be a UUID"})
	}

	appt, err := s.svc.Get(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, envelope{
		Data:    toDTO(appt),
		Success: true,
		Message: "Appointment retrieved successfully",
	})
}

func (s *Server) handleCreate(c echo.Context) error {
	log := s.log.With(slog.String("route", "CreateAppointment"))

	var req createRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "missing_fields"))
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "Missing required fields: name, doctorName, date, time, duration",
		})
	}

	appt, err := s.svc.Create(c.Request().Context(), appointments.CreateInput{
		Name:       req.Name,
		DoctorName: req.DoctorName,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.Duration,
		Status:     req.Status,
		Mode:       req.Mode,
		Notes:      req.Notes,
	})
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("doctor", appt.DoctorName),
		slog.String("date", appt.Date.Format("2006-01-02")),
		slog.String("time", appt.Time.String()),
	)
	return c.JSON(http.StatusCreated, envelope{
		Data:    toDTO(appt),
		Success: true,
		Message: "Appointment created successfully",
	})
}

func (s *Server) handleUpdate(c echo.Context) error {
	log := s.log.With(slog.String("route", "UpdateAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Appointment id must be a UUID"})
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
	}

	appt, err := s.svc.Update(c.Request().Context(), id, appointments.UpdateInput{
		Name:       req.Name,
		DoctorName: req.DoctorName,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.Duration,
		Status:     req.Status,
		Mode:       req.Mode,
		Notes:      req.Notes,
	})
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Info("appointment updated", slog.String("appointment_id", id.String()))
	return c.JSON(http.StatusOK, envelope{
		Data:    toDTO(appt),
		Success: true,
		Message: "Appointment updated successfully",
	})
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	log := s.log.With(slog.String("route", "UpdateAppointmentStatus"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return c.JSON(http.StatusBadRequest, statusResult{
			Success: false,
			Message: "Appointment id must be a UUID",
			ID:      c.Param("id"),
		})
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil || req.Status == "" {
		log.Warn("invalid request", slog.String("reason", "missing_status"))
		return c.JSON(http.StatusBadRequest, statusResult{
			Success: false,
			Message: "status is required",
			ID:      id.String(),
		})
	}

	return s.updateStatus(c, log, id, req.Status)
}

// updateStatus is shared between the REST route and the action façade.
func (s *Server) updateStatus(c echo.Context, log *slog.Logger, id uuid.UUID, status string) error {
	appt, err := s.svc.UpdateStatus(c.Request().Context(), id, status)
	if err != nil {
		var vErr *appointments.ValidationError
		switch {
		case errors.As(err, &vErr):
			log.Warn("invalid request", slog.Any("err", err))
			return c.JSON(http.StatusBadRequest, statusResult{
				Success: false,
				Message: vErr.Error(),
				ID:      id.String(),
			})
		case errors.Is(err, store.ErrNotFound):
			log.Info("appointment not found", slog.String("appointment_id", id.String()))
			return c.JSON(http.StatusNotFound, statusResult{
				Success: false,
				Message: "Appointment not found: " + id.String(),
				ID:      id.String(),
			})
		default:
			return s.respondError(c, log, err)
		}
	}

	log.Info("appointment status updated",
		slog.String("appointment_id", id.String()),
		slog.String("status", string(appt.Status)),
	)
	return c.JSON(http.StatusOK, statusResult{
		Success:   true,
		Message:   "Appointment status updated to " + string(appt.Status),
		ID:        appt.ID.String(),
		Status:    string(appt.Status),
		Timestamp: appt.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	log := s.log.With(slog.String("route", "DeleteAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Appointment id must be a UUID"})
	}

	appt, err := s.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, log, err)
	}

	log.Info("appointment deleted", slog.String("appointment_id", id.String()))
	return c.JSON(http.StatusOK, envelope{
		Data:    toDTO(appt),
		Success: true,
		Message: "Appointment deleted successfully",
	})
}

func (s *Server) respondError(c echo.Context, log *slog.Logger, err error) error {
	var cErr *store.ConflictError
	if errors.As(err, &cErr) {
		log.Info("appointment conflict", slog.String("patient", cErr.Conflict.PatientName))
		return c.JSON(http.StatusConflict, envelope{
			Success:  false,
			Message:  cErr.Error(),
			Conflict: toConflictDTO(cErr.Conflict),
		})
	}
	if errors.Is(err, store.ErrConflict) {
		log.Info("appointment conflict")
		return c.JSON(http.StatusConflict, envelope{
			Success: false,
			Message: "This time slot is already booked! Please choose a different time.",
		})
	}

	var vErr *appointments.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: vErr.Error()})
	}
	if errors.Is(err, store.ErrNotFound) {
		log.Info("appointment not found")
		return c.JSON(http.StatusNotFound, envelope{Success: false, Message: "Appointment not found"})
	}

	log.Error("request failed", slog.Any("err", err))
	return c.JSON(http.StatusInternalServerError, envelope{Success: false, Message: "Internal server error"})
}
