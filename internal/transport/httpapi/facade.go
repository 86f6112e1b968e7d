package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"swasthiq/backend/internal/service/appointments"
)

// Façade actions. The dispatch table is deliberately closed: adding an action
// is a code change, not configuration.
const (
	ActionGetAppointments            = "getAppointments"
	ActionUpdateAppointmentStatus    = "updateAppointmentStatus"
	ActionGetAppointmentsByDateRange = "getAppointmentsByDateRange"
)

var ErrUnsupportedAction = errors.New("unsupported action")

type actionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type listActionPayload struct {
	Filters struct {
		Date   string `json:"date"`
		Status string `json:"status"`
	} `json:"filters"`
}

type statusActionPayload struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
}

type rangeActionPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// handleActionBridge accepts {action, payload} and routes to exactly one use
// case, mirroring the resolver bridge the original frontend talks to.
func (s *Server) handleActionBridge(c echo.Context) error {
	log := s.log.With(slog.String("route", "ActionBridge"))

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"))
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
	}

	log = log.With(slog.String("action", req.Action))

	switch req.Action {
	case ActionGetAppointments:
		var payload listActionPayload
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_payload"))
			return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid action payload"})
		}
		appts, err := s.svc.List(c.Request().Context(), appointments.ListInput{
			Date:   payload.Filters.Date,
			Status: payload.Filters.Status,
		})
		if err != nil {
			return s.respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, envelope{
			Data:    toDTOs(appts),
			Success: true,
			Message: "Appointments retrieved successfully",
		})

	case ActionUpdateAppointmentStatus:
		var payload statusActionPayload
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_payload"))
			return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid action payload"})
		}
		id, err := uuid.Parse(payload.AppointmentID)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
			return c.JSON(http.StatusBadRequest, statusResult{
				Success: false,
				Message: "appointmentId must be a UUID",
				ID:      payload.AppointmentID,
			})
		}
		return s.updateStatus(c, log, id, payload.Status)

	case ActionGetAppointmentsByDateRange:
		var payload rangeActionPayload
		if err := unmarshalPayload(req.Payload, &payload); err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_payload"))
			return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "Invalid action payload"})
		}
		appts, err := s.svc.ListRange(c.Request().Context(), payload.StartDate, payload.EndDate)
		if err != nil {
			return s.respondError(c, log, err)
		}
		return c.JSON(http.StatusOK, envelope{
			Data:    toDTOs(appts),
			Success: true,
			Message: "Appointments retrieved successfully",
		})

	default:
		log.Warn("unsupported action", slog.Any("err", fmt.Errorf("%w: %s", ErrUnsupportedAction, req.Action)))
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "Unknown action: " + req.Action,
		})
	}
}

func unmarshalPayload(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}
