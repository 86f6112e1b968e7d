package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"swasthiq/backend/internal/domain"
	"swasthiq/backend/internal/service/appointments"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	List(ctx context.Context, in appointments.ListInput) ([]domain.Appointment, error)
	ListRange(ctx context.Context, startDate, endDate string) ([]domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Health(ctx context.Context) error
}

type Server struct {
	echo *echo.Echo
	svc  appointmentsService
	log  *slog.Logger
}

func NewServer(svc appointmentsService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo: e,
		svc:  svc,
		log:  log.With(slog.String("component", "http.appointments")),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/appointments", s.handleList)
	api.GET("/appointments/date-range", s.handleDateRange)
	api.GET("/appointments/status/:status", s.handleListByStatus)
	api.GET("/appointments/:id", s.handleGet)
	api.POST("/appointments", s.handleCreate)
	api.PUT("/appointments/:id", s.handleUpdate)
	api.PUT("/appointments/:id/status", s.handleUpdateStatus)
	api.PATCH("/appointments/:id/status", s.handleUpdateStatus)
	api.DELETE("/appointments/:id", s.handleDelete)
	api.POST("/graphql-bridge", s.handleActionBridge)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
