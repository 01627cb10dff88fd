// Package api exposes classification and training over HTTP.
//
// The server is a thin translation layer: it decodes requests into
// domain types, delegates to the driving ports and maps domain errors
// onto HTTP status codes. No business logic lives here.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driving"
)

// Server wires the driving ports into an echo router.
type Server struct {
	classifier driving.ClassificationService
	trainer    driving.TrainingService
	bundles    driven.BundleStore
}

// NewServer creates a Server over the given services.
func NewServer(classifier driving.ClassificationService, trainer driving.TrainingService, bundles driven.BundleStore) *Server {
	return &Server{
		classifier: classifier,
		trainer:    trainer,
		bundles:    bundles,
	}
}

// Register attaches all routes under /api.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api")

	g.POST("/classify", s.handleClassify)

	g.POST("/jobs", s.handleSubmitJob)
	g.GET("/jobs", s.handleListJobs)
	g.GET("/jobs/:id", s.handleGetJob)
	g.DELETE("/jobs/:id", s.handleCancelJob)

	g.GET("/bundles", s.handleListBundles)
	g.GET("/bundles/current", s.handleCurrentBundle)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// jsonError maps a domain error onto an HTTP status and the standard
// error body.
func jsonError(c echo.Context, err error) error {
	return c.JSON(statusFor(err), errorBody{
		Kind:   domain.ErrorKind(err),
		Reason: err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidSequence):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotCancellable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNoBundle):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
