package anamnesis

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hubassist/clinic-api/internal/domain/patient"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts anamnesis routes on a clinic-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:id/anamnesis", h.handleGet)
	g.PUT("/patients/:id/anamnesis", h.handleSave)
}

func (h *Handler) handleGet(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	rec, err := h.service.Get(c.Request().Context(), patientID)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) handleSave(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := h.service.Save(c.Request().Context(), patientID, in)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func writeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "anamnesis not found")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, patient.ErrNoClinic):
		return echo.NewHTTPError(http.StatusForbidden, "no clinic in scope")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
