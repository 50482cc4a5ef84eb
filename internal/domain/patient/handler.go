package patient

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
	"github.com/hubassist/clinic-api/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts patient routes on a clinic-scoped group. Deleting a
// patient removes the row and every stored file, so it is admin-only.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.handleList)
	g.POST("/patients", h.handleCreate)
	g.GET("/patients/:id", h.handleGet)
	g.PUT("/patients/:id", h.handleUpdate)
	g.DELETE("/patients/:id", h.handleDelete, auth.RequireRole(auth.RoleClinicAdmin))
}

const birthDateLayout = "2006-01-02"

// bindInput reads the patient fields from either a JSON body or a multipart
// form. Multipart requests may attach the portrait under the "image" field;
// the caller owns closing the returned reader.
func bindInput(c echo.Context) (Input, *ImageUpload, func(), error) {
	noop := func() {}
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		var in Input
		if err := c.Bind(&in); err != nil {
			return Input{}, nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		return in, nil, noop, nil
	}

	in := Input{Name: c.FormValue("name")}
	if v := c.FormValue("cpf"); v != "" {
		in.CPF = &v
	}
	if v := c.FormValue("gender"); v != "" {
		in.Gender = &v
	}
	if v := c.FormValue("birth_date"); v != "" {
		d, err := time.Parse(birthDateLayout, v)
		if err != nil {
			return Input{}, nil, noop, echo.NewHTTPError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		}
		in.BirthDate = &d
	}
	for field, dst := range map[string]**string{
		"cep":      &in.Address.CEP,
		"street":   &in.Address.Street,
		"number":   &in.Address.Number,
		"district": &in.Address.District,
		"city":     &in.Address.City,
		"state":    &in.Address.State,
	} {
		if v := c.FormValue(field); v != "" {
			value := v
			*dst = &value
		}
	}

	file, err := c.FormFile("image")
	if err != nil {
		// No image attached.
		return in, nil, noop, nil
	}
	src, err := file.Open()
	if err != nil {
		return Input{}, nil, noop, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded image")
	}

	image := &ImageUpload{
		FileName:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Size:        file.Size,
		Content:     src,
	}
	return in, image, func() { src.Close() }, nil
}

func (h *Handler) handleCreate(c echo.Context) error {
	in, image, cleanup, err := bindInput(c)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := h.service.Create(c.Request().Context(), in, image)
	if err != nil {
		return writeServiceError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) handleGet(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	p, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) handleList(c echo.Context) error {
	page := pagination.FromContext(c)
	name := c.QueryParam("name")

	patients, total, err := h.service.List(c.Request().Context(), name, page.Limit, page.Offset)
	if err != nil {
		return writeServiceError(err)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, page.Limit, page.Offset))
}

func (h *Handler) handleUpdate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	in, image, cleanup, err := bindInput(c)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := h.service.Update(c.Request().Context(), id, in, image)
	if err != nil {
		return writeServiceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) handleDelete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func writeServiceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrNoClinic):
		return echo.NewHTTPError(http.StatusForbidden, "no clinic in scope")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
