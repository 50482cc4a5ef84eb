package files

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hubassist/clinic-api/internal/domain/patient"
	"github.com/hubassist/clinic-api/internal/platform/blobstore"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts file and photo routes on a clinic-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:id/files/:bucket", h.handleList)
	g.POST("/patients/:id/files/:bucket", h.handleUpload)
	g.GET("/patients/:id/files/:bucket/:name", h.handleDownload)
	g.DELETE("/patients/:id/files/:bucket/:name", h.handleDelete)

	g.GET("/patients/:id/photos", h.handlePhotoStatus)
	g.GET("/patients/:id/photos/:view", h.handleGetPhoto)
	g.POST("/patients/:id/photos/:view", h.handleSavePhoto)
}

func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func (h *Handler) handleList(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	items, err := h.service.List(c.Request().Context(), patientID, c.Param("bucket"))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

func (h *Handler) handleUpload(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		if single, err := c.FormFile("file"); err == nil {
			fileHeaders = append(fileHeaders, single)
		}
	}
	if len(fileHeaders) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files attached")
	}

	var uploads []Upload
	var closers []func()
	defer func() {
		for _, close := range closers {
			close()
		}
	}()
	for _, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
		}
		closers = append(closers, func() { src.Close() })
		uploads = append(uploads, Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Content:     src,
		})
	}

	results, err := h.service.UploadBatch(c.Request().Context(), patientID, c.Param("bucket"), uploads, nil)
	if err != nil {
		return writeError(err)
	}

	status := http.StatusCreated
	for _, r := range results {
		if r.Error != "" {
			// Partial success still returns the full result list.
			status = http.StatusMultiStatus
			break
		}
	}
	return c.JSON(status, map[string]interface{}{"results": results})
}

func (h *Handler) handleDownload(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	rc, info, err := h.service.Download(c.Request().Context(), patientID, c.Param("bucket"), c.Param("name"))
	if err != nil {
		return writeError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, info.Name))
	return c.Stream(http.StatusOK, info.ContentType, rc)
}

func (h *Handler) handleDelete(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), patientID, c.Param("bucket"), c.Param("name")); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handlePhotoStatus(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	status, err := h.service.PhotoStatus(c.Request().Context(), patientID)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) handleGetPhoto(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	rc, info, err := h.service.GetPhoto(c.Request().Context(), patientID, c.Param("view"))
	if err != nil {
		return writeError(err)
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, info.ContentType, rc)
}

func (h *Handler) handleSavePhoto(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	obj, url, err := h.service.SavePhoto(c.Request().Context(), patientID, c.Param("view"), Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     src,
	})
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"object": obj, "url": url})
}

func writeError(err error) error {
	switch {
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, patient.ErrNoClinic):
		return echo.NewHTTPError(http.StatusForbidden, "no clinic in scope")
	case errors.Is(err, blobstore.ErrObjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	case errors.Is(err, blobstore.ErrBucketNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "unknown bucket")
	case errors.Is(err, ErrUnknownView):
		return echo.NewHTTPError(http.StatusNotFound, "unknown photo view")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
