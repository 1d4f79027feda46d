package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"geo-bknd/internal/apperr"
	"geo-bknd/internal/models"
	"geo-bknd/internal/pagination"
	"geo-bknd/internal/services"
	"geo-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectService is implemented by *services.ProjectService.
type ProjectService interface {
	Create(ctx context.Context, in services.CreateInput) (*models.ProjectView, error)
	Read(ctx context.Context, id int64) (*models.ProjectView, error)
	List(ctx context.Context) ([]models.ProjectView, error)
	ListPaged(ctx context.Context, page, size int) (*models.PagedProjects, error)
	Update(ctx context.Context, id int64, in services.UpdateInput) (*models.ProjectView, error)
	Delete(ctx context.Context, id int64) error
	Health(ctx context.Context) error
}

// ProjectHandler handles HTTP requests for geo projects
type ProjectHandler struct {
	service        ProjectService
	logr           *zap.Logger
	maxUploadBytes int64
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(svc ProjectService, logr *zap.Logger, maxUploadBytes int64) *ProjectHandler {
	return &ProjectHandler{
		service:        svc,
		logr:           logr,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create handles POST /geojson/create
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	upload, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if upload.data == nil {
		h.writeError(w, apperr.BadRequest("file is required."))
		return
	}

	in := services.CreateInput{
		Description: utils.OptionalString(r.Form, "description"),
		FileName:    upload.name,
		Document:    upload.data,
	}
	if name := utils.OptionalString(r.Form, "name"); name != nil {
		in.Name = *name
	}

	start, end, err := parseDates(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if start == nil || end == nil {
		h.writeError(w, apperr.BadRequest("start_date and end_date are required."))
		return
	}
	in.StartDate, in.EndDate = *start, *end

	view, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// Read handles GET /geojson/read/{project_id}
func (h *ProjectHandler) Read(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.service.Read(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// List handles GET /geojson/list
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// ListPaged handles GET /geojson/list/paged?page=1&size=10
func (h *ProjectHandler) ListPaged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := utils.IntOrDefault(q, "page", pagination.DefaultPage)
	if err != nil {
		h.writeError(w, apperr.BadRequest("Bad request: %s.", err.Error()))
		return
	}
	size, err := utils.IntOrDefault(q, "size", pagination.DefaultSize)
	if err != nil {
		h.writeError(w, apperr.BadRequest("Bad request: %s.", err.Error()))
		return
	}

	result, err := h.service.ListPaged(r.Context(), page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Update handles PATCH /geojson/update/{project_id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	upload, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	start, end, err := parseDates(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	in := services.UpdateInput{
		Name:        utils.OptionalString(r.Form, "name"),
		Description: utils.OptionalString(r.Form, "description"),
		StartDate:   start,
		EndDate:     end,
		FileName:    upload.name,
		Document:    upload.data,
	}

	view, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /geojson/delete/{project_id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Healthz handles GET /healthz
func (h *ProjectHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logr.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type upload struct {
	name string
	data []byte
}

// readUpload parses the request form and reads the optional multipart "file"
// part. Non-multipart requests carry parameters only.
func (h *ProjectHandler) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	if r.ContentLength > h.maxUploadBytes {
		return upload{}, uploadError(&http.MaxBytesError{Limit: h.maxUploadBytes})
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return upload{}, uploadError(err)
		}
		if err := r.ParseForm(); err != nil {
			return upload{}, uploadError(err)
		}
		return upload{}, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload{}, nil
		}
		return upload{}, uploadError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, uploadError(err)
	}
	return upload{name: header.Filename, data: data}, nil
}

func parseDates(r *http.Request) (start, end *time.Time, err error) {
	if start, err = utils.OptionalDate(r.Form, "start_date"); err != nil {
		return nil, nil, apperr.BadRequest("Bad request: %s.", err.Error())
	}
	if end, err = utils.OptionalDate(r.Form, "end_date"); err != nil {
		return nil, nil, apperr.BadRequest("Bad request: %s.", err.Error())
	}
	return start, end, nil
}

func projectID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "project_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("Invalid project id: %s.", raw)
	}
	return id, nil
}
