package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	goyaml "github.com/goccy/go-yaml"
	"github.com/jtarchie/discovery/dispatch"
	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/storage"
	"github.com/labstack/echo/v5"
)

func (h *handlers) listTasks(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage < 1 {
		perPage = 20
	}

	result, err := h.driver.ListEntries(c.Request().Context(), storage.EntryTypeTask, page, perPage)
	if err != nil {
		h.logger.Error("could not list tasks", "error", err)

		return c.JSON(http.StatusInternalServerError, errorBody("could not list tasks"))
	}

	return c.JSON(http.StatusOK, result)
}

func (h *handlers) getTask(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorBody("missing task id"))
	}

	entry, err := h.driver.GetEntry(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("task not found"))
		}

		h.logger.Error("could not get task", "id", id, "error", err)

		return c.JSON(http.StatusInternalServerError, errorBody("could not get task"))
	}

	return c.JSON(http.StatusOK, entry)
}

// uploadTask accepts a multipart upload of a JSON or YAML task schema,
// compiles it, and saves it to the registry.
func (h *handlers) uploadTask(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("missing file upload field"))
	}

	contentType := fileHeader.Header.Get("Content-Type")

	document, err := decodeUpload(fileHeader, contentType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	raw, err := decodeTaskDocument(document)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	task, err := schema.Compile(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	entry, err := h.driver.SaveEntry(c.Request().Context(), storage.Entry{
		ID:          task.ID,
		Type:        storage.EntryTypeTask,
		Name:        task.Name,
		Description: task.Description,
		Schema:      storage.Payload(document),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("task %q already exists", task.ID)))
		}

		h.logger.Error("could not save task", "id", task.ID, "error", err)

		return c.JSON(http.StatusInternalServerError, errorBody("could not save task"))
	}

	return c.JSON(http.StatusCreated, map[string]any{"message": "task created", "id": entry.ID})
}

// runRequest is the body of POST /tasks/run.
type runRequest struct {
	ID         string         `json:"id"                   validate:"required"`
	OwnerID    string         `json:"owner_id"             validate:"required"`
	ParentID   string         `json:"parent_id,omitempty"`
	Parameters map[string]any `json:"parameters"`
}

func (h *handlers) runTask(c echo.Context) error {
	var body runRequest

	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	if err := h.validator.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	entry, err := h.driver.GetEntry(c.Request().Context(), body.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("task not found"))
		}

		h.logger.Error("could not look up task", "id", body.ID, "error", err)

		return c.JSON(http.StatusInternalServerError, errorBody("could not look up task"))
	}

	runID := h.queue.Enqueue(dispatch.Envelope{
		Schema:     entry.Schema,
		OwnerID:    body.OwnerID,
		ParentID:   body.ParentID,
		Parameters: body.Parameters,
	})

	return c.JSON(http.StatusOK, map[string]string{"id": runID})
}

func decodeUpload(fileHeader *multipart.FileHeader, contentType string) (map[string]any, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open uploaded file: %w", err)
	}
	defer func() { _ = file.Close() }()

	contents, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("could not read uploaded file: %w", err)
	}

	document := map[string]any{}

	switch contentType {
	case "application/json":
		if err := json.Unmarshal(contents, &document); err != nil {
			return nil, fmt.Errorf("invalid json schema: %w", err)
		}
	case "text/yaml":
		if err := goyaml.Unmarshal(contents, &document); err != nil {
			return nil, fmt.Errorf("invalid yaml schema: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q: expected application/json or text/yaml", contentType)
	}

	return document, nil
}

func decodeTaskDocument(document map[string]any) (schema.RawTask, error) {
	var raw schema.RawTask

	contents, err := json.Marshal(document)
	if err != nil {
		return raw, fmt.Errorf("could not marshal schema document: %w", err)
	}

	if err := json.Unmarshal(contents, &raw); err != nil {
		return raw, fmt.Errorf("invalid task schema: %w", err)
	}

	return raw, nil
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
