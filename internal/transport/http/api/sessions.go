package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// UploadDocument stores a document for retrieval in the session.
// POST /upload-pdf (multipart: file, session_id)
func (h *Handler) UploadDocument(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "file is required")
	}
	filename := filepath.Base(file.Filename)

	src, err := file.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read upload")
	}

	resp, err := h.service.Upload(c.Request().Context(), c.FormValue("session_id"), filename, data)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, domain.ErrUnsupportedDocument):
		return errorJSON(c, http.StatusBadRequest, "Only PDF, TXT and MD files are supported")
	case errors.Is(err, domain.ErrDocumentTooLarge):
		return errorJSON(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrEmptyDocument):
		return errorJSON(c, http.StatusUnprocessableEntity, "Upload error: "+err.Error())
	default:
		return errorJSON(c, http.StatusInternalServerError, "Upload error: "+err.Error())
	}
}

// DeleteSession deletes a session and its documents.
// DELETE /session/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	err := h.service.DeleteSession(c.Request().Context(), sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Delete error: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":    "Session deleted successfully",
		"session_id": sessionID,
	})
}

// GetSessionHistory returns the conversation of a session.
// GET /session/:session_id/history
func (h *Handler) GetSessionHistory(c echo.Context) error {
	resp, err := h.service.History(c.Param("session_id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "History error: "+err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSessionEvents returns the audit events of a session.
// GET /session/:session_id/events?after_ts=&types=a,b&limit=
func (h *Handler) GetSessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")

	var afterTs int64
	if v := c.QueryParam("after_ts"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid after_ts")
		}
		afterTs = parsed
	}
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return errorJSON(c, http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	var types []string
	if v := c.QueryParam("types"); v != "" {
		types = strings.Split(v, ",")
	}

	events, err := h.service.Events(c.Request().Context(), sessionID, afterTs, types, limit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []domain.Event{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events":     events,
	})
}
