package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
)

// Chat routes a message and returns the answer with its routing metadata.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Chat(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			return errorJSON(c, http.StatusBadRequest, "message is required")
		}
		return errorJSON(c, http.StatusInternalServerError, "Chat error: "+err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}

// Route returns the routing decision for a query without answering it.
// POST /v1/route
func (h *Handler) Route(c echo.Context) error {
	var req domain.RouteRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Route(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			return errorJSON(c, http.StatusBadRequest, "query is required")
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}
