package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/modelrouter/internal/domain"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
)

// InvokeTool handles tool invocation.
// POST /v1/tools/:tool_name/invoke
func (h *Handler) InvokeTool(c echo.Context) error {
	toolName := c.Param("tool_name")
	var req domain.ToolInvokeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.InvokeTool(c.Request().Context(), toolName, req)
	if errors.Is(err, tools.ErrToolNotFound) {
		return errorJSON(c, http.StatusNotFound, "tool not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}
