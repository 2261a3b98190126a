package notification

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/auth"
	"github.com/supplemate/api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("/interactions", h.ListInteractionAlerts, auth.RequireRole(auth.RoleDoctor))
	g.DELETE("/interactions/:id", h.DismissInteractionAlert, auth.RequireRole(auth.RoleDoctor))
	g.GET("/responses", h.ListResponses, auth.RequireRole(auth.RolePatient))
	g.DELETE("/responses/:id", h.DismissResponse, auth.RequireRole(auth.RolePatient))
}

func (h *Handler) ListInteractionAlerts(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	alerts, total, err := h.svc.ListInteractionAlerts(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(alerts, total, pg.Limit, pg.Offset))
}

func (h *Handler) DismissInteractionAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.DismissInteractionAlert(c.Request().Context(), id, userID); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListResponses(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	responses, total, err := h.svc.ListResponses(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(responses, total, pg.Limit, pg.Offset))
}

func (h *Handler) DismissResponse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.DismissResponse(c.Request().Context(), id, userID); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
