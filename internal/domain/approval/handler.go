package approval

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
	items := api.Group("/items", auth.RequireRole(auth.RolePatient))
	items.GET("", h.ListItems)
	items.POST("", h.AddItem)
	items.PUT("/:id", h.UpdateItem)
	items.DELETE("/:id", h.DeleteItem)

	api.GET("/patients/:id/items", h.ListPatientItems, auth.RequireRole(auth.RoleDoctor))

	approvals := api.Group("/approvals")
	approvals.GET("", h.ListPendingForDoctor, auth.RequireRole(auth.RoleDoctor))
	approvals.GET("/pending", h.ListPendingForPatient, auth.RequireRole(auth.RolePatient))
	approvals.POST("/:id/respond", h.Respond, auth.RequireRole(auth.RoleDoctor))
	approvals.DELETE("/:id", h.Cancel, auth.RequireRole(auth.RolePatient))
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListItems(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddItem(c echo.Context) error {
	var in AddItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	result, err := h.svc.AddItem(c.Request().Context(), userID, in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	item, err := h.svc.UpdateItem(c.Request().Context(), userID, id, in)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.DeleteItem(c.Request().Context(), userID, id); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientItems(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doctorID := auth.UserIDFromContext(c.Request().Context())
	view, err := h.svc.ListPatientItems(c.Request().Context(), doctorID, patientID)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ListPendingForDoctor(c echo.Context) error {
	pg := pagination.FromContext(c)
	doctorID := auth.UserIDFromContext(c.Request().Context())
	reqs, total, err := h.svc.ListPendingForDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPendingForPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID := auth.UserIDFromContext(c.Request().Context())
	reqs, total, err := h.svc.ListPendingForPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

type respondInput struct {
	Decision string  `json:"decision"`
	Notes    *string `json:"notes,omitempty"`
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in respondInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Decision != "approve" && in.Decision != "reject" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approve or reject")
	}
	doctorID := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.Respond(c.Request().Context(), doctorID, id, in.Decision == "approve", in.Notes)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	patientID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.Cancel(c.Request().Context(), patientID, id); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
