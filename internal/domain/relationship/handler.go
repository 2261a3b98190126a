package relationship

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
	g := api.Group("/relationships")
	g.POST("/requests", h.SendRequest)
	g.GET("/requests/incoming", h.ListIncoming)
	g.GET("/requests/outgoing", h.ListOutgoing)
	g.POST("/requests/:id/respond", h.RespondToRequest)
	g.GET("/patients", h.ListPatients, auth.RequireRole(auth.RoleDoctor))
	g.GET("/doctors", h.ListDoctors, auth.RequireRole(auth.RolePatient))
	g.GET("/primary-doctor", h.GetPrimaryDoctor, auth.RequireRole(auth.RolePatient))
	g.PUT("/primary-doctor", h.SetPrimaryDoctor, auth.RequireRole(auth.RolePatient))
	g.DELETE("/primary-doctor", h.ClearPrimaryDoctor, auth.RequireRole(auth.RolePatient))
	g.DELETE("/:id", h.RemoveRelationship)
}

type sendRequestInput struct {
	RecipientID uuid.UUID `json:"recipient_id"`
}

func (h *Handler) SendRequest(c echo.Context) error {
	var in sendRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.RecipientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient_id is required")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.SendRequest(c.Request().Context(), userID, in.RecipientID)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

type respondRequestInput struct {
	Decision string `json:"decision"`
}

func (h *Handler) RespondToRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in respondRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Decision != "accept" && in.Decision != "reject" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be accept or reject")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.RespondToRequest(c.Request().Context(), userID, id, in.Decision == "accept")
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListIncoming(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	reqs, total, err := h.svc.ListIncomingRequests(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListOutgoing(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	reqs, total, err := h.svc.ListOutgoingRequests(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	rels, total, err := h.svc.ListPatients(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rels, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	rels, total, err := h.svc.ListDoctors(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rels, total, pg.Limit, pg.Offset))
}

type setPrimaryInput struct {
	DoctorID uuid.UUID `json:"doctor_id"`
}

func (h *Handler) GetPrimaryDoctor(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	rel, err := h.svc.GetPrimaryDoctor(c.Request().Context(), userID)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

func (h *Handler) SetPrimaryDoctor(c echo.Context) error {
	var in setPrimaryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	rel, err := h.svc.SetPrimaryDoctor(c.Request().Context(), userID, in.DoctorID)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

func (h *Handler) ClearPrimaryDoctor(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.ClearPrimaryDoctor(c.Request().Context(), userID); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveRelationship(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.RemoveRelationship(c.Request().Context(), userID, id); err != nil {
		return apperror.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
