package interaction

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/supplemate/api/internal/platform/apperror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/interactions/check", h.CheckPair)
	api.GET("/interactions/:drug1/:drug2", h.GetCachedPair)
}

type checkPairRequest struct {
	Drug1 string `json:"drug1"`
	Drug2 string `json:"drug2"`
}

func (h *Handler) CheckPair(c echo.Context) error {
	var req checkPairRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.CheckPair(c.Request().Context(), req.Drug1, req.Drug2)
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetCachedPair(c echo.Context) error {
	in, err := h.svc.GetCachedPair(c.Request().Context(), c.Param("drug1"), c.Param("drug2"))
	if err != nil {
		return apperror.HTTPError(err)
	}
	return c.JSON(http.StatusOK, in)
}
