package aimodel

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ai-models", h.List, auth.RequireRole(auth.RoleReviewer, auth.RoleAdmin))
	api.POST("/ai-models", h.Create, auth.RequireRole(auth.RoleAdmin))
	api.PUT("/ai-models/:id", h.Update, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	models, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	m, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("AI model")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	m, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
