package prediction

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
	reviewers := auth.RequireRole(auth.RoleReviewer, auth.RoleAdmin)
	api.POST("/ai-analysis", h.Analyze, reviewers)
	api.GET("/cases/:id/predictions", h.ListForCase)
	api.PUT("/predictions/:id/review", h.Review, reviewers)
}

func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil || req.CaseID == "" {
		return apperr.Invalid("caseId", "Case ID is required")
	}
	id, err := uuid.Parse(req.CaseID)
	if err != nil {
		return apperr.NotFound("case")
	}
	resp, err := h.svc.Analyze(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListForCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("case")
	}
	preds, err := h.svc.ListForCase(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, preds)
}

func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("prediction")
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "Invalid review data")
	}
	pred, err := h.svc.Review(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pred)
}
