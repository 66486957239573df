package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/pkg/pagination"
)

var listPolicy = pagination.Policy{Default: 50, Max: 500}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit-logs", h.List, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.Parse(c, listPolicy)
	f := Filter{Limit: p.Limit, Offset: p.Offset, Action: c.QueryParam("action")}

	if v := c.QueryParam("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Invalid("userId", "must be a UUID")
		}
		f.UserID = &id
	}
	if v := c.QueryParam("severity"); v != "" {
		sev := Severity(v)
		if !sev.Valid() {
			return apperr.Invalid("severity", "must be one of INFO, WARNING, HIGH")
		}
		f.Severity = sev
	}

	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}
