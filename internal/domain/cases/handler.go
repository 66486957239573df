package cases

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/pkg/pagination"
)

var listPolicy = pagination.Policy{Default: 100, Max: 500}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/cases", h.List)
	api.POST("/cases", h.Create)
	api.GET("/cases/critical", h.Critical)
	api.GET("/cases/:id", h.Get)
	api.PUT("/cases/:id", h.Update, auth.RequireRole(auth.RoleReviewer, auth.RoleAdmin))
	api.DELETE("/cases/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.Parse(c, listPolicy)
	f := ListFilter{
		Status: Status(c.QueryParam("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if v := c.QueryParam("includeDeleted"); v != "" {
		f.IncludeDeleted, _ = strconv.ParseBool(v)
	}
	if v := c.QueryParam("reporterId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Invalid("reporterId", "must be a UUID")
		}
		f.ReporterID = &id
	}

	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Critical(c echo.Context) error {
	items, err := h.svc.Critical(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	includeDeleted, _ := strconv.ParseBool(c.QueryParam("includeDeleted"))
	out, err := h.svc.Get(c.Request().Context(), id, includeDeleted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	out, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := json.NewDecoder(c.Request().Body).Decode(&patch); err != nil {
		return apperr.Invalid("", "request body must be a JSON object")
	}
	out, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("deletionReason", "Deletion reason is required")
	}
	archived, err := h.svc.SoftDelete(c.Request().Context(), id, req.DeletionReason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":      "Case archived successfully",
		"archivedCase": archived,
	})
}

func caseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("case")
	}
	return id, nil
}
