package identity

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/pkg/pagination"
)

type Handler struct {
	svc      *Service
	sessions *auth.SessionManager
	tokens   *auth.TokenIssuer
}

// NewHandler wires the auth and user routes. tokens may be nil, in which
// case POST /auth/token is not registered.
func NewHandler(svc *Service, sessions *auth.SessionManager, tokens *auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, sessions: sessions, tokens: tokens}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
	if h.tokens != nil {
		api.POST("/auth/token", h.IssueToken)
	}

	admin := auth.RequireRole(auth.RoleAdmin)
	api.GET("/users", h.ListUsers, admin)
	api.POST("/users", h.CreateUser, admin)
	api.GET("/users/:id", h.GetUser, admin)
	api.PUT("/users/:id", h.UpdateUser, admin)
	api.DELETE("/users/:id", h.DeleteUser, admin)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "Email and password are required")
	}
	u, err := h.svc.Login(c.Request().Context(), c.RealIP(), req)
	if err != nil {
		return err
	}
	if err := h.sessions.Begin(c, u.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": u.Principal()})
}

func (h *Handler) Logout(c echo.Context) error {
	h.svc.Logout(c.Request().Context())
	if err := h.sessions.End(c); err != nil {
		h.svc.logger.Warn().Err(err).Msg("destroy session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) IssueToken(c echo.Context) error {
	ctx := c.Request().Context()
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	token, expiresAt, err := h.tokens.Issue(p)
	if err != nil {
		return err
	}
	h.svc.RecordTokenIssued(ctx, expiresAt)
	return c.JSON(http.StatusCreated, map[string]any{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	f := UserFilter{Limit: p.Limit, Offset: p.Offset}
	if v := c.QueryParam("role"); v != "" {
		role := auth.Role(v)
		if !role.Valid() {
			return apperr.Invalid("role", "must be one of: USER, REVIEWER, ADMIN")
		}
		f.Role = role
	}
	if v := c.QueryParam("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Invalid("isActive", "must be true or false")
		}
		f.IsActive = &active
	}

	users, total, err := h.svc.ListUsers(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func userID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("user")
	}
	return id, nil
}
