package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

// Allow is the role gate: nil when p holds one of roles, otherwise an
// ErrForbidden (or ErrUnauthenticated when p is nil). It has no side effects.
func Allow(p *Principal, roles ...Role) error {
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Forbidden(fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
}

// RequireRole applies Allow to the request's principal.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Allow(PrincipalFromContext(c.Request().Context()), roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
