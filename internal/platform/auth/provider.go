package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

// ErrNoCredentials means the request carried nothing this provider
// understands; a ChainProvider moves on to the next provider.
var ErrNoCredentials = errors.New("no credentials presented")

// IdentityProvider resolves the caller of a request.
type IdentityProvider interface {
	Resolve(c echo.Context) (*Principal, error)
}

// PrincipalLookup loads the current state of a user by id. It returns an
// error matching apperr.ErrNotFound for unknown ids.
type PrincipalLookup interface {
	LookupPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
}

func loadActive(ctx context.Context, users PrincipalLookup, id uuid.UUID) (*Principal, error) {
	p, err := users.LookupPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	if !p.Active {
		return nil, apperr.ErrUnauthenticated
	}
	return p, nil
}

// SessionProvider resolves the user bound to the session cookie and slides
// the session expiry on success.
type SessionProvider struct {
	sessions *SessionManager
	users    PrincipalLookup
}

func NewSessionProvider(sessions *SessionManager, users PrincipalLookup) *SessionProvider {
	return &SessionProvider{sessions: sessions, users: users}
}

func (p *SessionProvider) Resolve(c echo.Context) (*Principal, error) {
	id, ok := p.sessions.UserID(c)
	if !ok {
		return nil, ErrNoCredentials
	}
	principal, err := loadActive(c.Request().Context(), p.users, id)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			_ = p.sessions.End(c)
		}
		return nil, err
	}
	if err := p.sessions.Touch(c); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return principal, nil
}

// TokenProvider resolves "Authorization: Bearer <jwt>" headers. The user is
// reloaded on every request so deactivation takes effect immediately.
type TokenProvider struct {
	tokens *TokenIssuer
	users  PrincipalLookup
}

func NewTokenProvider(tokens *TokenIssuer, users PrincipalLookup) *TokenProvider {
	return &TokenProvider{tokens: tokens, users: users}
}

func (p *TokenProvider) Resolve(c echo.Context) (*Principal, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, ErrNoCredentials
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
		return nil, apperr.ErrUnauthenticated
	}
	id, err := p.tokens.Verify(raw)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	return loadActive(c.Request().Context(), p.users, id)
}

// ChainProvider tries each provider in order and uses the first that finds
// credentials.
type ChainProvider []IdentityProvider

func (ch ChainProvider) Resolve(c echo.Context) (*Principal, error) {
	for _, p := range ch {
		principal, err := p.Resolve(c)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return principal, err
	}
	return nil, ErrNoCredentials
}

// DevProvider returns a fixed ADMIN identity for every request. main only
// constructs it when config.DevAuthEnabled is true, which Validate makes
// impossible in production.
type DevProvider struct {
	principal Principal
}

// NewDevProviderFor uses an existing user as the development identity, so
// rows written by the caller satisfy user foreign keys.
func NewDevProviderFor(principal Principal) *DevProvider {
	principal.Role = RoleAdmin
	principal.Active = true
	return &DevProvider{principal: principal}
}

func (p *DevProvider) Resolve(echo.Context) (*Principal, error) {
	principal := p.principal
	return &principal, nil
}

// publicPaths bypass authentication. Keys are echo route paths.
var publicPaths = map[string]bool{
	"/":               true,
	"/health":         true,
	"/health/db":      true,
	"/api":            true,
	"/api/health":     true,
	"/api/auth/login": true,
}

// IsPublicPath reports whether the route path skips authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// Authenticate resolves the caller through provider and rejects the request
// with ErrUnauthenticated when nothing resolves. Public routes pass through
// untouched.
func Authenticate(provider IdentityProvider, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsPublicPath(c.Path()) {
				return next(c)
			}

			p, err := provider.Resolve(c)
			if err != nil {
				if errors.Is(err, ErrNoCredentials) || errors.Is(err, apperr.ErrUnauthenticated) {
					return apperr.ErrUnauthenticated
				}
				logger.Error().Err(err).Str("path", c.Path()).Msg("identity resolution failed")
				return err
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}
