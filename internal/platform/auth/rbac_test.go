package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

func principal(role Role) *Principal {
	return &Principal{ID: uuid.New(), Email: "x@pharma.com", Role: role, Active: true}
}

func TestAllow(t *testing.T) {
	tests := []struct {
		name  string
		p     *Principal
		roles []Role
		want  error
	}{
		{"admin in admin set", principal(RoleAdmin), []Role{RoleAdmin}, nil},
		{"reviewer in reviewer/admin set", principal(RoleReviewer), []Role{RoleReviewer, RoleAdmin}, nil},
		{"user not in reviewer/admin set", principal(RoleUser), []Role{RoleReviewer, RoleAdmin}, apperr.ErrForbidden},
		{"reviewer not in admin set", principal(RoleReviewer), []Role{RoleAdmin}, apperr.ErrForbidden},
		{"admin not implicitly granted", principal(RoleAdmin), []Role{RoleUser}, apperr.ErrForbidden},
		{"nil principal", nil, []Role{RoleUser}, apperr.ErrUnauthenticated},
		{"empty role set", principal(RoleAdmin), nil, apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Allow(tt.p, tt.roles...)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRequireRole_Middleware(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	req := httptest.NewRequest(http.MethodGet, "/api/audit-logs", nil)
	req = req.WithContext(WithPrincipal(req.Context(), principal(RoleReviewer)))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireRole(RoleAdmin)(ok)(c)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/audit-logs", nil)
	req = req.WithContext(WithPrincipal(req.Context(), principal(RoleAdmin)))
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := RequireRole(RoleAdmin)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("SUPERUSER").Valid() {
		t.Error("SUPERUSER must not be valid")
	}
}
