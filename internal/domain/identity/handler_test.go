package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

var testSessionKey = []byte(strings.Repeat("k", 32))

type handlerFixture struct {
	*fixture
	h     *Handler
	e     *echo.Echo
	store sessions.Store
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)
	opts := auth.CookieOptions(time.Hour, false)
	store := auth.NewMemoryStore(opts, testSessionKey)
	tokens, err := auth.NewTokenIssuer([]byte(strings.Repeat("t", 32)), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	e.Validator = apperr.NewValidator()
	return &handlerFixture{
		fixture: f,
		h:       NewHandler(f.svc, auth.NewSessionManager(opts), tokens),
		e:       e,
		store:   store,
	}
}

func (hf *handlerFixture) call(t *testing.T, method, target, body string, p *auth.Principal, h echo.HandlerFunc, params ...string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	c := hf.e.NewContext(req, rec)
	if len(params) > 0 {
		c.SetParamNames("id")
		c.SetParamValues(params[0])
	}
	err := session.Middleware(hf.store)(h)(c)
	return rec, err
}

func TestHandler_LoginSetsSessionCookie(t *testing.T) {
	hf := newHandlerFixture(t)
	u := hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodPost, "/api/auth/login",
		`{"email":"user@pharma.com","password":"user123!"}`, nil, hf.h.Login)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionName && ck.Value != "" {
			found = ck.HttpOnly
		}
	}
	if !found {
		t.Error("expected an HttpOnly session cookie")
	}

	var body struct {
		User auth.Principal `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.User.ID != u.ID || body.User.Email != "user@pharma.com" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not contain password data")
	}
}

func TestHandler_LoginWrongPassword(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodPost, "/api/auth/login",
		`{"email":"user@pharma.com","password":"bad"}`, nil, hf.h.Login)
	if !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionName && ck.Value != "" {
			t.Error("no session should be created")
		}
	}
}

func TestHandler_LogoutAndMe(t *testing.T) {
	hf := newHandlerFixture(t)
	u := hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodGet, "/api/auth/me", "", u.Principal(), hf.h.Me)
	if err != nil {
		t.Fatal(err)
	}
	var me map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &me)
	if me["email"] != "user@pharma.com" || me["role"] != "USER" {
		t.Errorf("unexpected /me body %v", me)
	}

	rec, err = hf.call(t, http.MethodPost, "/api/auth/logout", "", u.Principal(), hf.h.Logout)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), "Logged out successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if hf.rec.last().Action != "LOGOUT" {
		t.Errorf("expected LOGOUT audit, got %s", hf.rec.last().Action)
	}

	if _, err := hf.call(t, http.MethodGet, "/api/auth/me", "", nil, hf.h.Me); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestHandler_IssueToken(t *testing.T) {
	hf := newHandlerFixture(t)
	u := hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodPost, "/api/auth/token", "", u.Principal(), hf.h.IssueToken)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	id, err := hf.h.tokens.Verify(body.Token)
	if err != nil || id != u.ID {
		t.Errorf("issued token does not verify: id=%s err=%v", id, err)
	}
}

func TestHandler_CreateUserValidation(t *testing.T) {
	hf := newHandlerFixture(t)
	admin := hf.seed(t, "admin@pharma.com", "admin123!", auth.RoleAdmin)

	_, err := hf.call(t, http.MethodPost, "/api/users",
		`{"email":"not-an-email","name":"X","password":"password1"}`, admin.Principal(), hf.h.CreateUser)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}

	rec, err := hf.call(t, http.MethodPost, "/api/users",
		`{"email":"new@pharma.com","name":"New","password":"password1","role":"REVIEWER"}`, admin.Principal(), hf.h.CreateUser)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("password hash leaked in response")
	}
}

func TestHandler_ListUsersFilters(t *testing.T) {
	hf := newHandlerFixture(t)
	admin := hf.seed(t, "admin@pharma.com", "admin123!", auth.RoleAdmin)
	hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodGet, "/api/users?role=ADMIN", "", admin.Principal(), hf.h.ListUsers)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Data  []User `json:"data"`
		Total int    `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || body.Data[0].Email != "admin@pharma.com" {
		t.Errorf("unexpected list %s", rec.Body.String())
	}

	if _, err := hf.call(t, http.MethodGet, "/api/users?isActive=maybe", "", admin.Principal(), hf.h.ListUsers); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_DeleteUser(t *testing.T) {
	hf := newHandlerFixture(t)
	admin := hf.seed(t, "admin@pharma.com", "admin123!", auth.RoleAdmin)
	victim := hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	rec, err := hf.call(t, http.MethodDelete, "/api/users/"+victim.ID.String(), "", admin.Principal(), hf.h.DeleteUser, victim.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := hf.repo.GetByID(context.Background(), victim.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("user should be gone")
	}

	if _, err := hf.call(t, http.MethodDelete, "/api/users/bogus", "", admin.Principal(), hf.h.DeleteUser, "bogus"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for malformed id, got %v", err)
	}
}

func TestHandler_LoginLimitIgnoresForwardedFor(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.e.IPExtractor = echo.ExtractIPDirect()
	hf.seed(t, "user@pharma.com", "user123!", auth.RoleUser)

	var limited int
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"user@pharma.com","password":"bad"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.1.1.%d", i))
		req.RemoteAddr = "203.0.113.5:4000"
		c := hf.e.NewContext(req, httptest.NewRecorder())
		err := session.Middleware(hf.store)(hf.h.Login)(c)
		if errors.Is(err, apperr.ErrRateLimited) {
			limited++
		}
	}
	if limited != 15 {
		t.Fatalf("expected 15 of 20 attempts limited, got %d", limited)
	}
}
