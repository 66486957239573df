package cases

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	t.Helper()
	f := newFixture(t)
	e := echo.New()
	e.Validator = apperr.NewValidator()
	return NewHandler(f.svc), f, e
}

func serve(e *echo.Echo, ctx context.Context, method, target, body string, h echo.HandlerFunc, id string) (*httptest.ResponseRecorder, error) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return rec, h(c)
}

func TestHandler_CreateAndGet(t *testing.T) {
	h, f, e := newTestHandler(t)
	body := `{"patientAge":45,"patientGender":"Female","drugName":"DrugA","adverseReaction":"Rash","severity":"Medium"}`

	rec, err := serve(e, f.user, http.MethodPost, "/api/cases", body, h.Create, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created Case
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ReporterID != f.userID || created.Status != StatusNeedsReview {
		t.Errorf("unexpected case %+v", created)
	}

	rec, err = serve(e, f.user, http.MethodGet, "/api/cases/"+created.ID.String(), "", h.Get, created.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	h, f, e := newTestHandler(t)
	body := `{"patientAge":45,"patientGender":"Female","drugName":"DrugA","adverseReaction":"Rash","severity":"Severe"}`
	_, err := serve(e, f.user, http.MethodPost, "/api/cases", body, h.Create, "")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "severity" {
		t.Fatalf("expected severity validation error, got %v", err)
	}

	_, err = serve(e, f.user, http.MethodPost, "/api/cases", `{"patientGender":"F"}`, h.Create, "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandler_UpdateRejectsForbiddenFields(t *testing.T) {
	h, f, e := newTestHandler(t)
	c := f.create(t, f.user, sampleRequest())

	_, err := serve(e, f.reviewer, http.MethodPut, "/api/cases/"+c.ID.String(),
		`{"status":"InProgress","reporterId":"`+f.userID.String()+`"}`, h.Update, c.ID.String())
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	rec, err := serve(e, f.reviewer, http.MethodPut, "/api/cases/"+c.ID.String(),
		`{"status":"InProgress"}`, h.Update, c.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	var updated Case
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != StatusInProgress {
		t.Errorf("unexpected status %s", updated.Status)
	}

	if _, err := serve(e, f.reviewer, http.MethodPut, "/api/cases/x", `[1,2]`, h.Update, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("malformed id should be not found, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, f, e := newTestHandler(t)
	c := f.create(t, f.user, sampleRequest())
	target := "/api/cases/" + c.ID.String()

	if _, err := serve(e, f.admin, http.MethodDelete, target, `{}`, h.Delete, c.ID.String()); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing reason should be a validation error, got %v", err)
	}

	rec, err := serve(e, f.admin, http.MethodDelete, target, `{"deletionReason":"duplicate entry"}`, h.Delete, c.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Message      string `json:"message"`
		ArchivedCase Case   `json:"archivedCase"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "Case archived successfully" || !body.ArchivedCase.IsDeleted {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec, err = serve(e, f.admin, http.MethodGet, target+"?includeDeleted=true", "", h.Get, c.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	var got Case
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.IsDeleted || got.DeletionReason == nil || *got.DeletionReason != "duplicate entry" {
		t.Errorf("unexpected archived case %s", rec.Body.String())
	}
}

func TestHandler_List(t *testing.T) {
	h, f, e := newTestHandler(t)
	f.create(t, f.user, sampleRequest())
	f.create(t, f.other, sampleRequest())

	rec, err := serve(e, f.user, http.MethodGet, "/api/cases?limit=10", "", h.List, "")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Data  []Case `json:"data"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || body.Data[0].ReporterID != f.userID {
		t.Errorf("USER list should contain only own case: %s", rec.Body.String())
	}

	rec, err = serve(e, f.reviewer, http.MethodGet, "/api/cases", "", h.List, "")
	if err != nil {
		t.Fatal(err)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 {
		t.Errorf("reviewer should see both cases, got %d", body.Total)
	}

	if _, err := serve(e, f.reviewer, http.MethodGet, "/api/cases?reporterId=nope", "", h.List, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
