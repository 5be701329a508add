package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v4"

	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/service/registry"
)

type fakeRegistrar struct {
	err  error
	last struct {
		eventID, fullName, email string
	}
}

func (f *fakeRegistrar) Register(_ context.Context, eventID, fullName, email string) (*model.Registration, error) {
	f.last.eventID = eventID
	f.last.fullName = fullName
	f.last.email = email
	if f.err != nil {
		return nil, f.err
	}
	return &model.Registration{
		ID:               "01HZXM5T9GQ4K2J8W3N7R6P0EC",
		EventID:          eventID,
		FullName:         fullName,
		Email:            email,
		ConfirmationCode: "A1B2C3D4",
	}, nil
}

func doRegister(t *testing.T, svc Registrar, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/ev-1/registrations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/events/:id/registrations")
	c.SetParamNames("id")
	c.SetParamValues("ev-1")
	if err := registerHandler(svc)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestRegisterHandlerCreated(t *testing.T) {
	svc := &fakeRegistrar{}
	rec := doRegister(t, svc, `{"full_name":"  Ada Lovelace  ","email":"ada@example.com"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d", rec.Code)
	}
	if svc.last.eventID != "ev-1" || svc.last.fullName != "Ada Lovelace" {
		t.Fatalf("service call: %+v", svc.last)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["confirmation_code"] != "A1B2C3D4" {
		t.Fatalf("confirmation_code: got %q", resp["confirmation_code"])
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@example.com"}`},
		{"blank name", `{"full_name":"   ","email":"a@example.com"}`},
		{"long name", `{"full_name":"` + strings.Repeat("x", 129) + `","email":"a@example.com"}`},
		{"bad email", `{"full_name":"Ada","email":"not-an-email"}`},
		{"no email", `{"full_name":"Ada"}`},
	}
	for _, tc := range cases {
		svc := &fakeRegistrar{}
		rec := doRegister(t, svc, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d", tc.name, rec.Code)
		}
		if svc.last.eventID != "" {
			t.Fatalf("%s: service must not be called on invalid input", tc.name)
		}
	}
}

func TestRegisterHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{registry.ErrEventNotFound, http.StatusNotFound},
		{registry.ErrEventClosed, http.StatusConflict},
		{registry.ErrDuplicateRegistration, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := doRegister(t, &fakeRegistrar{err: tc.err}, `{"full_name":"Ada","email":"ada@example.com"}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: status got %d want %d", tc.err, rec.Code, tc.want)
		}
	}
}
