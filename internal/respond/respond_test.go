package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidtube/backend/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation: http.StatusBadRequest,
		apperr.KindConflict:   http.StatusConflict,
		apperr.KindNotFound:   http.StatusNotFound,
		apperr.KindAuth:       http.StatusUnauthorized,
		apperr.KindInternal:   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusFor(kind); got != want {
			t.Fatalf("kind %s: expected %d got %d", kind, want, got)
		}
	}
}

func TestErrorWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(context.Background(), rec, apperr.Validation("All fields are required", "email"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["message"] != "All fields are required" {
		t.Fatalf("unexpected body %+v", body)
	}
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 || errs[0] != "email" {
		t.Fatalf("unexpected errors %+v", body["errors"])
	}
}

func TestErrorHidesCauses(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(context.Background(), rec, apperr.Internal("Failed to create account", errors.New("pq: secret detail")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatalf("cause leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	Error(context.Background(), rec, errors.New("raw failure"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "raw failure") {
		t.Fatalf("raw error leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"errors":[]`) {
		t.Fatalf("expected empty errors list: %s", rec.Body.String())
	}
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(context.Background(), rec, http.StatusCreated, map[string]string{"username": "annlee"}, "User registered successfully")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	var body Envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.StatusCode != http.StatusCreated || body.Message != "User registered successfully" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
