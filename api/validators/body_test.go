package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/casafindr/casafindr-sync/pkg/errors"
)

type rotationBody struct {
	Token string `json:"token" validate:"required"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token": "tok-1"}`))

	var body rotationBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token != "tok-1" {
		t.Fatalf("unexpected token %q", body.Token)
	}
}

func TestDecodeJSONBodyRejectsMissingField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))

	var body rotationBody
	err := DecodeJSONBody(req, &body)
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", code)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["token"] != "is required" {
		t.Fatalf("unexpected details %v", pkgerrors.As(err).Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token": "tok-1", "extra": true}`))

	var body rotationBody
	if err := DecodeJSONBody(req, &body); err == nil {
		t.Fatal("expected unknown field rejected")
	}
}
