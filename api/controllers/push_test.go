package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casafindr/casafindr-sync/internal/bus"
	"github.com/casafindr/casafindr-sync/internal/ingest"
	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/pkg/db/models"
)

func newTestForeground(t *testing.T, svc store.Service) *ingest.ForegroundHandler {
	t.Helper()
	handler, err := ingest.NewForegroundHandler(ingest.ForegroundParams{
		Store:  svc,
		Events: bus.New(),
		Logger: testControllerLogger(),
	})
	if err != nil {
		t.Fatalf("new foreground handler: %v", err)
	}
	return handler
}

func TestPushDeliverAccepts(t *testing.T) {
	var appended int
	svc := &testStoreService{appendFn: func(_ context.Context, record models.Notification) (store.AppendResult, error) {
		appended++
		return store.AppendResult{Appended: true, UnreadCount: 1, Total: 1}, nil
	}}
	handler := PushDeliver(newTestForeground(t, svc), testControllerLogger())

	body := `{"notification": {"title": "t", "body": "b"}, "data": {"id": "n-1", "type": "system"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/push/deliver", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if appended != 1 {
		t.Fatalf("expected one append, got %d", appended)
	}
}

func TestPushDeliverDropsMalformedQuietly(t *testing.T) {
	handler := PushDeliver(newTestForeground(t, &testStoreService{}), testControllerLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/push/deliver", strings.NewReader(`{broken`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	// Malformed payloads are dropped inside ingest; the bridge still accepts.
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestPushDeliverRequiresBody(t *testing.T) {
	handler := PushDeliver(newTestForeground(t, &testStoreService{}), testControllerLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/push/deliver", nil)
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPushTapIngests(t *testing.T) {
	var appended int
	svc := &testStoreService{appendFn: func(context.Context, models.Notification) (store.AppendResult, error) {
		appended++
		return store.AppendResult{Appended: true, UnreadCount: 1, Total: 1}, nil
	}}
	handler := PushTap(newTestForeground(t, svc), testControllerLogger())

	body := `{"notification": {"title": "t", "body": "b"}, "data": {"id": "n-1", "type": "property", "propertyId": "p-9"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/push/tap", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if appended != 1 {
		t.Fatalf("expected one append, got %d", appended)
	}
}
