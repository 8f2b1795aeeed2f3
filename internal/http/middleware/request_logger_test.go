package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dentaflow/clinic-platform/pkg/logging"
)

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	RequestLogger(logger)(handler).ServeHTTP(rec, req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["msg"] != "request completed" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["status"] != float64(http.StatusConflict) {
		t.Fatalf("expected status 409 in log, got %v", record["status"])
	}
	if record["path"] != "/api/v1/appointments" {
		t.Fatalf("unexpected path: %v", record["path"])
	}
}

func TestRequestLoggerDefaultsStatusOK(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	RequestLogger(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["status"] != float64(http.StatusOK) {
		t.Fatalf("expected implicit 200, got %v", record["status"])
	}
}
