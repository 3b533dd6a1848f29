package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaymesh/gateway/pkg/auth"
)

func newTestHTTPHandler(t *testing.T) *HTTPHandler {
	t.Helper()
	return NewHTTPHandler(newTestPipeline(t, nil), "/api/", 5*time.Second)
}

func doRequest(t *testing.T, h *HTTPHandler, path, sign string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if sign != "" {
		req.Header.Set(auth.SignHeader, sign)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_StatusMapping(t *testing.T) {
	h := newTestHTTPHandler(t)
	valid := []byte(`{"method": "ping", "params": {}}`)

	tests := []struct {
		name       string
		path       string
		sign       string
		body       []byte
		wantStatus int
	}{
		{"empty body", "/api/p1", auth.Sign(testSecret, nil), nil, http.StatusBadRequest},
		{"missing sign", "/api/p1", "", valid, http.StatusUnauthorized},
		{"bad sign", "/api/p1", "deadbeef", valid, http.StatusUnauthorized},
		{"unknown project", "/api/ghost", auth.Sign(testSecret, valid), valid, http.StatusNotFound},
		{"undecodable", "/api/p1", auth.Sign(testSecret, []byte(`{`)), []byte(`{`), http.StatusBadRequest},
		{"success", "/api/p1", auth.Sign(testSecret, valid), valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.path, tt.sign, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("api:http_test - status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHTTPHandler_SuccessResponse(t *testing.T) {
	h := newTestHTTPHandler(t)
	body := []byte(`{"uid": "u-1", "method": "ping", "params": {}}`)

	rec := doRequest(t, h, "/api/p1", auth.Sign(testSecret, body), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("api:http_test - status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("api:http_test - content type = %q", ct)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("api:http_test - decode response: %v", err)
	}
	if resp.UID != "u-1" || resp.Method != "ping" || resp.Error != "" {
		t.Errorf("api:http_test - response = %+v", resp)
	}
	if resp.Body == nil {
		t.Error("api:http_test - expected body on success")
	}
}

func TestHTTPHandler_ApplicationErrorIsHTTPSuccess(t *testing.T) {
	h := newTestHTTPHandler(t)
	body := []byte(`{"uid": "u-1", "method": "warp", "params": {}}`)

	rec := doRequest(t, h, "/api/p1", auth.Sign(testSecret, body), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("api:http_test - application errors ride a 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("api:http_test - decode response: %v", err)
	}
	if resp.Error != "method not found" {
		t.Errorf("api:http_test - error = %q", resp.Error)
	}
}

func TestHTTPHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHTTPHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/p1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("api:http_test - status = %d, want 405", rec.Code)
	}
}

func TestHTTPHandler_MissingProjectSegment(t *testing.T) {
	h := newTestHTTPHandler(t)

	rec := doRequest(t, h, "/api/", "", []byte(`{}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("api:http_test - status = %d, want 404", rec.Code)
	}
}

func TestFault_HTTPStatus(t *testing.T) {
	tests := []struct {
		code FaultCode
		want int
	}{
		{FaultMalformed, http.StatusBadRequest},
		{FaultUnauthorized, http.StatusUnauthorized},
		{FaultNotFound, http.StatusNotFound},
		{FaultInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		f := &Fault{Code: tt.code, Message: "x"}
		if got := f.HTTPStatus(); got != tt.want {
			t.Errorf("api:http_test - %s status = %d, want %d", tt.code, got, tt.want)
		}
	}
}
