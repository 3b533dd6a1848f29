package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/relaymesh/gateway/pkg/auth"
)

const httpLogPrefix = "api:http"

// HTTPHandler serves signed one-shot commands over HTTP. Mount it under
// a prefix such as /api/; the path segment after the prefix is the
// project identifier.
type HTTPHandler struct {
	pipeline *Pipeline
	prefix   string
	timeout  time.Duration
}

// NewHTTPHandler creates an HTTPHandler with the given path prefix and
// per-request timeout.
func NewHTTPHandler(pipeline *Pipeline, prefix string, timeout time.Duration) *HTTPHandler {
	return &HTTPHandler{pipeline: pipeline, prefix: prefix, timeout: timeout}
}

// ServeHTTP handles POST <prefix><project_id>. Transport-tier faults
// become status codes; everything after the payload is minimally
// decodable answers 200 with a JSON Response.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := strings.TrimPrefix(r.URL.Path, h.prefix)
	if projectID == "" || strings.Contains(projectID, "/") {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to read request body: %v", httpLogPrefix, err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Extraction failure is represented as a nil Info; the pipeline
	// still checks body presence first.
	info, _ := auth.FromHeader(r.Header)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, fault := h.pipeline.Execute(ctx, projectID, info, body)
	if fault != nil {
		slog.Debug(fmt.Sprintf("%s - request for project %q rejected: %s (%s)",
			httpLogPrefix, projectID, fault.Message, fault.Code))
		http.Error(w, fault.Message, fault.HTTPStatus())
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode failed: %v", httpLogPrefix, err))
	}
}
