package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/relaymesh/gateway/pkg/project"
)

func TestNoOpProcessor(t *testing.T) {
	result, err := NoOpProcessor{}.Process(context.Background(), &project.Project{ID: "p1"}, "ping", nil)
	if err != nil {
		t.Fatalf("engine:processor_test - unexpected error: %v", err)
	}
	ack, ok := result.(Ack)
	if !ok {
		t.Fatalf("engine:processor_test - expected Ack, got %T", result)
	}
	if !ack.Status {
		t.Error("engine:processor_test - expected status=true")
	}
}

func TestCallbackProcessor(t *testing.T) {
	var gotMethod string
	var gotProject string

	proc := NewCallbackProcessor(func(_ context.Context, p *project.Project, method string, params json.RawMessage) (any, error) {
		gotMethod = method
		gotProject = p.ID
		return map[string]string{"echo": string(params)}, nil
	})

	result, err := proc.Process(context.Background(), &project.Project{ID: "p1"}, "publish", json.RawMessage(`{"channel": "news"}`))
	if err != nil {
		t.Fatalf("engine:processor_test - unexpected error: %v", err)
	}
	if gotMethod != "publish" || gotProject != "p1" {
		t.Errorf("engine:processor_test - callback saw method=%q project=%q", gotMethod, gotProject)
	}
	body, ok := result.(map[string]string)
	if !ok || body["echo"] != `{"channel": "news"}` {
		t.Errorf("engine:processor_test - unexpected result %v", result)
	}
}

func TestCallbackProcessor_Error(t *testing.T) {
	proc := NewCallbackProcessor(func(_ context.Context, _ *project.Project, _ string, _ json.RawMessage) (any, error) {
		return nil, errors.New("channel is closed")
	})

	_, err := proc.Process(context.Background(), &project.Project{ID: "p1"}, "publish", nil)
	if err == nil || err.Error() != "channel is closed" {
		t.Errorf("engine:processor_test - err = %v, want domain error", err)
	}
}
