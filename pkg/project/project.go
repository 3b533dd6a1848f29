// Package project defines the tenant model and the registry used to
// resolve a project identifier to its secret key and settings.
package project

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by a Registry when no project exists for the
// given identifier. Callers use it to distinguish an unknown project
// from a resolver failure.
var ErrNotFound = errors.New("project not found")

// Project is a tenant-scoped entity. Secret is the key material used to
// verify command signatures; Settings is opaque per-project
// configuration consumed by the command processor.
type Project struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Secret   string          `json:"secret"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Registry resolves projects by identifier. Implementations may hit the
// network or storage, so lookups take a context. The gateway core never
// caches project data; caching, if any, belongs to the implementation.
type Registry interface {
	GetProjectByID(ctx context.Context, id string) (*Project, error)
}

// StaticRegistry is an in-memory Registry built once from a fixed
// project list. Used for file-seeded deployments and tests.
type StaticRegistry struct {
	projects map[string]Project
}

// NewStaticRegistry creates a StaticRegistry from the given projects.
func NewStaticRegistry(projects []Project) *StaticRegistry {
	m := make(map[string]Project, len(projects))
	for _, p := range projects {
		m[p.ID] = p
	}
	return &StaticRegistry{projects: m}
}

// GetProjectByID returns the project with the given ID, or ErrNotFound.
func (r *StaticRegistry) GetProjectByID(_ context.Context, id string) (*Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Len returns the number of registered projects.
func (r *StaticRegistry) Len() int {
	return len(r.projects)
}
