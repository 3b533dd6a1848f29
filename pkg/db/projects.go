package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaymesh/gateway/pkg/project"
)

const projectsLogPrefix = "db:projects"

// ProjectRepository resolves projects from the projects table. It
// implements project.Registry; the gateway core does no caching on top.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a ProjectRepository with the given pool.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

// GetProjectByID finds a project by ID. Returns project.ErrNotFound
// when no row exists.
func (r *ProjectRepository) GetProjectByID(ctx context.Context, id string) (*project.Project, error) {
	slog.Debug(fmt.Sprintf("%s - GetProjectByID id=%s", projectsLogPrefix, id))

	var p project.Project
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, secret, settings
		 FROM projects
		 WHERE id = $1
		 LIMIT 1`, id).Scan(&p.ID, &p.Name, &p.Secret, &p.Settings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, project.ErrNotFound
		}
		return nil, fmt.Errorf("%s - query project %q: %w", projectsLogPrefix, id, err)
	}
	return &p, nil
}

// UpsertProject creates or updates a project. Used by the seed command
// to load a project file into the database.
func (r *ProjectRepository) UpsertProject(ctx context.Context, p project.Project) error {
	slog.Info(fmt.Sprintf("%s - UpsertProject id=%s", projectsLogPrefix, p.ID))

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, name, secret, settings, created, modified)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2,
		   secret = $3,
		   settings = COALESCE($4, projects.settings),
		   modified = $5`,
		p.ID, p.Name, p.Secret, p.Settings, now)
	if err != nil {
		return fmt.Errorf("%s - upsert project %q: %w", projectsLogPrefix, p.ID, err)
	}
	return nil
}

// ClearProjects truncates the projects table. Schema is preserved; only
// data is removed.
func ClearProjects(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing projects table", projectsLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE projects RESTART IDENTITY CASCADE`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", projectsLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Projects cleared", projectsLogPrefix))
	return nil
}
