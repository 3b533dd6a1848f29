package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

const fileLogPrefix = "project:file"

// LoadFile reads a JSON project list from path. The file holds an array
// of project objects: [{"id": "...", "name": "...", "secret": "..."}].
func LoadFile(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", fileLogPrefix, path, err)
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("%s - failed to parse %s: %w", fileLogPrefix, path, err)
	}

	for i, p := range projects {
		if p.ID == "" {
			return nil, fmt.Errorf("%s - project %d in %s has empty id", fileLogPrefix, i, path)
		}
		if p.Secret == "" {
			return nil, fmt.Errorf("%s - project %q in %s has empty secret", fileLogPrefix, p.ID, path)
		}
	}

	slog.Info(fmt.Sprintf("%s - Loaded %d projects from %s", fileLogPrefix, len(projects), path))
	return projects, nil
}
