package planning

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// ListProjects returns a page of projects and the total count.
func (s *Service) ListProjects(status string, limit, offset int, sort string) ([]store.Project, int, error) {
	limit, offset = clampPage(limit, offset)
	projects, total, err := s.store.ListProjects(status, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	return projects, total, nil
}

// GetProject returns a project by ID.
func (s *Service) GetProject(id string) (*store.Project, error) {
	p, err := s.store.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return nil, apperr.NotFound("Project %s not found", id)
	}
	return p, nil
}

// CreateProject creates a project, its key counter, and its default backlog.
// The key is uppercased and must match ^[A-Z][A-Z0-9]*$ with at most 10
// characters.
func (s *Service) CreateProject(key, name string, description, actor *string) (*store.Project, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !projectKeyPattern.MatchString(key) || len(key) > 10 {
		return nil, apperr.Validation("Project key must match ^[A-Z][A-Z0-9]*$ with at most 10 characters")
	}
	if name == "" {
		return nil, apperr.Validation("Project name is required")
	}

	taken, err := s.store.ProjectKeyExists(key)
	if err != nil {
		return nil, fmt.Errorf("check project key: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Project with key '%s' already exists", key)
	}

	now := time.Now().UTC()
	p := &store.Project{
		ID:          uuid.NewString(),
		Key:         key,
		Name:        name,
		Description: description,
		Status:      store.ProjectActive,
		CreatedBy:   actor,
		UpdatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	// Every project gets a non-deletable default backlog.
	defaultBacklog := &store.Backlog{
		ID:        uuid.NewString(),
		ProjectID: &p.ID,
		Name:      fmt.Sprintf("%s Backlog", p.Key),
		Kind:      store.KindBacklog,
		Status:    store.BacklogActive,
		IsDefault: true,
		CreatedBy: actor,
		UpdatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateBacklog(defaultBacklog); err != nil {
		return nil, fmt.Errorf("create default backlog: %w", err)
	}

	s.log.Info("project created", "project_id", p.ID, "key", p.Key)
	return p, nil
}

// ProjectPatch carries the updatable project fields.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *string
	Actor       *string
}

// UpdateProject applies a partial update to a project.
func (s *Service) UpdateProject(id string, patch ProjectPatch) (*store.Project, error) {
	existing, err := s.store.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("Project %s not found", id)
	}

	upd := store.ProjectUpdate{
		Name:        patch.Name,
		Description: patch.Description,
		UpdatedBy:   patch.Actor,
	}
	if patch.Status != nil {
		status := store.ProjectStatus(*patch.Status)
		if status != store.ProjectActive && status != store.ProjectArchived {
			return nil, apperr.Validation("Invalid project status '%s'. Allowed: ACTIVE, ARCHIVED", *patch.Status)
		}
		upd.Status = &status
	}

	updated, err := s.store.UpdateProject(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Project %s not found", id)
	}
	return updated, nil
}

// DeleteProject removes a project and everything cascading from it.
func (s *Service) DeleteProject(id string) error {
	deleted, err := s.store.DeleteProject(id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Project %s not found", id)
	}
	s.log.Info("project deleted", "project_id", id)
	return nil
}
