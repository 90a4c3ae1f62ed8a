package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListLabels returns a page of labels and the total count. A project scope
// includes global labels; filterGlobal restricts to project-less labels.
func (s *Service) ListLabels(projectID string, filterGlobal bool, limit, offset int) ([]store.Label, int, error) {
	limit, offset = clampPage(limit, offset)
	labels, total, err := s.store.ListLabels(projectID, filterGlobal, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list labels: %w", err)
	}
	return labels, total, nil
}

// GetLabel returns a label by ID.
func (s *Service) GetLabel(id string) (*store.Label, error) {
	l, err := s.store.GetLabel(id)
	if err != nil {
		return nil, fmt.Errorf("get label: %w", err)
	}
	if l == nil {
		return nil, apperr.NotFound("Label %s not found", id)
	}
	return l, nil
}

// CreateLabel creates a label. Names are unique per scope: once within a
// project, once globally.
func (s *Service) CreateLabel(name string, projectID, color *string) (*store.Label, error) {
	if name == "" {
		return nil, apperr.Validation("Label name is required")
	}
	if projectID != nil {
		exists, err := s.store.ProjectExists(*projectID)
		if err != nil {
			return nil, fmt.Errorf("check project: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Project %s does not exist", *projectID)
		}
	}

	taken, err := s.store.LabelNameExists(name, projectID)
	if err != nil {
		return nil, fmt.Errorf("check label name: %w", err)
	}
	if taken {
		if projectID != nil {
			return nil, apperr.Conflict("Label '%s' already exists in project %s", name, *projectID)
		}
		return nil, apperr.Conflict("Label '%s' already exists in global scope", name)
	}

	l := &store.Label{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateLabel(l); err != nil {
		return nil, fmt.Errorf("create label: %w", err)
	}
	return l, nil
}

// DeleteLabel removes a label and its attachments.
func (s *Service) DeleteLabel(id string) error {
	deleted, err := s.store.DeleteLabel(id)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Label %s not found", id)
	}
	return nil
}
