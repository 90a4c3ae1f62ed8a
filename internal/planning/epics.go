package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListEpics returns a page of epics and the total count.
func (s *Service) ListEpics(f store.EpicFilter, limit, offset int, sort string) ([]store.Epic, int, error) {
	limit, offset = clampPage(limit, offset)
	epics, total, err := s.store.ListEpics(f, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list epics: %w", err)
	}
	return epics, total, nil
}

// GetEpic returns an epic and its story count.
func (s *Service) GetEpic(id string) (*store.Epic, int, error) {
	e, err := s.store.GetEpic(id)
	if err != nil {
		return nil, 0, fmt.Errorf("get epic: %w", err)
	}
	if e == nil {
		return nil, 0, apperr.NotFound("Epic %s not found", id)
	}
	count, err := s.store.EpicStoryCount(id)
	if err != nil {
		return nil, 0, fmt.Errorf("epic story count: %w", err)
	}
	return e, count, nil
}

// GetEpicByKey returns an epic by its work-item key with its story count.
func (s *Service) GetEpicByKey(key string) (*store.Epic, int, error) {
	e, err := s.store.GetEpicByKey(key)
	if err != nil {
		return nil, 0, fmt.Errorf("get epic by key: %w", err)
	}
	if e == nil {
		return nil, 0, apperr.NotFound("Epic with key '%s' not found", key)
	}
	count, err := s.store.EpicStoryCount(e.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("epic story count: %w", err)
	}
	return e, count, nil
}

// CreateEpicParams are the inputs for CreateEpic.
type CreateEpicParams struct {
	ProjectID   string
	Title       string
	Description *string
	Priority    *int
	Actor       *string
}

// CreateEpic creates an epic under a project, minting its key from the
// project counter.
func (s *Service) CreateEpic(p CreateEpicParams) (*store.Epic, error) {
	if p.Title == "" {
		return nil, apperr.Validation("Epic title is required")
	}
	exists, err := s.store.ProjectExists(p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperr.Validation("Project %s does not exist", p.ProjectID)
	}

	key, err := s.store.AllocateKey(p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("allocate key: %w", err)
	}

	now := time.Now().UTC()
	e := &store.Epic{
		ID:          uuid.NewString(),
		ProjectID:   p.ProjectID,
		Key:         key,
		Title:       p.Title,
		Description: p.Description,
		Status:      store.StatusTodo,
		StatusMode:  store.ModeManual,
		Priority:    p.Priority,
		CreatedBy:   p.Actor,
		UpdatedBy:   p.Actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateEpic(e); err != nil {
		return nil, fmt.Errorf("create epic: %w", err)
	}
	return e, nil
}

// EpicPatch carries the updatable epic fields. A Status write is treated as
// a manual override.
type EpicPatch struct {
	Title         *string
	Description   *string
	Status        *string
	IsBlocked     *bool
	BlockedReason *string
	Priority      *int
	Actor         *string
}

// UpdateEpic applies a partial update. Writing status records the override
// and flips status_mode to MANUAL.
func (s *Service) UpdateEpic(id string, patch EpicPatch) (*store.Epic, error) {
	existing, err := s.store.GetEpic(id)
	if err != nil {
		return nil, fmt.Errorf("get epic: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("Epic %s not found", id)
	}

	upd := store.EpicUpdate{
		Title:         patch.Title,
		Description:   patch.Description,
		IsBlocked:     patch.IsBlocked,
		BlockedReason: patch.BlockedReason,
		Priority:      patch.Priority,
		UpdatedBy:     patch.Actor,
	}
	if patch.Status != nil {
		status := store.ItemStatus(*patch.Status)
		if !store.ValidItemStatus(status) {
			return nil, apperr.Validation("Invalid epic status '%s'. Allowed: %s", *patch.Status, allowedStatuses())
		}
		now := time.Now().UTC()
		mode := store.ModeManual
		upd.Status = &status
		upd.StatusMode = &mode
		upd.StatusOverride = patch.Status
		upd.StatusOverrideSetAt = &now
	}

	updated, err := s.store.UpdateEpic(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update epic: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Epic %s not found", id)
	}
	return updated, nil
}

// DeleteEpic removes an epic; its stories survive with epic_id cleared.
func (s *Service) DeleteEpic(id string) error {
	deleted, err := s.store.DeleteEpic(id)
	if err != nil {
		return fmt.Errorf("delete epic: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Epic %s not found", id)
	}
	return nil
}

func allowedStatuses() string {
	out := ""
	for i, st := range store.ItemStatuses() {
		if i > 0 {
			out += ", "
		}
		out += string(st)
	}
	return out
}
