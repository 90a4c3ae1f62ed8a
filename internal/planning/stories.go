package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListStories returns a page of stories and the total count.
func (s *Service) ListStories(f store.StoryFilter, limit, offset int, sort string) ([]store.Story, int, error) {
	limit, offset = clampPage(limit, offset)
	stories, total, err := s.store.ListStories(f, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list stories: %w", err)
	}
	return stories, total, nil
}

// GetStory returns a story and its task count.
func (s *Service) GetStory(id string) (*store.Story, int, error) {
	st, err := s.store.GetStory(id)
	if err != nil {
		return nil, 0, fmt.Errorf("get story: %w", err)
	}
	if st == nil {
		return nil, 0, apperr.NotFound("Story %s not found", id)
	}
	count, err := s.store.StoryTaskCount(id)
	if err != nil {
		return nil, 0, fmt.Errorf("story task count: %w", err)
	}
	return st, count, nil
}

// GetStoryByKey returns a story by its work-item key with its task count.
func (s *Service) GetStoryByKey(key string) (*store.Story, int, error) {
	st, err := s.store.GetStoryByKey(key)
	if err != nil {
		return nil, 0, fmt.Errorf("get story by key: %w", err)
	}
	if st == nil {
		return nil, 0, apperr.NotFound("Story with key '%s' not found", key)
	}
	count, err := s.store.StoryTaskCount(st.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("story task count: %w", err)
	}
	return st, count, nil
}

// CreateStoryParams are the inputs for CreateStory.
type CreateStoryParams struct {
	Title       string
	StoryType   string
	ProjectID   *string
	EpicID      *string
	Intent      *string
	Description *string
	Priority    *int
	Actor       *string
}

// CreateStory creates a story. A project-scoped story gets a minted key;
// a referenced epic must exist.
func (s *Service) CreateStory(p CreateStoryParams) (*store.Story, error) {
	if p.Title == "" {
		return nil, apperr.Validation("Story title is required")
	}
	if p.StoryType == "" {
		p.StoryType = "feature"
	}

	var key *string
	if p.ProjectID != nil {
		exists, err := s.store.ProjectExists(*p.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("check project: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Project %s does not exist", *p.ProjectID)
		}
		k, err := s.store.AllocateKey(*p.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("allocate key: %w", err)
		}
		key = &k
	}
	if p.EpicID != nil {
		exists, err := s.store.EpicExists(*p.EpicID)
		if err != nil {
			return nil, fmt.Errorf("check epic: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Epic %s does not exist", *p.EpicID)
		}
	}

	now := time.Now().UTC()
	st := &store.Story{
		ID:          uuid.NewString(),
		ProjectID:   p.ProjectID,
		EpicID:      p.EpicID,
		Key:         key,
		Title:       p.Title,
		Intent:      p.Intent,
		Description: p.Description,
		StoryType:   p.StoryType,
		Status:      store.StatusTodo,
		StatusMode:  store.ModeManual,
		Priority:    p.Priority,
		CreatedBy:   p.Actor,
		UpdatedBy:   p.Actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateStory(st); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return st, nil
}

// StoryPatch carries the updatable story fields. A Status write is a manual
// override that records status_override and flips status_mode to MANUAL.
type StoryPatch struct {
	EpicID        *string
	Title         *string
	Intent        *string
	Description   *string
	StoryType     *string
	Status        *string
	IsBlocked     *bool
	BlockedReason *string
	Priority      *int
	Actor         *string
}

// UpdateStory applies a partial update with manual-override semantics for
// status writes.
func (s *Service) UpdateStory(id string, patch StoryPatch) (*store.Story, error) {
	existing, err := s.store.GetStory(id)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("Story %s not found", id)
	}

	upd := store.StoryUpdate{
		Title:         patch.Title,
		Intent:        patch.Intent,
		Description:   patch.Description,
		StoryType:     patch.StoryType,
		IsBlocked:     patch.IsBlocked,
		BlockedReason: patch.BlockedReason,
		Priority:      patch.Priority,
		UpdatedBy:     patch.Actor,
	}
	if patch.Status != nil {
		status := store.ItemStatus(*patch.Status)
		if !store.ValidItemStatus(status) {
			return nil, apperr.Validation("Invalid story status '%s'. Allowed: %s", *patch.Status, allowedStatuses())
		}
		now := time.Now().UTC()
		mode := store.ModeManual
		upd.Status = &status
		upd.StatusMode = &mode
		upd.StatusOverride = patch.Status
		upd.StatusOverrideSetAt = &now

		if status == store.StatusDone {
			upd.CompletedAt = &now
		} else if existing.Status == store.StatusDone {
			upd.ClearCompletedAt = true
		}
	}
	if patch.EpicID != nil {
		exists, err := s.store.EpicExists(*patch.EpicID)
		if err != nil {
			return nil, fmt.Errorf("check epic: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Epic %s does not exist", *patch.EpicID)
		}
		upd.EpicID = patch.EpicID
	}

	updated, err := s.store.UpdateStory(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Story %s not found", id)
	}
	return updated, nil
}

// DeleteStory removes a story; its tasks survive with story_id cleared.
func (s *Service) DeleteStory(id string) error {
	deleted, err := s.store.DeleteStory(id)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Story %s not found", id)
	}
	return nil
}

// StoryLabels returns the labels attached to a story.
func (s *Service) StoryLabels(storyID string) ([]store.Label, error) {
	st, err := s.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	if st == nil {
		return nil, apperr.NotFound("Story %s not found", storyID)
	}
	labels, err := s.store.StoryLabels(storyID)
	if err != nil {
		return nil, fmt.Errorf("story labels: %w", err)
	}
	return labels, nil
}

// AttachStoryLabel links an existing label to a story.
func (s *Service) AttachStoryLabel(storyID, labelID string) error {
	st, err := s.store.GetStory(storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if st == nil {
		return apperr.NotFound("Story %s not found", storyID)
	}
	exists, err := s.store.LabelExists(labelID)
	if err != nil {
		return fmt.Errorf("check label: %w", err)
	}
	if !exists {
		return apperr.Validation("Label %s does not exist", labelID)
	}
	attached, err := s.store.StoryLabelAttached(storyID, labelID)
	if err != nil {
		return fmt.Errorf("check attachment: %w", err)
	}
	if attached {
		return apperr.Conflict("Label %s already attached to story %s", labelID, storyID)
	}
	if err := s.store.AttachStoryLabel(storyID, labelID); err != nil {
		return fmt.Errorf("attach label: %w", err)
	}
	return nil
}

// DetachStoryLabel unlinks a label from a story.
func (s *Service) DetachStoryLabel(storyID, labelID string) error {
	st, err := s.store.GetStory(storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if st == nil {
		return apperr.NotFound("Story %s not found", storyID)
	}
	removed, err := s.store.DetachStoryLabel(storyID, labelID)
	if err != nil {
		return fmt.Errorf("detach label: %w", err)
	}
	if !removed {
		return apperr.NotFound("Label %s not attached to story %s", labelID, storyID)
	}
	return nil
}
