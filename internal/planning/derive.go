package planning

import (
	"fmt"
	"time"

	"github.com/openclaw/mission-control/internal/store"
)

// rederiveStory recomputes a story's status from the full set of its tasks.
// Runs after every task create, status update, re-parent and delete.
//
// With no tasks the story is left alone. Otherwise the derived status wins
// over any manual override: status_mode is set to DERIVED unconditionally,
// and completed_at is cleared unless the derived status is DONE.
func (s *Service) rederiveStory(storyID string) error {
	story, err := s.store.GetStory(storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if story == nil {
		return nil // story deleted underneath us, nothing to derive
	}

	tasks, err := s.store.ListTasksByStory(storyID)
	if err != nil {
		return fmt.Errorf("list story tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	allDone := true
	anyStarted := false
	for _, t := range tasks {
		if t.Status != store.StatusDone {
			allDone = false
		}
		if t.Status != store.StatusTodo {
			anyStarted = true
		}
	}

	derived := store.StatusTodo
	switch {
	case allDone:
		derived = store.StatusDone
	case anyStarted:
		derived = store.StatusInProgress
	}

	mode := store.ModeDerived
	upd := store.StoryUpdate{Status: &derived, StatusMode: &mode}
	if derived == store.StatusDone {
		if story.CompletedAt == nil {
			now := time.Now().UTC()
			upd.CompletedAt = &now
		}
	} else {
		upd.ClearCompletedAt = true
	}

	if _, err := s.store.UpdateStory(storyID, upd); err != nil {
		return fmt.Errorf("write derived status: %w", err)
	}
	s.log.Debug("story status derived", "story_id", storyID, "status", derived, "tasks", len(tasks))
	return nil
}

// markStoryStarted stamps started_at on a story the first time one of its
// tasks enters IN_PROGRESS. One-way: never cleared by later derivation.
func (s *Service) markStoryStarted(storyID string) error {
	story, err := s.store.GetStory(storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if story == nil || story.StartedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	if _, err := s.store.UpdateStory(storyID, store.StoryUpdate{StartedAt: &now}); err != nil {
		return fmt.Errorf("mark story started: %w", err)
	}
	return nil
}
