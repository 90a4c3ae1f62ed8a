package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListBacklogs returns a page of backlogs and the total count.
func (s *Service) ListBacklogs(f store.BacklogFilter, limit, offset int, sort string) ([]store.Backlog, int, error) {
	limit, offset = clampPage(limit, offset)
	backlogs, total, err := s.store.ListBacklogs(f, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list backlogs: %w", err)
	}
	return backlogs, total, nil
}

// GetBacklog returns a backlog with its story and task counts.
func (s *Service) GetBacklog(id string) (*store.Backlog, int, int, error) {
	b, err := s.store.GetBacklog(id)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("get backlog: %w", err)
	}
	if b == nil {
		return nil, 0, 0, apperr.NotFound("Backlog %s not found", id)
	}
	stories, err := s.store.BacklogStoryCount(id)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("backlog story count: %w", err)
	}
	tasks, err := s.store.BacklogTaskCount(id)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("backlog task count: %w", err)
	}
	return b, stories, tasks, nil
}

// CreateBacklogParams are the inputs for CreateBacklog.
type CreateBacklogParams struct {
	Name      string
	Kind      string
	ProjectID *string
	Goal      *string
	StartDate *string
	EndDate   *string
	Actor     *string
}

// CreateBacklog creates a backlog. Default backlogs are minted only at
// project creation and can never be created by hand.
func (s *Service) CreateBacklog(p CreateBacklogParams) (*store.Backlog, error) {
	if p.Name == "" {
		return nil, apperr.Validation("Backlog name is required")
	}
	if p.Kind == "" {
		p.Kind = string(store.KindBacklog)
	}
	kind := store.BacklogKind(p.Kind)
	if !store.ValidBacklogKind(kind) {
		return nil, apperr.Validation("Invalid backlog kind '%s'. Allowed: BACKLOG, SPRINT, IDEAS", p.Kind)
	}
	if p.ProjectID != nil {
		exists, err := s.store.ProjectExists(*p.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("check project: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Project %s does not exist", *p.ProjectID)
		}
	}

	now := time.Now().UTC()
	b := &store.Backlog{
		ID:        uuid.NewString(),
		ProjectID: p.ProjectID,
		Name:      p.Name,
		Kind:      kind,
		Status:    store.BacklogActive,
		Goal:      p.Goal,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		CreatedBy: p.Actor,
		UpdatedBy: p.Actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateBacklog(b); err != nil {
		return nil, fmt.Errorf("create backlog: %w", err)
	}
	return b, nil
}

// BacklogPatch carries the updatable backlog fields. Kind is immutable and
// is_default is system-managed.
type BacklogPatch struct {
	Name      *string
	Status    *string
	IsDefault *bool
	Goal      *string
	StartDate *string
	EndDate   *string
	Actor     *string
}

// UpdateBacklog applies a partial update to a backlog.
func (s *Service) UpdateBacklog(id string, patch BacklogPatch) (*store.Backlog, error) {
	if patch.IsDefault != nil {
		return nil, apperr.BusinessRule("Cannot manually set a backlog as default")
	}

	upd := store.BacklogUpdate{
		Name:      patch.Name,
		Goal:      patch.Goal,
		StartDate: patch.StartDate,
		EndDate:   patch.EndDate,
		UpdatedBy: patch.Actor,
	}
	if patch.Status != nil {
		status := store.BacklogStatus(*patch.Status)
		if status != store.BacklogActive && status != store.BacklogClosed {
			return nil, apperr.Validation("Invalid backlog status '%s'. Allowed: ACTIVE, CLOSED", *patch.Status)
		}
		upd.Status = &status
	}

	updated, err := s.store.UpdateBacklog(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update backlog: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Backlog %s not found", id)
	}
	return updated, nil
}

// DeleteBacklog removes a backlog. The default backlog of a project cannot
// be deleted.
func (s *Service) DeleteBacklog(id string) error {
	b, err := s.store.GetBacklog(id)
	if err != nil {
		return fmt.Errorf("get backlog: %w", err)
	}
	if b == nil {
		return apperr.NotFound("Backlog %s not found", id)
	}
	if b.IsDefault {
		return apperr.BusinessRule("Cannot delete the default backlog")
	}
	if _, err := s.store.DeleteBacklog(id); err != nil {
		return fmt.Errorf("delete backlog: %w", err)
	}
	return nil
}

// BacklogStories returns the stories of a backlog in position order.
func (s *Service) BacklogStories(backlogID string) ([]store.OrderedStory, error) {
	if _, err := s.requireBacklog(backlogID); err != nil {
		return nil, err
	}
	stories, err := s.store.ListBacklogStories(backlogID)
	if err != nil {
		return nil, fmt.Errorf("backlog stories: %w", err)
	}
	return stories, nil
}

// BacklogTasks returns the tasks of a backlog in position order.
func (s *Service) BacklogTasks(backlogID string) ([]store.OrderedTask, error) {
	if _, err := s.requireBacklog(backlogID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListBacklogTasks(backlogID)
	if err != nil {
		return nil, fmt.Errorf("backlog tasks: %w", err)
	}
	return tasks, nil
}

// AddStory inserts a story into a backlog at the requested position. A story
// belongs to at most one backlog and must match the backlog's project scope.
func (s *Service) AddStory(backlogID, storyID string, position int) (*store.BacklogItem, error) {
	b, err := s.requireBacklog(backlogID)
	if err != nil {
		return nil, err
	}
	st, err := s.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	if st == nil {
		return nil, apperr.NotFound("Story %s not found", storyID)
	}

	if b.ProjectID == nil {
		if st.ProjectID != nil {
			return nil, apperr.BusinessRule("Global backlog accepts only project-less stories")
		}
	} else if st.ProjectID == nil || *st.ProjectID != *b.ProjectID {
		return nil, apperr.BusinessRule("Story must belong to project %s", *b.ProjectID)
	}

	existing, err := s.store.StoryBacklogID(storyID)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, apperr.Conflict("Story %s already belongs to backlog %s", storyID, existing)
	}

	item, err := s.store.AddStoryItem(backlogID, storyID, position)
	if err != nil {
		return nil, fmt.Errorf("add story to backlog: %w", err)
	}
	return item, nil
}

// AddTask inserts a task into a backlog at the requested position, under the
// same membership and scope rules as AddStory.
func (s *Service) AddTask(backlogID, taskID string, position int) (*store.BacklogItem, error) {
	b, err := s.requireBacklog(backlogID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, apperr.NotFound("Task %s not found", taskID)
	}

	if b.ProjectID == nil {
		if t.ProjectID != nil {
			return nil, apperr.BusinessRule("Global backlog accepts only project-less tasks")
		}
	} else if t.ProjectID == nil || *t.ProjectID != *b.ProjectID {
		return nil, apperr.BusinessRule("Task must belong to project %s", *b.ProjectID)
	}

	existing, err := s.store.TaskBacklogID(taskID)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, apperr.Conflict("Task %s already belongs to backlog %s", taskID, existing)
	}

	item, err := s.store.AddTaskItem(backlogID, taskID, position)
	if err != nil {
		return nil, fmt.Errorf("add task to backlog: %w", err)
	}
	return item, nil
}

// RemoveStory removes a story from a backlog, closing the position gap.
func (s *Service) RemoveStory(backlogID, storyID string) error {
	if _, err := s.requireBacklog(backlogID); err != nil {
		return err
	}
	removed, err := s.store.RemoveStoryItem(backlogID, storyID)
	if err != nil {
		return fmt.Errorf("remove story from backlog: %w", err)
	}
	if !removed {
		return apperr.NotFound("Story %s is not in backlog %s", storyID, backlogID)
	}
	return nil
}

// RemoveTask removes a task from a backlog, closing the position gap.
func (s *Service) RemoveTask(backlogID, taskID string) error {
	if _, err := s.requireBacklog(backlogID); err != nil {
		return err
	}
	removed, err := s.store.RemoveTaskItem(backlogID, taskID)
	if err != nil {
		return fmt.Errorf("remove task from backlog: %w", err)
	}
	if !removed {
		return apperr.NotFound("Task %s is not in backlog %s", taskID, backlogID)
	}
	return nil
}

// Reorder rewrites the positions of a backlog's stories and tasks in one
// shot. The payload must cover the full membership of both kinds with
// contiguous zero-based positions; an omitted list counts as empty, so a
// backlog with members of that kind rejects it. A payload that fails
// validation changes nothing. Returns the number of story and task rows
// updated.
func (s *Service) Reorder(backlogID string, stories, tasks []store.PositionAssignment) (int, int, error) {
	if _, err := s.requireBacklog(backlogID); err != nil {
		return 0, 0, err
	}

	storyMembers, err := s.store.StoryPositions(backlogID)
	if err != nil {
		return 0, 0, err
	}
	if err := validateReorder(stories, storyMembers, "story", "stories", backlogID); err != nil {
		return 0, 0, err
	}
	taskMembers, err := s.store.TaskPositions(backlogID)
	if err != nil {
		return 0, 0, err
	}
	if err := validateReorder(tasks, taskMembers, "task", "tasks", backlogID); err != nil {
		return 0, 0, err
	}

	storyCount, taskCount, err := s.store.ReorderItems(backlogID, stories, tasks)
	if err != nil {
		return 0, 0, fmt.Errorf("reorder backlog: %w", err)
	}
	s.log.Info("backlog reordered", "backlog_id", backlogID, "stories", storyCount, "tasks", taskCount)
	return storyCount, taskCount, nil
}

// ActiveSprint returns the project's ACTIVE sprint backlog.
func (s *Service) ActiveSprint(projectID string) (*store.Backlog, error) {
	exists, err := s.store.ProjectExists(projectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("Project %s not found", projectID)
	}
	b, err := s.store.ActiveSprint(projectID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.NotFound("No active sprint found for project %s", projectID)
	}
	return b, nil
}

func (s *Service) requireBacklog(id string) (*store.Backlog, error) {
	b, err := s.store.GetBacklog(id)
	if err != nil {
		return nil, fmt.Errorf("get backlog: %w", err)
	}
	if b == nil {
		return nil, apperr.NotFound("Backlog %s not found", id)
	}
	return b, nil
}

// validateReorder checks a reorder payload for one item kind: no duplicate
// IDs, positions forming exactly 0..n-1, full coverage of the backlog's
// membership, and every ID a member.
func validateReorder(assignments []store.PositionAssignment, members map[string]int, kind, plural, backlogID string) error {
	seen := make(map[string]bool, len(assignments))
	positions := make([]int, 0, len(assignments))
	for _, a := range assignments {
		if seen[a.ItemID] {
			return apperr.BusinessRule("Duplicate %s_id in reorder payload", kind)
		}
		seen[a.ItemID] = true
		positions = append(positions, a.Position)
	}

	sort.Ints(positions)
	for i, p := range positions {
		if p != i {
			return apperr.BusinessRule("Positions must be contiguous starting from 0")
		}
	}

	if len(assignments) != len(members) {
		return apperr.BusinessRule("Reorder must include all %d %s in the backlog", len(members), plural)
	}
	for _, a := range assignments {
		if _, ok := members[a.ItemID]; !ok {
			return apperr.NotFound("%s %s is not in backlog %s", upperFirst(kind), a.ItemID, backlogID)
		}
	}
	return nil
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
