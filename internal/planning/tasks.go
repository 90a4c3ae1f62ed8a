package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListTasks returns a page of tasks and the total count.
func (s *Service) ListTasks(f store.TaskFilter, limit, offset int, sort string) ([]store.Task, int, error) {
	limit, offset = clampPage(limit, offset)
	tasks, total, err := s.store.ListTasks(f, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a task by ID.
func (s *Service) GetTask(id string) (*store.Task, error) {
	t, err := s.store.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, apperr.NotFound("Task %s not found", id)
	}
	return t, nil
}

// CreateTaskParams are the inputs for CreateTask.
type CreateTaskParams struct {
	Title          string
	TaskType       string
	ProjectID      *string
	StoryID        *string
	Objective      *string
	Description    *string
	Priority       *int
	EstimatePoints *float64
	DueAt          *string
	Actor          *string
}

// CreateTask creates a task. A project-scoped task gets a minted key, and a
// parent story's status is rederived from its new task set.
func (s *Service) CreateTask(p CreateTaskParams) (*store.Task, error) {
	if p.Title == "" {
		return nil, apperr.Validation("Task title is required")
	}
	if p.TaskType == "" {
		p.TaskType = "feature"
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
	if p.StoryID != nil {
		exists, err := s.store.StoryExists(*p.StoryID)
		if err != nil {
			return nil, fmt.Errorf("check story: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Story %s does not exist", *p.StoryID)
		}
	}

	now := time.Now().UTC()
	t := &store.Task{
		ID:             uuid.NewString(),
		ProjectID:      p.ProjectID,
		StoryID:        p.StoryID,
		Key:            key,
		Title:          p.Title,
		Objective:      p.Objective,
		Description:    p.Description,
		TaskType:       p.TaskType,
		Status:         store.StatusTodo,
		Priority:       p.Priority,
		EstimatePoints: p.EstimatePoints,
		DueAt:          p.DueAt,
		CreatedBy:      p.Actor,
		UpdatedBy:      p.Actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if t.StoryID != nil {
		if err := s.rederiveStory(*t.StoryID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// TaskPatch carries the updatable task fields.
type TaskPatch struct {
	StoryID        *string
	Title          *string
	Objective      *string
	Description    *string
	TaskType       *string
	Status         *string
	IsBlocked      *bool
	BlockedReason  *string
	Priority       *int
	EstimatePoints *float64
	DueAt          *string
	Actor          *string
}

// UpdateTask applies a partial update. Moving a task to DONE stamps
// completed_at and closes any active assignment; moving it away clears
// completed_at. The first move into IN_PROGRESS stamps started_at on both
// the task and its story. Parent stories are rederived afterwards, including
// the old parent when the task is re-homed.
func (s *Service) UpdateTask(id string, patch TaskPatch) (*store.Task, error) {
	existing, err := s.store.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("Task %s not found", id)
	}

	upd := store.TaskUpdate{
		Title:          patch.Title,
		Objective:      patch.Objective,
		Description:    patch.Description,
		TaskType:       patch.TaskType,
		IsBlocked:      patch.IsBlocked,
		BlockedReason:  patch.BlockedReason,
		Priority:       patch.Priority,
		EstimatePoints: patch.EstimatePoints,
		DueAt:          patch.DueAt,
		UpdatedBy:      patch.Actor,
	}

	now := time.Now().UTC()
	startedStory := false
	if patch.Status != nil {
		status := store.ItemStatus(*patch.Status)
		if !store.ValidItemStatus(status) {
			return nil, apperr.Validation("Invalid task status '%s'. Allowed: %s", *patch.Status, allowedStatuses())
		}
		upd.Status = &status

		if status == store.StatusDone {
			upd.CompletedAt = &now
			if err := s.store.CloseAssignment(id, now); err != nil {
				return nil, err
			}
		} else if existing.Status == store.StatusDone {
			upd.ClearCompletedAt = true
		}
		if status == store.StatusInProgress && existing.StartedAt == nil {
			upd.StartedAt = &now
			startedStory = true
		}
	}

	if patch.StoryID != nil {
		exists, err := s.store.StoryExists(*patch.StoryID)
		if err != nil {
			return nil, fmt.Errorf("check story: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("Story %s does not exist", *patch.StoryID)
		}
		upd.StoryID = patch.StoryID
	}

	updated, err := s.store.UpdateTask(id, upd)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Task %s not found", id)
	}

	if startedStory && updated.StoryID != nil {
		if err := s.markStoryStarted(*updated.StoryID); err != nil {
			return nil, err
		}
	}
	if updated.StoryID != nil {
		if err := s.rederiveStory(*updated.StoryID); err != nil {
			return nil, err
		}
	}
	if existing.StoryID != nil && (updated.StoryID == nil || *existing.StoryID != *updated.StoryID) {
		if err := s.rederiveStory(*existing.StoryID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// DeleteTask removes a task and rederives its parent story's status.
func (s *Service) DeleteTask(id string) error {
	existing, err := s.store.GetTask(id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if existing == nil {
		return apperr.NotFound("Task %s not found", id)
	}
	if _, err := s.store.DeleteTask(id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if existing.StoryID != nil {
		if err := s.rederiveStory(*existing.StoryID); err != nil {
			return err
		}
	}
	return nil
}

// TaskLabels returns the labels attached to a task.
func (s *Service) TaskLabels(taskID string) ([]store.Label, error) {
	if err := s.requireTask(taskID); err != nil {
		return nil, err
	}
	labels, err := s.store.TaskLabels(taskID)
	if err != nil {
		return nil, fmt.Errorf("task labels: %w", err)
	}
	return labels, nil
}

// AttachTaskLabel links an existing label to a task.
func (s *Service) AttachTaskLabel(taskID, labelID string) error {
	if err := s.requireTask(taskID); err != nil {
		return err
	}
	exists, err := s.store.LabelExists(labelID)
	if err != nil {
		return fmt.Errorf("check label: %w", err)
	}
	if !exists {
		return apperr.Validation("Label %s does not exist", labelID)
	}
	attached, err := s.store.TaskLabelAttached(taskID, labelID)
	if err != nil {
		return fmt.Errorf("check attachment: %w", err)
	}
	if attached {
		return apperr.Conflict("Label %s already attached to task %s", labelID, taskID)
	}
	if err := s.store.AttachTaskLabel(taskID, labelID); err != nil {
		return fmt.Errorf("attach label: %w", err)
	}
	return nil
}

// DetachTaskLabel unlinks a label from a task.
func (s *Service) DetachTaskLabel(taskID, labelID string) error {
	if err := s.requireTask(taskID); err != nil {
		return err
	}
	removed, err := s.store.DetachTaskLabel(taskID, labelID)
	if err != nil {
		return fmt.Errorf("detach label: %w", err)
	}
	if !removed {
		return apperr.NotFound("Label %s not attached to task %s", labelID, taskID)
	}
	return nil
}

// TaskAssignments returns a task's assignment history, newest first.
func (s *Service) TaskAssignments(taskID string) ([]store.TaskAssignment, error) {
	if err := s.requireTask(taskID); err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(taskID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// AssignAgent opens an assignment for the agent on the task. A task carries
// at most one active assignment: assigning a different agent closes the
// current one first, assigning the same agent again is a conflict.
func (s *Service) AssignAgent(taskID, agentID string, assignedBy, reason *string) (*store.TaskAssignment, error) {
	if err := s.requireTask(taskID); err != nil {
		return nil, err
	}
	exists, err := s.store.AgentExists(agentID)
	if err != nil {
		return nil, fmt.Errorf("check agent: %w", err)
	}
	if !exists {
		return nil, apperr.Validation("Agent %s does not exist", agentID)
	}

	now := time.Now().UTC()
	active, err := s.store.ActiveAssignment(taskID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.AgentID == agentID {
			return nil, apperr.Conflict("Agent %s is already assigned to task %s", agentID, taskID)
		}
		if err := s.store.CloseAssignment(taskID, now); err != nil {
			return nil, err
		}
	}

	a := &store.TaskAssignment{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		AgentID:    agentID,
		AssignedAt: now,
		AssignedBy: assignedBy,
		Reason:     reason,
	}
	if err := s.store.CreateAssignment(a); err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateTask(taskID, store.TaskUpdate{AssigneeAgentID: &agentID}); err != nil {
		return nil, err
	}
	s.log.Info("agent assigned", "task_id", taskID, "agent_id", agentID)
	return a, nil
}

// UnassignAgent closes the agent's active assignment on the task.
func (s *Service) UnassignAgent(taskID, agentID string) error {
	if err := s.requireTask(taskID); err != nil {
		return err
	}
	active, err := s.store.ActiveAssignment(taskID)
	if err != nil {
		return err
	}
	if active == nil || active.AgentID != agentID {
		return apperr.NotFound("Agent %s is not actively assigned to task %s", agentID, taskID)
	}
	now := time.Now().UTC()
	if err := s.store.CloseAssignment(taskID, now); err != nil {
		return err
	}
	if _, err := s.store.UpdateTask(taskID, store.TaskUpdate{ClearAssignee: true}); err != nil {
		return err
	}
	s.log.Info("agent unassigned", "task_id", taskID, "agent_id", agentID)
	return nil
}

func (s *Service) requireTask(id string) error {
	exists, err := s.store.TaskExists(id)
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if !exists {
		return apperr.NotFound("Task %s not found", id)
	}
	return nil
}
