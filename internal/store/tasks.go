package store

import (
	"database/sql"
	"fmt"
	"time"
)

const taskColumns = `id, project_id, story_id, key, title, objective, description, task_type, status, is_blocked, blocked_reason, priority, estimate_points, due_at, current_assignee_agent_id, created_by, updated_by, created_at, updated_at, started_at, completed_at`

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	Key        string
	ProjectID  string
	StoryID    string
	Status     string
	AssigneeID string
}

// ListTasks returns tasks matching the filter with the total count before
// pagination.
func (s *Store) ListTasks(f TaskFilter, limit, offset int, sort string) ([]Task, int, error) {
	where, args := buildWhere(map[string]string{
		"key":                       f.Key,
		"project_id":                f.ProjectID,
		"story_id":                  f.StoryID,
		"status":                    f.Status,
		"current_assignee_agent_id": f.AssigneeID,
	})

	total, err := s.count(`SELECT COUNT(*) FROM tasks`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY ` + parseSort(sort, taskSortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, total, rows.Err()
}

// ListTasksByStory returns every task under a story. Used by the status
// derivation engine, which needs the complete set.
func (s *Store) ListTasksByStory(storyID string) ([]Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE story_id = ? ORDER BY created_at`, storyID)
	if err != nil {
		return nil, fmt.Errorf("query story tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask returns a task by ID, or nil if it doesn't exist.
func (s *Store) GetTask(id string) (*Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTask(rows)
}

// TaskExists reports whether a task with the given ID exists.
func (s *Store) TaskExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM tasks WHERE id = ?`, id)
}

// CreateTask inserts a task.
func (s *Store) CreateTask(t *Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.StoryID, t.Key, t.Title, t.Objective, t.Description, t.TaskType,
		string(t.Status), t.IsBlocked, t.BlockedReason, t.Priority, t.EstimatePoints, t.DueAt,
		t.CurrentAssigneeAgentID, t.CreatedBy, t.UpdatedBy, t.CreatedAt, t.UpdatedAt,
		t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// TaskUpdate carries optional field changes for a task patch.
// ClearCompletedAt and ClearAssignee null their columns explicitly.
type TaskUpdate struct {
	StoryID          *string
	Title            *string
	Objective        *string
	Description      *string
	TaskType         *string
	Status           *ItemStatus
	IsBlocked        *bool
	BlockedReason    *string
	Priority         *int
	EstimatePoints   *float64
	DueAt            *string
	AssigneeAgentID  *string
	ClearAssignee    bool
	UpdatedBy        *string
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ClearCompletedAt bool
}

// UpdateTask applies the non-nil fields of upd and returns the updated row,
// or nil if the task doesn't exist.
func (s *Store) UpdateTask(id string, upd TaskUpdate) (*Task, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.StoryID != nil {
		sets = append(sets, "story_id = ?")
		args = append(args, *upd.StoryID)
	}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Objective != nil {
		sets = append(sets, "objective = ?")
		args = append(args, *upd.Objective)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.TaskType != nil {
		sets = append(sets, "task_type = ?")
		args = append(args, *upd.TaskType)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.IsBlocked != nil {
		sets = append(sets, "is_blocked = ?")
		args = append(args, *upd.IsBlocked)
	}
	if upd.BlockedReason != nil {
		sets = append(sets, "blocked_reason = ?")
		args = append(args, *upd.BlockedReason)
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *upd.Priority)
	}
	if upd.EstimatePoints != nil {
		sets = append(sets, "estimate_points = ?")
		args = append(args, *upd.EstimatePoints)
	}
	if upd.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, *upd.DueAt)
	}
	if upd.AssigneeAgentID != nil {
		sets = append(sets, "current_assignee_agent_id = ?")
		args = append(args, *upd.AssigneeAgentID)
	} else if upd.ClearAssignee {
		sets = append(sets, "current_assignee_agent_id = NULL")
	}
	if upd.UpdatedBy != nil {
		sets = append(sets, "updated_by = ?")
		args = append(args, *upd.UpdatedBy)
	}
	if upd.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *upd.StartedAt)
	}
	if upd.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *upd.CompletedAt)
	} else if upd.ClearCompletedAt {
		sets = append(sets, "completed_at = NULL")
	}

	args = append(args, id)
	res, err := s.db.Exec(`UPDATE tasks SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetTask(id)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TaskLabels returns the labels attached to a task.
func (s *Store) TaskLabels(taskID string) ([]Label, error) {
	rows, err := s.db.Query(
		`SELECT l.id, l.project_id, l.name, l.color, l.created_at
		 FROM labels l JOIN task_labels tl ON tl.label_id = l.id
		 WHERE tl.task_id = ? ORDER BY l.name`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("task labels: %w", err)
	}
	defer rows.Close()
	return collectLabels(rows)
}

// TaskLabelAttached reports whether the label is attached to the task.
func (s *Store) TaskLabelAttached(taskID, labelID string) (bool, error) {
	return s.exists(`SELECT 1 FROM task_labels WHERE task_id = ? AND label_id = ?`, taskID, labelID)
}

// AttachTaskLabel links a label to a task.
func (s *Store) AttachTaskLabel(taskID, labelID string) error {
	_, err := s.db.Exec(`INSERT INTO task_labels (task_id, label_id) VALUES (?, ?)`, taskID, labelID)
	if err != nil {
		return fmt.Errorf("attach task label: %w", err)
	}
	return nil
}

// DetachTaskLabel unlinks a label from a task, reporting whether a row was
// removed.
func (s *Store) DetachTaskLabel(taskID, labelID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM task_labels WHERE task_id = ? AND label_id = ?`, taskID, labelID)
	if err != nil {
		return false, fmt.Errorf("detach task label: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- assignments ---

const assignmentColumns = `id, task_id, agent_id, assigned_at, unassigned_at, assigned_by, reason`

// ListAssignments returns all assignment rows for a task, newest first.
func (s *Store) ListAssignments(taskID string) ([]TaskAssignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id = ? ORDER BY assigned_at DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// ActiveAssignment returns the open assignment for a task, or nil.
func (s *Store) ActiveAssignment(taskID string) (*TaskAssignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id = ? AND unassigned_at IS NULL`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("active assignment: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAssignment(rows)
}

// CreateAssignment inserts an assignment row.
func (s *Store) CreateAssignment(a *TaskAssignment) error {
	_, err := s.db.Exec(
		`INSERT INTO task_assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.AgentID, a.AssignedAt, a.UnassignedAt, a.AssignedBy, a.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// CloseAssignment stamps unassigned_at on the task's open assignment, if any.
func (s *Store) CloseAssignment(taskID string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE task_assignments SET unassigned_at = ? WHERE task_id = ? AND unassigned_at IS NULL`,
		at, taskID,
	)
	if err != nil {
		return fmt.Errorf("close assignment: %w", err)
	}
	return nil
}

func scanTask(rows *sql.Rows) (*Task, error) {
	var t Task
	var projectID, storyID, key, objective, description, blockedReason, dueAt, assignee, createdBy, updatedBy sql.NullString
	var priority sql.NullInt64
	var estimate sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	err := rows.Scan(
		&t.ID, &projectID, &storyID, &key, &t.Title, &objective, &description, &t.TaskType,
		&t.Status, &t.IsBlocked, &blockedReason, &priority, &estimate, &dueAt,
		&assignee, &createdBy, &updatedBy, &t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.ProjectID = strPtr(projectID)
	t.StoryID = strPtr(storyID)
	t.Key = strPtr(key)
	t.Objective = strPtr(objective)
	t.Description = strPtr(description)
	t.BlockedReason = strPtr(blockedReason)
	t.Priority = intPtr(priority)
	t.EstimatePoints = floatPtr(estimate)
	t.DueAt = strPtr(dueAt)
	t.CurrentAssigneeAgentID = strPtr(assignee)
	t.CreatedBy = strPtr(createdBy)
	t.UpdatedBy = strPtr(updatedBy)
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

func scanAssignment(rows *sql.Rows) (*TaskAssignment, error) {
	var a TaskAssignment
	var unassignedAt sql.NullTime
	var assignedBy, reason sql.NullString
	err := rows.Scan(&a.ID, &a.TaskID, &a.AgentID, &a.AssignedAt, &unassignedAt, &assignedBy, &reason)
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	a.UnassignedAt = timePtr(unassignedAt)
	a.AssignedBy = strPtr(assignedBy)
	a.Reason = strPtr(reason)
	return &a, nil
}
