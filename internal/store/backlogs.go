package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const backlogColumns = `id, project_id, name, kind, status, is_default, goal, start_date, end_date, created_by, updated_by, created_at, updated_at`

// BacklogFilter narrows ListBacklogs results. FilterGlobal restricts to
// project-less backlogs.
type BacklogFilter struct {
	ProjectID    string
	FilterGlobal bool
	Status       string
	Kind         string
}

// ListBacklogs returns backlogs matching the filter with the total count
// before pagination.
func (s *Store) ListBacklogs(f BacklogFilter, limit, offset int, sort string) ([]Backlog, int, error) {
	var clauses []string
	var args []any
	if f.FilterGlobal {
		clauses = append(clauses, "project_id IS NULL")
	} else if f.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	where := ""
	for i, c := range clauses {
		if i == 0 {
			where = " WHERE " + c
		} else {
			where += " AND " + c
		}
	}

	total, err := s.count(`SELECT COUNT(*) FROM backlogs`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + backlogColumns + ` FROM backlogs` + where +
		` ORDER BY ` + parseSort(sort, backlogSortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query backlogs: %w", err)
	}
	defer rows.Close()

	var backlogs []Backlog
	for rows.Next() {
		b, err := scanBacklog(rows)
		if err != nil {
			return nil, 0, err
		}
		backlogs = append(backlogs, *b)
	}
	return backlogs, total, rows.Err()
}

// GetBacklog returns a backlog by ID, or nil if it doesn't exist.
func (s *Store) GetBacklog(id string) (*Backlog, error) {
	rows, err := s.db.Query(`SELECT `+backlogColumns+` FROM backlogs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get backlog: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanBacklog(rows)
}

// CreateBacklog inserts a backlog.
func (s *Store) CreateBacklog(b *Backlog) error {
	_, err := s.db.Exec(
		`INSERT INTO backlogs (`+backlogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Name, string(b.Kind), string(b.Status), b.IsDefault,
		b.Goal, b.StartDate, b.EndDate, b.CreatedBy, b.UpdatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backlog: %w", err)
	}
	return nil
}

// BacklogUpdate carries optional field changes for a backlog patch.
type BacklogUpdate struct {
	Name      *string
	Status    *BacklogStatus
	Goal      *string
	StartDate *string
	EndDate   *string
	UpdatedBy *string
}

// UpdateBacklog applies the non-nil fields of upd and returns the updated
// row, or nil if the backlog doesn't exist.
func (s *Store) UpdateBacklog(id string, upd BacklogUpdate) (*Backlog, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Goal != nil {
		sets = append(sets, "goal = ?")
		args = append(args, *upd.Goal)
	}
	if upd.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, *upd.StartDate)
	}
	if upd.EndDate != nil {
		sets = append(sets, "end_date = ?")
		args = append(args, *upd.EndDate)
	}
	if upd.UpdatedBy != nil {
		sets = append(sets, "updated_by = ?")
		args = append(args, *upd.UpdatedBy)
	}

	args = append(args, id)
	res, err := s.db.Exec(`UPDATE backlogs SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update backlog: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetBacklog(id)
}

// DeleteBacklog removes a backlog; membership rows cascade away.
func (s *Store) DeleteBacklog(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM backlogs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete backlog: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BacklogStoryCount returns the number of stories in a backlog.
func (s *Store) BacklogStoryCount(backlogID string) (int, error) {
	return s.count(`SELECT COUNT(*) FROM backlog_stories WHERE backlog_id = ?`, backlogID)
}

// BacklogTaskCount returns the number of tasks in a backlog.
func (s *Store) BacklogTaskCount(backlogID string) (int, error) {
	return s.count(`SELECT COUNT(*) FROM backlog_tasks WHERE backlog_id = ?`, backlogID)
}

// StoryBacklogID returns the backlog a story belongs to, or "" if none.
func (s *Store) StoryBacklogID(storyID string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT backlog_id FROM backlog_stories WHERE story_id = ?`, storyID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("story backlog: %w", err)
	}
	return id, nil
}

// TaskBacklogID returns the backlog a task belongs to, or "" if none.
func (s *Store) TaskBacklogID(taskID string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT backlog_id FROM backlog_tasks WHERE task_id = ?`, taskID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("task backlog: %w", err)
	}
	return id, nil
}

// OrderedStory is a story joined with its backlog position.
type OrderedStory struct {
	Story
	Position int `json:"position"`
}

// OrderedTask is a task joined with its backlog position.
type OrderedTask struct {
	Task
	Position int `json:"position"`
}

// ListBacklogStories returns the stories of a backlog in position order.
func (s *Store) ListBacklogStories(backlogID string) ([]OrderedStory, error) {
	rows, err := s.db.Query(
		`SELECT `+qualify(storyColumns, "s")+`, bs.position
		 FROM stories s JOIN backlog_stories bs ON bs.story_id = s.id
		 WHERE bs.backlog_id = ? ORDER BY bs.position`, backlogID,
	)
	if err != nil {
		return nil, fmt.Errorf("query backlog stories: %w", err)
	}
	defer rows.Close()

	var out []OrderedStory
	for rows.Next() {
		st, pos, err := scanOrderedStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderedStory{Story: *st, Position: pos})
	}
	return out, rows.Err()
}

// ListBacklogTasks returns the tasks of a backlog in position order.
func (s *Store) ListBacklogTasks(backlogID string) ([]OrderedTask, error) {
	rows, err := s.db.Query(
		`SELECT `+qualify(taskColumns, "t")+`, bt.position
		 FROM tasks t JOIN backlog_tasks bt ON bt.task_id = t.id
		 WHERE bt.backlog_id = ? ORDER BY bt.position`, backlogID,
	)
	if err != nil {
		return nil, fmt.Errorf("query backlog tasks: %w", err)
	}
	defer rows.Close()

	var out []OrderedTask
	for rows.Next() {
		t, pos, err := scanOrderedTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderedTask{Task: *t, Position: pos})
	}
	return out, rows.Err()
}

// ActiveSprint returns the ACTIVE sprint backlog for a project, or nil.
func (s *Store) ActiveSprint(projectID string) (*Backlog, error) {
	rows, err := s.db.Query(
		`SELECT `+backlogColumns+` FROM backlogs
		 WHERE project_id = ? AND kind = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		projectID, string(KindSprint), string(BacklogActive),
	)
	if err != nil {
		return nil, fmt.Errorf("active sprint: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanBacklog(rows)
}

// qualify prefixes each column in a comma-separated list with an alias.
func qualify(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func scanBacklog(rows *sql.Rows) (*Backlog, error) {
	var b Backlog
	var projectID, goal, startDate, endDate, createdBy, updatedBy sql.NullString
	err := rows.Scan(
		&b.ID, &projectID, &b.Name, &b.Kind, &b.Status, &b.IsDefault,
		&goal, &startDate, &endDate, &createdBy, &updatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan backlog: %w", err)
	}
	b.ProjectID = strPtr(projectID)
	b.Goal = strPtr(goal)
	b.StartDate = strPtr(startDate)
	b.EndDate = strPtr(endDate)
	b.CreatedBy = strPtr(createdBy)
	b.UpdatedBy = strPtr(updatedBy)
	return &b, nil
}

func scanOrderedStory(rows *sql.Rows) (*Story, int, error) {
	var st Story
	var projectID, epicID, key, intent, description, statusOverride, blockedReason, createdBy, updatedBy sql.NullString
	var overrideSetAt, startedAt, completedAt sql.NullTime
	var priority sql.NullInt64
	var position int
	err := rows.Scan(
		&st.ID, &projectID, &epicID, &key, &st.Title, &intent, &description, &st.StoryType,
		&st.Status, &st.StatusMode, &statusOverride, &overrideSetAt,
		&st.IsBlocked, &blockedReason, &priority, &createdBy, &updatedBy,
		&st.CreatedAt, &st.UpdatedAt, &startedAt, &completedAt, &position,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scan backlog story: %w", err)
	}
	st.ProjectID = strPtr(projectID)
	st.EpicID = strPtr(epicID)
	st.Key = strPtr(key)
	st.Intent = strPtr(intent)
	st.Description = strPtr(description)
	st.StatusOverride = strPtr(statusOverride)
	st.StatusOverrideSetAt = timePtr(overrideSetAt)
	st.BlockedReason = strPtr(blockedReason)
	st.Priority = intPtr(priority)
	st.CreatedBy = strPtr(createdBy)
	st.UpdatedBy = strPtr(updatedBy)
	st.StartedAt = timePtr(startedAt)
	st.CompletedAt = timePtr(completedAt)
	return &st, position, nil
}

func scanOrderedTask(rows *sql.Rows) (*Task, int, error) {
	var t Task
	var projectID, storyID, key, objective, description, blockedReason, dueAt, assignee, createdBy, updatedBy sql.NullString
	var priority sql.NullInt64
	var estimate sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	var position int
	err := rows.Scan(
		&t.ID, &projectID, &storyID, &key, &t.Title, &objective, &description, &t.TaskType,
		&t.Status, &t.IsBlocked, &blockedReason, &priority, &estimate, &dueAt,
		&assignee, &createdBy, &updatedBy, &t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt,
		&position,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scan backlog task: %w", err)
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
	return &t, position, nil
}
