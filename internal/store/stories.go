package store

import (
	"database/sql"
	"fmt"
	"time"
)

const storyColumns = `id, project_id, epic_id, key, title, intent, description, story_type, status, status_mode, status_override, status_override_set_at, is_blocked, blocked_reason, priority, created_by, updated_by, created_at, updated_at, started_at, completed_at`

// StoryFilter narrows ListStories results.
type StoryFilter struct {
	Key       string
	ProjectID string
	EpicID    string
	Status    string
}

// ListStories returns stories matching the filter with the total count
// before pagination.
func (s *Store) ListStories(f StoryFilter, limit, offset int, sort string) ([]Story, int, error) {
	where, args := buildWhere(map[string]string{
		"key":        f.Key,
		"project_id": f.ProjectID,
		"epic_id":    f.EpicID,
		"status":     f.Status,
	})

	total, err := s.count(`SELECT COUNT(*) FROM stories`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + storyColumns + ` FROM stories` + where +
		` ORDER BY ` + parseSort(sort, storySortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var stories []Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, 0, err
		}
		stories = append(stories, *st)
	}
	return stories, total, rows.Err()
}

// GetStory returns a story by ID, or nil if it doesn't exist.
func (s *Store) GetStory(id string) (*Story, error) {
	rows, err := s.db.Query(`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanStory(rows)
}

// GetStoryByKey returns a story by its work-item key, or nil if absent.
func (s *Store) GetStoryByKey(key string) (*Story, error) {
	rows, err := s.db.Query(`SELECT `+storyColumns+` FROM stories WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("get story by key: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanStory(rows)
}

// StoryExists reports whether a story with the given ID exists.
func (s *Store) StoryExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM stories WHERE id = ?`, id)
}

// StoryTaskCount returns the number of tasks under a story.
func (s *Store) StoryTaskCount(storyID string) (int, error) {
	return s.count(`SELECT COUNT(*) FROM tasks WHERE story_id = ?`, storyID)
}

// CreateStory inserts a story.
func (s *Store) CreateStory(st *Story) error {
	_, err := s.db.Exec(
		`INSERT INTO stories (`+storyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.ProjectID, st.EpicID, st.Key, st.Title, st.Intent, st.Description, st.StoryType,
		string(st.Status), string(st.StatusMode), st.StatusOverride, st.StatusOverrideSetAt,
		st.IsBlocked, st.BlockedReason, st.Priority, st.CreatedBy, st.UpdatedBy,
		st.CreatedAt, st.UpdatedAt, st.StartedAt, st.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// StoryUpdate carries optional field changes for a story patch.
// ClearCompletedAt nulls completed_at regardless of CompletedAt.
type StoryUpdate struct {
	EpicID              *string
	Title               *string
	Intent              *string
	Description         *string
	StoryType           *string
	Status              *ItemStatus
	StatusMode          *StatusMode
	StatusOverride      *string
	StatusOverrideSetAt *time.Time
	IsBlocked           *bool
	BlockedReason       *string
	Priority            *int
	UpdatedBy           *string
	StartedAt           *time.Time
	CompletedAt         *time.Time
	ClearCompletedAt    bool
}

// UpdateStory applies the non-nil fields of upd and returns the updated row,
// or nil if the story doesn't exist.
func (s *Store) UpdateStory(id string, upd StoryUpdate) (*Story, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.EpicID != nil {
		sets = append(sets, "epic_id = ?")
		args = append(args, *upd.EpicID)
	}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Intent != nil {
		sets = append(sets, "intent = ?")
		args = append(args, *upd.Intent)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.StoryType != nil {
		sets = append(sets, "story_type = ?")
		args = append(args, *upd.StoryType)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.StatusMode != nil {
		sets = append(sets, "status_mode = ?")
		args = append(args, string(*upd.StatusMode))
	}
	if upd.StatusOverride != nil {
		sets = append(sets, "status_override = ?")
		args = append(args, *upd.StatusOverride)
	}
	if upd.StatusOverrideSetAt != nil {
		sets = append(sets, "status_override_set_at = ?")
		args = append(args, *upd.StatusOverrideSetAt)
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
	res, err := s.db.Exec(`UPDATE stories SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetStory(id)
}

// DeleteStory removes a story. Tasks keep existing with story_id cleared.
func (s *Store) DeleteStory(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete story: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// StoryLabels returns the labels attached to a story.
func (s *Store) StoryLabels(storyID string) ([]Label, error) {
	rows, err := s.db.Query(
		`SELECT l.id, l.project_id, l.name, l.color, l.created_at
		 FROM labels l JOIN story_labels sl ON sl.label_id = l.id
		 WHERE sl.story_id = ? ORDER BY l.name`, storyID,
	)
	if err != nil {
		return nil, fmt.Errorf("story labels: %w", err)
	}
	defer rows.Close()
	return collectLabels(rows)
}

// StoryLabelAttached reports whether the label is attached to the story.
func (s *Store) StoryLabelAttached(storyID, labelID string) (bool, error) {
	return s.exists(`SELECT 1 FROM story_labels WHERE story_id = ? AND label_id = ?`, storyID, labelID)
}

// AttachStoryLabel links a label to a story.
func (s *Store) AttachStoryLabel(storyID, labelID string) error {
	_, err := s.db.Exec(`INSERT INTO story_labels (story_id, label_id) VALUES (?, ?)`, storyID, labelID)
	if err != nil {
		return fmt.Errorf("attach story label: %w", err)
	}
	return nil
}

// DetachStoryLabel unlinks a label from a story, reporting whether a row
// was removed.
func (s *Store) DetachStoryLabel(storyID, labelID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM story_labels WHERE story_id = ? AND label_id = ?`, storyID, labelID)
	if err != nil {
		return false, fmt.Errorf("detach story label: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanStory(rows *sql.Rows) (*Story, error) {
	var st Story
	var projectID, epicID, key, intent, description, statusOverride, blockedReason, createdBy, updatedBy sql.NullString
	var overrideSetAt, startedAt, completedAt sql.NullTime
	var priority sql.NullInt64
	err := rows.Scan(
		&st.ID, &projectID, &epicID, &key, &st.Title, &intent, &description, &st.StoryType,
		&st.Status, &st.StatusMode, &statusOverride, &overrideSetAt,
		&st.IsBlocked, &blockedReason, &priority, &createdBy, &updatedBy,
		&st.CreatedAt, &st.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan story: %w", err)
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
	return &st, nil
}
