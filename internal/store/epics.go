package store

import (
	"database/sql"
	"fmt"
	"time"
)

const epicColumns = `id, project_id, key, title, description, status, status_mode, status_override, status_override_set_at, is_blocked, blocked_reason, priority, created_by, updated_by, created_at, updated_at`

// EpicFilter narrows ListEpics results.
type EpicFilter struct {
	Key       string
	ProjectID string
	Status    string
}

// ListEpics returns epics matching the filter with the total count before
// pagination.
func (s *Store) ListEpics(f EpicFilter, limit, offset int, sort string) ([]Epic, int, error) {
	where, args := buildWhere(map[string]string{
		"key":        f.Key,
		"project_id": f.ProjectID,
		"status":     f.Status,
	})

	total, err := s.count(`SELECT COUNT(*) FROM epics`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + epicColumns + ` FROM epics` + where +
		` ORDER BY ` + parseSort(sort, epicSortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query epics: %w", err)
	}
	defer rows.Close()

	var epics []Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, 0, err
		}
		epics = append(epics, *e)
	}
	return epics, total, rows.Err()
}

// GetEpic returns an epic by ID, or nil if it doesn't exist.
func (s *Store) GetEpic(id string) (*Epic, error) {
	rows, err := s.db.Query(`SELECT `+epicColumns+` FROM epics WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get epic: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEpic(rows)
}

// GetEpicByKey returns an epic by its work-item key, or nil if absent.
func (s *Store) GetEpicByKey(key string) (*Epic, error) {
	rows, err := s.db.Query(`SELECT `+epicColumns+` FROM epics WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("get epic by key: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEpic(rows)
}

// EpicExists reports whether an epic with the given ID exists.
func (s *Store) EpicExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM epics WHERE id = ?`, id)
}

// EpicStoryCount returns the number of stories under an epic.
func (s *Store) EpicStoryCount(epicID string) (int, error) {
	return s.count(`SELECT COUNT(*) FROM stories WHERE epic_id = ?`, epicID)
}

// CreateEpic inserts an epic.
func (s *Store) CreateEpic(e *Epic) error {
	_, err := s.db.Exec(
		`INSERT INTO epics (`+epicColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Key, e.Title, e.Description, string(e.Status), string(e.StatusMode),
		e.StatusOverride, e.StatusOverrideSetAt, e.IsBlocked, e.BlockedReason, e.Priority,
		e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert epic: %w", err)
	}
	return nil
}

// EpicUpdate carries optional field changes for an epic patch. A Status
// write is a manual override: the caller also sets the override fields.
type EpicUpdate struct {
	Title               *string
	Description         *string
	Status              *ItemStatus
	StatusMode          *StatusMode
	StatusOverride      *string
	StatusOverrideSetAt *time.Time
	IsBlocked           *bool
	BlockedReason       *string
	Priority            *int
	UpdatedBy           *string
}

// UpdateEpic applies the non-nil fields of upd and returns the updated row,
// or nil if the epic doesn't exist.
func (s *Store) UpdateEpic(id string, upd EpicUpdate) (*Epic, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
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

	args = append(args, id)
	res, err := s.db.Exec(`UPDATE epics SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update epic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetEpic(id)
}

// DeleteEpic removes an epic. Stories keep existing with epic_id cleared.
func (s *Store) DeleteEpic(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM epics WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete epic: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// buildWhere assembles an equality WHERE clause from non-empty filter values.
// Iteration order doesn't matter for correctness, only for arg pairing, so
// clauses and args are appended together.
func buildWhere(filters map[string]string) (string, []any) {
	var clauses []string
	var args []any
	for _, col := range []string{"key", "project_id", "epic_id", "story_id", "status", "source", "kind", "current_assignee_agent_id"} {
		if v, ok := filters[col]; ok && v != "" {
			clauses = append(clauses, col+" = ?")
			args = append(args, v)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func scanEpic(rows *sql.Rows) (*Epic, error) {
	var e Epic
	var description, statusOverride, blockedReason, createdBy, updatedBy sql.NullString
	var overrideSetAt sql.NullTime
	var priority sql.NullInt64
	err := rows.Scan(
		&e.ID, &e.ProjectID, &e.Key, &e.Title, &description, &e.Status, &e.StatusMode,
		&statusOverride, &overrideSetAt, &e.IsBlocked, &blockedReason, &priority,
		&createdBy, &updatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan epic: %w", err)
	}
	e.Description = strPtr(description)
	e.StatusOverride = strPtr(statusOverride)
	e.StatusOverrideSetAt = timePtr(overrideSetAt)
	e.BlockedReason = strPtr(blockedReason)
	e.Priority = intPtr(priority)
	e.CreatedBy = strPtr(createdBy)
	e.UpdatedBy = strPtr(updatedBy)
	return &e, nil
}
