package store

import (
	"database/sql"
	"fmt"
)

// ListLabels returns labels for a project scope. When projectID is set the
// result also includes global labels; filterGlobal restricts to globals only.
func (s *Store) ListLabels(projectID string, filterGlobal bool, limit, offset int) ([]Label, int, error) {
	where := ""
	var args []any
	switch {
	case filterGlobal:
		where = ` WHERE project_id IS NULL`
	case projectID != "":
		where = ` WHERE (project_id = ? OR project_id IS NULL)`
		args = append(args, projectID)
	}

	total, err := s.count(`SELECT COUNT(*) FROM labels`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(
		`SELECT id, project_id, name, color, created_at FROM labels`+where+
			` ORDER BY name ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	labels, err := collectLabels(rows)
	return labels, total, err
}

// GetLabel returns a label by ID, or nil if it doesn't exist.
func (s *Store) GetLabel(id string) (*Label, error) {
	rows, err := s.db.Query(`SELECT id, project_id, name, color, created_at FROM labels WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get label: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanLabel(rows)
}

// LabelExists reports whether a label with the given ID exists.
func (s *Store) LabelExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM labels WHERE id = ?`, id)
}

// LabelNameExists reports whether a label name is taken within the project
// scope (or the global scope when projectID is nil).
func (s *Store) LabelNameExists(name string, projectID *string) (bool, error) {
	if projectID != nil {
		return s.exists(`SELECT 1 FROM labels WHERE name = ? AND project_id = ?`, name, *projectID)
	}
	return s.exists(`SELECT 1 FROM labels WHERE name = ? AND project_id IS NULL`, name)
}

// CreateLabel inserts a label.
func (s *Store) CreateLabel(l *Label) error {
	_, err := s.db.Exec(
		`INSERT INTO labels (id, project_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, l.Name, l.Color, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// DeleteLabel removes a label; join rows cascade away with it.
func (s *Store) DeleteLabel(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM labels WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete label: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func collectLabels(rows *sql.Rows) ([]Label, error) {
	var labels []Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, *l)
	}
	return labels, rows.Err()
}

func scanLabel(rows *sql.Rows) (*Label, error) {
	var l Label
	var projectID, color sql.NullString
	if err := rows.Scan(&l.ID, &projectID, &l.Name, &color, &l.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan label: %w", err)
	}
	l.ProjectID = strPtr(projectID)
	l.Color = strPtr(color)
	return &l, nil
}
