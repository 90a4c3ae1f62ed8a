package store

import (
	"database/sql"
	"fmt"
	"time"
)

const projectColumns = `id, key, name, description, status, created_by, updated_by, created_at, updated_at`

// ListProjects returns projects filtered by status, with the total count
// before pagination.
func (s *Store) ListProjects(status string, limit, offset int, sort string) ([]Project, int, error) {
	where := ""
	var args []any
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, status)
	}

	total, err := s.count(`SELECT COUNT(*) FROM projects`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where +
		` ORDER BY ` + parseSort(sort, projectSortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, *p)
	}
	return projects, total, rows.Err()
}

// GetProject returns a project by ID, or nil if it doesn't exist.
func (s *Store) GetProject(id string) (*Project, error) {
	rows, err := s.db.Query(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanProject(rows)
}

// ProjectKeyExists reports whether a project with the given key exists.
func (s *Store) ProjectKeyExists(key string) (bool, error) {
	return s.exists(`SELECT 1 FROM projects WHERE key = ?`, key)
}

// ProjectExists reports whether a project with the given ID exists.
func (s *Store) ProjectExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM projects WHERE id = ?`, id)
}

// CreateProject inserts a project together with its key counter row.
func (s *Store) CreateProject(p *Project) error {
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Key, p.Name, p.Description, string(p.Status),
			p.CreatedBy, p.UpdatedBy, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		_, err = tx.Exec(
			`INSERT OR IGNORE INTO project_counters (project_id, next_number, updated_at) VALUES (?, 1, ?)`,
			p.ID, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert project counter: %w", err)
		}
		return nil
	})
}

// ProjectUpdate carries optional field changes for a project patch.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *ProjectStatus
	UpdatedBy   *string
}

// UpdateProject applies the non-nil fields of upd and returns the updated row,
// or nil if the project doesn't exist.
func (s *Store) UpdateProject(id string, upd ProjectUpdate) (*Project, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.UpdatedBy != nil {
		sets = append(sets, "updated_by = ?")
		args = append(args, *upd.UpdatedBy)
	}

	args = append(args, id)
	res, err := s.db.Exec(`UPDATE projects SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetProject(id)
}

// DeleteProject removes a project and all rows cascading from it.
func (s *Store) DeleteProject(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AllocateKey mints the next work-item key for a project ({KEY}-{n}).
// The counter bump and read happen in one transaction; numbers are never
// reused even if the item insert later fails.
func (s *Store) AllocateKey(projectID string) (string, error) {
	var key string
	err := s.inTx(func(tx *sql.Tx) error {
		var projectKey string
		if err := tx.QueryRow(`SELECT key FROM projects WHERE id = ?`, projectID).Scan(&projectKey); err != nil {
			return fmt.Errorf("project key: %w", err)
		}
		var n int
		if err := tx.QueryRow(`SELECT next_number FROM project_counters WHERE project_id = ?`, projectID).Scan(&n); err != nil {
			return fmt.Errorf("counter: %w", err)
		}
		_, err := tx.Exec(
			`UPDATE project_counters SET next_number = next_number + 1, updated_at = ? WHERE project_id = ?`,
			time.Now().UTC(), projectID,
		)
		if err != nil {
			return fmt.Errorf("bump counter: %w", err)
		}
		key = fmt.Sprintf("%s-%d", projectKey, n)
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func scanProject(rows *sql.Rows) (*Project, error) {
	var p Project
	var description, createdBy, updatedBy sql.NullString
	err := rows.Scan(
		&p.ID, &p.Key, &p.Name, &description, &p.Status,
		&createdBy, &updatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Description = strPtr(description)
	p.CreatedBy = strPtr(createdBy)
	p.UpdatedBy = strPtr(updatedBy)
	return &p, nil
}
