package store

import (
	"database/sql"
	"fmt"
	"time"
)

const agentColumns = `id, openclaw_key, name, role, worker_type, is_active, source, last_synced_at, created_at, updated_at`

// AgentFilter narrows ListAgents results. IsActive is a tri-state filter.
type AgentFilter struct {
	IsActive *bool
	Source   string
}

// ListAgents returns agents matching the filter with the total count before
// pagination.
func (s *Store) ListAgents(f AgentFilter, limit, offset int, sort string) ([]Agent, int, error) {
	where := ""
	var args []any
	if f.IsActive != nil {
		where = ` WHERE is_active = ?`
		args = append(args, *f.IsActive)
	}
	if f.Source != "" {
		if where == "" {
			where = ` WHERE source = ?`
		} else {
			where += ` AND source = ?`
		}
		args = append(args, f.Source)
	}

	total, err := s.count(`SELECT COUNT(*) FROM agents`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + agentColumns + ` FROM agents` + where +
		` ORDER BY ` + parseSort(sort, agentSortFields) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, 0, err
		}
		agents = append(agents, *a)
	}
	return agents, total, rows.Err()
}

// GetAgent returns an agent by ID, or nil if it doesn't exist.
func (s *Store) GetAgent(id string) (*Agent, error) {
	rows, err := s.db.Query(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAgent(rows)
}

// AgentExists reports whether an agent with the given ID exists.
func (s *Store) AgentExists(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM agents WHERE id = ?`, id)
}

// AgentKeyExists reports whether an agent with the given openclaw key exists.
func (s *Store) AgentKeyExists(key string) (bool, error) {
	return s.exists(`SELECT 1 FROM agents WHERE openclaw_key = ?`, key)
}

// CreateAgent inserts an agent.
func (s *Store) CreateAgent(a *Agent) error {
	_, err := s.db.Exec(
		`INSERT INTO agents (`+agentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OpenclawKey, a.Name, a.Role, a.WorkerType, a.IsActive, string(a.Source),
		a.LastSyncedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// AgentUpdate carries optional field changes for an agent patch.
type AgentUpdate struct {
	Name         *string
	Role         *string
	WorkerType   *string
	IsActive     *bool
	LastSyncedAt *time.Time
}

// UpdateAgent applies the non-nil fields of upd and returns the updated row,
// or nil if the agent doesn't exist.
func (s *Store) UpdateAgent(id string, upd AgentUpdate) (*Agent, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.WorkerType != nil {
		sets = append(sets, "worker_type = ?")
		args = append(args, *upd.WorkerType)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if upd.LastSyncedAt != nil {
		sets = append(sets, "last_synced_at = ?")
		args = append(args, *upd.LastSyncedAt)
	}

	args = append(args, id)
	res, err := s.db.Exec(`UPDATE agents SET `+joinSets(sets)+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetAgent(id)
}

// DeleteAgent removes an agent and its assignment history.
func (s *Store) DeleteAgent(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete agent: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanAgent(rows *sql.Rows) (*Agent, error) {
	var a Agent
	var role, workerType sql.NullString
	var lastSynced sql.NullTime
	err := rows.Scan(
		&a.ID, &a.OpenclawKey, &a.Name, &role, &workerType, &a.IsActive, &a.Source,
		&lastSynced, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	a.Role = strPtr(role)
	a.WorkerType = strPtr(workerType)
	a.LastSyncedAt = timePtr(lastSynced)
	return &a, nil
}
