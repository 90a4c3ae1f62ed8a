package store

import "time"

// ItemStatus is the shared status set for epics, stories and tasks.
type ItemStatus string

const (
	StatusTodo       ItemStatus = "TODO"
	StatusInProgress ItemStatus = "IN_PROGRESS"
	StatusCodeReview ItemStatus = "CODE_REVIEW"
	StatusVerify     ItemStatus = "VERIFY"
	StatusDone       ItemStatus = "DONE"
)

// ValidItemStatus reports whether s is one of the five allowed statuses.
func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCodeReview, StatusVerify, StatusDone:
		return true
	}
	return false
}

// ItemStatuses lists the allowed statuses in board order.
func ItemStatuses() []ItemStatus {
	return []ItemStatus{StatusTodo, StatusInProgress, StatusCodeReview, StatusVerify, StatusDone}
}

// StatusMode records whether an item's status came from a user write or from
// task-driven derivation.
type StatusMode string

const (
	ModeManual  StatusMode = "MANUAL"
	ModeDerived StatusMode = "DERIVED"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

// BacklogKind distinguishes the default backlog, sprints and idea buckets.
type BacklogKind string

const (
	KindBacklog BacklogKind = "BACKLOG"
	KindSprint  BacklogKind = "SPRINT"
	KindIdeas   BacklogKind = "IDEAS"
)

// ValidBacklogKind reports whether k is an allowed backlog kind.
func ValidBacklogKind(k BacklogKind) bool {
	switch k {
	case KindBacklog, KindSprint, KindIdeas:
		return true
	}
	return false
}

// BacklogStatus is the lifecycle state of a backlog.
type BacklogStatus string

const (
	BacklogActive BacklogStatus = "ACTIVE"
	BacklogClosed BacklogStatus = "CLOSED"
)

// AgentSource records how an agent row entered the system.
type AgentSource string

const (
	SourceManual     AgentSource = "manual"
	SourceRosterSync AgentSource = "openclaw_json"
)

// Project is a top-level container with a short uppercase key used to mint
// work-item keys like KEY-7.
type Project struct {
	ID          string        `json:"id"`
	Key         string        `json:"key"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	Status      ProjectStatus `json:"status"`
	CreatedBy   *string       `json:"created_by"`
	UpdatedBy   *string       `json:"updated_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Epic groups stories under a project.
type Epic struct {
	ID                  string     `json:"id"`
	ProjectID           string     `json:"project_id"`
	Key                 string     `json:"key"`
	Title               string     `json:"title"`
	Description         *string    `json:"description"`
	Status              ItemStatus `json:"status"`
	StatusMode          StatusMode `json:"status_mode"`
	StatusOverride      *string    `json:"status_override"`
	StatusOverrideSetAt *time.Time `json:"status_override_set_at"`
	IsBlocked           bool       `json:"is_blocked"`
	BlockedReason       *string    `json:"blocked_reason"`
	Priority            *int       `json:"priority"`
	CreatedBy           *string    `json:"created_by"`
	UpdatedBy           *string    `json:"updated_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Story is a unit of user-facing work. Its status is either MANUAL (last
// write came from a user) or DERIVED (computed from its tasks).
type Story struct {
	ID                  string     `json:"id"`
	ProjectID           *string    `json:"project_id"`
	EpicID              *string    `json:"epic_id"`
	Key                 *string    `json:"key"`
	Title               string     `json:"title"`
	Intent              *string    `json:"intent"`
	Description         *string    `json:"description"`
	StoryType           string     `json:"story_type"`
	Status              ItemStatus `json:"status"`
	StatusMode          StatusMode `json:"status_mode"`
	StatusOverride      *string    `json:"status_override"`
	StatusOverrideSetAt *time.Time `json:"status_override_set_at"`
	IsBlocked           bool       `json:"is_blocked"`
	BlockedReason       *string    `json:"blocked_reason"`
	Priority            *int       `json:"priority"`
	CreatedBy           *string    `json:"created_by"`
	UpdatedBy           *string    `json:"updated_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	StartedAt           *time.Time `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at"`
}

// Task is the smallest unit of work. Its status is authoritative and drives
// the derivation of its parent story's status.
type Task struct {
	ID                     string     `json:"id"`
	ProjectID              *string    `json:"project_id"`
	StoryID                *string    `json:"story_id"`
	Key                    *string    `json:"key"`
	Title                  string     `json:"title"`
	Objective              *string    `json:"objective"`
	Description            *string    `json:"description"`
	TaskType               string     `json:"task_type"`
	Status                 ItemStatus `json:"status"`
	IsBlocked              bool       `json:"is_blocked"`
	BlockedReason          *string    `json:"blocked_reason"`
	Priority               *int       `json:"priority"`
	EstimatePoints         *float64   `json:"estimate_points"`
	DueAt                  *string    `json:"due_at"`
	CurrentAssigneeAgentID *string    `json:"current_assignee_agent_id"`
	CreatedBy              *string    `json:"created_by"`
	UpdatedBy              *string    `json:"updated_by"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	StartedAt              *time.Time `json:"started_at"`
	CompletedAt            *time.Time `json:"completed_at"`
}

// Backlog is an ordered container of stories and tasks, scoped to a project
// or global when ProjectID is nil.
type Backlog struct {
	ID        string        `json:"id"`
	ProjectID *string       `json:"project_id"`
	Name      string        `json:"name"`
	Kind      BacklogKind   `json:"kind"`
	Status    BacklogStatus `json:"status"`
	IsDefault bool          `json:"is_default"`
	Goal      *string       `json:"goal"`
	StartDate *string       `json:"start_date"`
	EndDate   *string       `json:"end_date"`
	CreatedBy *string       `json:"created_by"`
	UpdatedBy *string       `json:"updated_by"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BacklogItem is a positioned membership row for either item kind.
type BacklogItem struct {
	BacklogID string    `json:"backlog_id"`
	ItemID    string    `json:"item_id"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"added_at"`
}

// Label is a tag attachable to stories and tasks, project-scoped or global.
type Label struct {
	ID        string    `json:"id"`
	ProjectID *string   `json:"project_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Agent is a worker identity that can hold task assignments.
type Agent struct {
	ID           string      `json:"id"`
	OpenclawKey  string      `json:"openclaw_key"`
	Name         string      `json:"name"`
	Role         *string     `json:"role"`
	WorkerType   *string     `json:"worker_type"`
	IsActive     bool        `json:"is_active"`
	Source       AgentSource `json:"source"`
	LastSyncedAt *time.Time  `json:"last_synced_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TaskAssignment records an agent holding a task. At most one row per task
// has UnassignedAt unset.
type TaskAssignment struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	AgentID      string     `json:"agent_id"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at"`
	AssignedBy   *string    `json:"assigned_by"`
	Reason       *string    `json:"reason"`
}

// ImportRun tracks one telemetry import execution.
type ImportRun struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Mode          string     `json:"mode"` // full, incremental
	FromTimestamp *string    `json:"from_timestamp"`
	ToTimestamp   string     `json:"to_timestamp"`
	Status        string     `json:"status"` // running, success, failed
	ErrorMessage  *string    `json:"error_message"`
}

// DailyMetric is an aggregated per-day, per-model usage row.
type DailyMetric struct {
	Date         string  `json:"date"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	RequestCount int64   `json:"request_count"`
	TotalCost    float64 `json:"total_cost"`
}

// UsageRequest is one imported LLM generation record.
type UsageRequest struct {
	ID           string   `json:"id"`
	TraceID      *string  `json:"trace_id"`
	Name         *string  `json:"name"`
	Model        *string  `json:"model"`
	StartedAt    *string  `json:"started_at"`
	FinishedAt   *string  `json:"finished_at"`
	InputTokens  int64    `json:"input_tokens"`
	OutputTokens int64    `json:"output_tokens"`
	TotalTokens  int64    `json:"total_tokens"`
	Cost         *float64 `json:"cost"`
	LatencyMs    *int64   `json:"latency_ms"`
}
