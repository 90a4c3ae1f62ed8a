package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func makeAgent(t *testing.T, s *Store, key string) *Agent {
	t.Helper()
	now := time.Now().UTC()
	a := &Agent{
		ID:          uuid.NewString(),
		OpenclawKey: key,
		Name:        key,
		IsActive:    true,
		Source:      SourceManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return a
}

func TestUpdateTaskStatus(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "TSK")
	task := makeTask(t, s, &p.ID, nil)

	status := StatusInProgress
	now := time.Now().UTC()
	updated, err := s.UpdateTask(task.ID, TaskUpdate{Status: &status, StartedAt: &now})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Errorf("status = %q, want IN_PROGRESS", updated.Status)
	}
	if updated.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
}

func TestUpdateTaskClearCompletedAt(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "CLR")
	task := makeTask(t, s, &p.ID, nil)

	done := StatusDone
	now := time.Now().UTC()
	if _, err := s.UpdateTask(task.ID, TaskUpdate{Status: &done, CompletedAt: &now}); err != nil {
		t.Fatalf("UpdateTask done: %v", err)
	}

	todo := StatusTodo
	updated, err := s.UpdateTask(task.ID, TaskUpdate{Status: &todo, ClearCompletedAt: true})
	if err != nil {
		t.Fatalf("UpdateTask todo: %v", err)
	}
	if updated.CompletedAt != nil {
		t.Errorf("completed_at = %v, want nil", updated.CompletedAt)
	}
}

func TestListTasksFilters(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "FLT")
	st := makeStory(t, s, &p.ID)
	makeTask(t, s, &p.ID, &st.ID)
	makeTask(t, s, &p.ID, nil)
	makeTask(t, s, nil, nil)

	byStory, total, err := s.ListTasks(TaskFilter{StoryID: st.ID}, 20, 0, "")
	if err != nil {
		t.Fatalf("ListTasks by story: %v", err)
	}
	if total != 1 || len(byStory) != 1 {
		t.Errorf("by story = %d/%d, want 1/1", len(byStory), total)
	}

	byProject, total, err := s.ListTasks(TaskFilter{ProjectID: p.ID}, 20, 0, "")
	if err != nil {
		t.Fatalf("ListTasks by project: %v", err)
	}
	if total != 2 || len(byProject) != 2 {
		t.Errorf("by project = %d/%d, want 2/2", len(byProject), total)
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "ASN")
	task := makeTask(t, s, &p.ID, nil)
	agent := makeAgent(t, s, "worker-1")

	now := time.Now().UTC()
	a := &TaskAssignment{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		AgentID:    agent.ID,
		AssignedAt: now,
	}
	if err := s.CreateAssignment(a); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	active, err := s.ActiveAssignment(task.ID)
	if err != nil {
		t.Fatalf("ActiveAssignment: %v", err)
	}
	if active == nil || active.AgentID != agent.ID {
		t.Fatalf("active = %+v, want agent %s", active, agent.ID)
	}

	// A second open assignment for the same task violates the partial
	// unique index.
	dup := &TaskAssignment{ID: uuid.NewString(), TaskID: task.ID, AgentID: agent.ID, AssignedAt: now}
	if err := s.CreateAssignment(dup); err == nil {
		t.Error("expected second active assignment to fail")
	}

	if err := s.CloseAssignment(task.ID, now); err != nil {
		t.Fatalf("CloseAssignment: %v", err)
	}
	active, err = s.ActiveAssignment(task.ID)
	if err != nil {
		t.Fatalf("ActiveAssignment after close: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active assignment, got %+v", active)
	}

	// Closed history row stays; a new open assignment is allowed again.
	next := &TaskAssignment{ID: uuid.NewString(), TaskID: task.ID, AgentID: agent.ID, AssignedAt: now}
	if err := s.CreateAssignment(next); err != nil {
		t.Fatalf("CreateAssignment after close: %v", err)
	}
	history, err := s.ListAssignments(task.ID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history = %d rows, want 2", len(history))
	}
}

func TestTaskLabelAttachDetach(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "TLB")
	task := makeTask(t, s, &p.ID, nil)

	now := time.Now().UTC()
	label := &Label{ID: uuid.NewString(), ProjectID: &p.ID, Name: "urgent", CreatedAt: now}
	if err := s.CreateLabel(label); err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}

	if err := s.AttachTaskLabel(task.ID, label.ID); err != nil {
		t.Fatalf("AttachTaskLabel: %v", err)
	}
	attached, err := s.TaskLabelAttached(task.ID, label.ID)
	if err != nil {
		t.Fatalf("TaskLabelAttached: %v", err)
	}
	if !attached {
		t.Error("expected label to be attached")
	}

	labels, err := s.TaskLabels(task.ID)
	if err != nil {
		t.Fatalf("TaskLabels: %v", err)
	}
	if len(labels) != 1 || labels[0].Name != "urgent" {
		t.Errorf("labels = %+v, want [urgent]", labels)
	}

	removed, err := s.DetachTaskLabel(task.ID, label.ID)
	if err != nil {
		t.Fatalf("DetachTaskLabel: %v", err)
	}
	if !removed {
		t.Error("expected detach to report true")
	}
	removed, _ = s.DetachTaskLabel(task.ID, label.ID)
	if removed {
		t.Error("expected second detach to report false")
	}
}

func TestDeleteStoryClearsTaskParent(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "ORP")
	st := makeStory(t, s, &p.ID)
	task := makeTask(t, s, &p.ID, &st.ID)

	if _, err := s.DeleteStory(st.ID); err != nil {
		t.Fatalf("DeleteStory: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil {
		t.Fatal("task should survive story deletion")
	}
	if got.StoryID != nil {
		t.Errorf("story_id = %v, want nil", *got.StoryID)
	}
}
