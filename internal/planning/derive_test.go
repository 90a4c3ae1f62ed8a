package planning

import (
	"testing"

	"github.com/openclaw/mission-control/internal/store"
)

func storyState(t *testing.T, svc *Service, id string) *store.Story {
	t.Helper()
	st, _, err := svc.GetStory(id)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	return st
}

func setTaskStatus(t *testing.T, svc *Service, taskID, status string) *store.Task {
	t.Helper()
	tk, err := svc.UpdateTask(taskID, TaskPatch{Status: strp(status)})
	if err != nil {
		t.Fatalf("UpdateTask(%s): %v", status, err)
	}
	return tk
}

func TestDerivationFollowsTaskProgress(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "DRV")
	st := seedStory(t, svc, &p.ID, "story")
	t1 := seedTask(t, svc, &p.ID, &st.ID, "one")
	t2 := seedTask(t, svc, &p.ID, &st.ID, "two")

	// Fresh tasks are TODO, so the story derives to TODO.
	got := storyState(t, svc, st.ID)
	if got.Status != store.StatusTodo || got.StatusMode != store.ModeDerived {
		t.Fatalf("status %s mode %s, want TODO DERIVED", got.Status, got.StatusMode)
	}

	setTaskStatus(t, svc, t1.ID, "IN_PROGRESS")
	got = storyState(t, svc, st.ID)
	if got.Status != store.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", got.Status)
	}
	if got.StartedAt == nil {
		t.Fatal("story started_at not stamped on first task start")
	}
	firstStart := *got.StartedAt

	setTaskStatus(t, svc, t1.ID, "DONE")
	got = storyState(t, svc, st.ID)
	if got.Status != store.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS with one task open", got.Status)
	}

	setTaskStatus(t, svc, t2.ID, "DONE")
	got = storyState(t, svc, st.ID)
	if got.Status != store.StatusDone {
		t.Fatalf("status = %s, want DONE", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("story completed_at not stamped")
	}
	if !got.StartedAt.Equal(firstStart) {
		t.Fatal("story started_at changed after first stamp")
	}
}

func TestDerivationReopensCompletedStory(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "REO")
	st := seedStory(t, svc, &p.ID, "story")
	t1 := seedTask(t, svc, &p.ID, &st.ID, "one")
	t2 := seedTask(t, svc, &p.ID, &st.ID, "two")

	setTaskStatus(t, svc, t1.ID, "DONE")
	setTaskStatus(t, svc, t2.ID, "DONE")
	if got := storyState(t, svc, st.ID); got.Status != store.StatusDone {
		t.Fatalf("status = %s, want DONE", got.Status)
	}

	setTaskStatus(t, svc, t2.ID, "TODO")
	got := storyState(t, svc, st.ID)
	if got.Status != store.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS with one task still DONE", got.Status)
	}
	if got.CompletedAt != nil {
		t.Fatal("story completed_at not cleared on reopen")
	}

	setTaskStatus(t, svc, t1.ID, "TODO")
	if got := storyState(t, svc, st.ID); got.Status != store.StatusTodo {
		t.Fatalf("status = %s, want TODO with every task reset", got.Status)
	}
}

func TestDerivationOverridesManualStatus(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "MAN")
	st := seedStory(t, svc, &p.ID, "story")
	tk := seedTask(t, svc, &p.ID, &st.ID, "one")

	if _, err := svc.UpdateStory(st.ID, StoryPatch{Status: strp("DONE")}); err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}
	if got := storyState(t, svc, st.ID); got.StatusMode != store.ModeManual {
		t.Fatalf("mode = %s, want MANUAL after override", got.StatusMode)
	}

	// Any task movement puts the story back under derivation.
	setTaskStatus(t, svc, tk.ID, "IN_PROGRESS")
	got := storyState(t, svc, st.ID)
	if got.Status != store.StatusInProgress || got.StatusMode != store.ModeDerived {
		t.Fatalf("status %s mode %s, want IN_PROGRESS DERIVED", got.Status, got.StatusMode)
	}
}

func TestStoryWithoutTasksKeepsManualStatus(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "EMT")
	st := seedStory(t, svc, &p.ID, "story")

	if _, err := svc.UpdateStory(st.ID, StoryPatch{Status: strp("IN_PROGRESS")}); err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}
	got := storyState(t, svc, st.ID)
	if got.Status != store.StatusInProgress || got.StatusMode != store.ModeManual {
		t.Fatalf("status %s mode %s, want IN_PROGRESS MANUAL", got.Status, got.StatusMode)
	}
}

func TestTaskDoneSideEffects(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "EFF")
	st := seedStory(t, svc, &p.ID, "story")
	tk := seedTask(t, svc, &p.ID, &st.ID, "one")

	agent, err := svc.CreateAgent(CreateAgentParams{OpenclawKey: "amos", Name: "Amos"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if _, err := svc.AssignAgent(tk.ID, agent.ID, nil, nil); err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}

	done := setTaskStatus(t, svc, tk.ID, "DONE")
	if done.CompletedAt == nil {
		t.Fatal("task completed_at not stamped")
	}

	assignments, err := svc.TaskAssignments(tk.ID)
	if err != nil {
		t.Fatalf("TaskAssignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].UnassignedAt == nil {
		t.Fatalf("active assignment not closed on DONE: %+v", assignments)
	}

	reopened := setTaskStatus(t, svc, tk.ID, "VERIFY")
	if reopened.CompletedAt != nil {
		t.Fatal("task completed_at not cleared when leaving DONE")
	}
}

func TestTaskStartedAtStampedOnce(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "ONE")
	st := seedStory(t, svc, &p.ID, "story")
	tk := seedTask(t, svc, &p.ID, &st.ID, "one")

	started := setTaskStatus(t, svc, tk.ID, "IN_PROGRESS")
	if started.StartedAt == nil {
		t.Fatal("task started_at not stamped")
	}
	first := *started.StartedAt

	setTaskStatus(t, svc, tk.ID, "TODO")
	again := setTaskStatus(t, svc, tk.ID, "IN_PROGRESS")
	if !again.StartedAt.Equal(first) {
		t.Fatal("task started_at changed on second start")
	}
}

func TestReparentRederivesBothStories(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "MOV")
	src := seedStory(t, svc, &p.ID, "source")
	dst := seedStory(t, svc, &p.ID, "target")
	tk := seedTask(t, svc, &p.ID, &src.ID, "mover")
	anchor := seedTask(t, svc, &p.ID, &src.ID, "anchor")

	setTaskStatus(t, svc, tk.ID, "DONE")
	setTaskStatus(t, svc, anchor.ID, "DONE")
	if got := storyState(t, svc, src.ID); got.Status != store.StatusDone {
		t.Fatalf("source = %s, want DONE", got.Status)
	}

	// Moving the task leaves the source all-DONE and makes the target DONE.
	if _, err := svc.UpdateTask(tk.ID, TaskPatch{StoryID: &dst.ID}); err != nil {
		t.Fatalf("UpdateTask reparent: %v", err)
	}
	if got := storyState(t, svc, dst.ID); got.Status != store.StatusDone {
		t.Fatalf("target = %s, want DONE", got.Status)
	}
	if got := storyState(t, svc, src.ID); got.Status != store.StatusDone {
		t.Fatalf("source = %s, want DONE from its remaining task", got.Status)
	}

	// Deleting the moved task empties nothing here, but deleting the anchor
	// leaves the source without tasks and its last derived status intact.
	if err := svc.DeleteTask(anchor.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if got := storyState(t, svc, src.ID); got.Status != store.StatusDone {
		t.Fatalf("source = %s, want DONE retained with no tasks", got.Status)
	}
}

func TestAssignmentRules(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "ASG")
	tk := seedTask(t, svc, &p.ID, nil, "one")

	a1, err := svc.CreateAgent(CreateAgentParams{OpenclawKey: "naomi", Name: "Naomi"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	a2, err := svc.CreateAgent(CreateAgentParams{OpenclawKey: "alex", Name: "Alex"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	_, err = svc.AssignAgent(tk.ID, "ghost", nil, nil)
	assertCode(t, err, "VALIDATION_ERROR")

	if _, err := svc.AssignAgent(tk.ID, a1.ID, nil, nil); err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}
	_, err = svc.AssignAgent(tk.ID, a1.ID, nil, nil)
	assertCode(t, err, "CONFLICT")

	// A different agent takes over: the old assignment closes.
	if _, err := svc.AssignAgent(tk.ID, a2.ID, nil, nil); err != nil {
		t.Fatalf("AssignAgent takeover: %v", err)
	}
	assignments, err := svc.TaskAssignments(tk.ID)
	if err != nil {
		t.Fatalf("TaskAssignments: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("assignment rows = %d, want 2", len(assignments))
	}

	err = svc.UnassignAgent(tk.ID, a1.ID)
	assertCode(t, err, "NOT_FOUND")

	if err := svc.UnassignAgent(tk.ID, a2.ID); err != nil {
		t.Fatalf("UnassignAgent: %v", err)
	}
	got, err := svc.GetTask(tk.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.CurrentAssigneeAgentID != nil {
		t.Fatal("current assignee not cleared after unassign")
	}
}
