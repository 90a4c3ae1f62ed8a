package planning

import (
	"strings"
	"testing"

	"github.com/openclaw/mission-control/internal/store"
)

func seedSprint(t *testing.T, svc *Service, projectID string) *store.Backlog {
	t.Helper()
	b, err := svc.CreateBacklog(CreateBacklogParams{
		Name:      "Sprint 1",
		Kind:      string(store.KindSprint),
		ProjectID: &projectID,
	})
	if err != nil {
		t.Fatalf("CreateBacklog: %v", err)
	}
	return b
}

func defaultBacklog(t *testing.T, svc *Service, projectID string) *store.Backlog {
	t.Helper()
	backlogs, _, err := svc.ListBacklogs(store.BacklogFilter{ProjectID: projectID}, 0, 0, "")
	if err != nil {
		t.Fatalf("ListBacklogs: %v", err)
	}
	for _, b := range backlogs {
		if b.IsDefault {
			return &b
		}
	}
	t.Fatal("no default backlog")
	return nil
}

func TestAddStoryScopeRules(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "SCP")
	other := seedProject(t, svc, "OTH")
	b := defaultBacklog(t, svc, p.ID)

	global, err := svc.CreateBacklog(CreateBacklogParams{Name: "Inbox"})
	if err != nil {
		t.Fatalf("CreateBacklog global: %v", err)
	}

	projectStory := seedStory(t, svc, &p.ID, "scoped")
	foreignStory := seedStory(t, svc, &other.ID, "foreign")
	freeStory := seedStory(t, svc, nil, "free")

	_, err = svc.AddStory(global.ID, projectStory.ID, 0)
	assertCode(t, err, "BUSINESS_RULE_VIOLATION")
	if !strings.Contains(err.Error(), "project-less") {
		t.Fatalf("unexpected message: %v", err)
	}

	_, err = svc.AddStory(b.ID, foreignStory.ID, 0)
	assertCode(t, err, "BUSINESS_RULE_VIOLATION")
	_, err = svc.AddStory(b.ID, freeStory.ID, 0)
	assertCode(t, err, "BUSINESS_RULE_VIOLATION")

	if _, err := svc.AddStory(b.ID, projectStory.ID, 0); err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	if _, err := svc.AddStory(global.ID, freeStory.ID, 0); err != nil {
		t.Fatalf("AddStory global: %v", err)
	}
}

func TestAddStorySingleMembership(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "MEM")
	b := defaultBacklog(t, svc, p.ID)
	sprint := seedSprint(t, svc, p.ID)
	st := seedStory(t, svc, &p.ID, "story")

	if _, err := svc.AddStory(b.ID, st.ID, 0); err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	_, err := svc.AddStory(sprint.ID, st.ID, 0)
	assertCode(t, err, "CONFLICT")
	if !strings.Contains(err.Error(), "already belongs to backlog "+b.ID) {
		t.Fatalf("unexpected message: %v", err)
	}

	// Remove, then the sprint can take it.
	if err := svc.RemoveStory(b.ID, st.ID); err != nil {
		t.Fatalf("RemoveStory: %v", err)
	}
	if _, err := svc.AddStory(sprint.ID, st.ID, 0); err != nil {
		t.Fatalf("AddStory after remove: %v", err)
	}
}

func TestRemoveStoryNotMember(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "RMV")
	b := defaultBacklog(t, svc, p.ID)
	st := seedStory(t, svc, &p.ID, "story")

	err := svc.RemoveStory(b.ID, st.ID)
	assertCode(t, err, "NOT_FOUND")
}

func TestReorderValidation(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "ORD")
	b := defaultBacklog(t, svc, p.ID)

	ids := make([]string, 3)
	for i, title := range []string{"a", "b", "c"} {
		st := seedStory(t, svc, &p.ID, title)
		if _, err := svc.AddStory(b.ID, st.ID, i); err != nil {
			t.Fatalf("AddStory: %v", err)
		}
		ids[i] = st.ID
	}

	cases := []struct {
		name    string
		payload []store.PositionAssignment
		code    string
		message string
	}{
		{
			name: "duplicate id",
			payload: []store.PositionAssignment{
				{ItemID: ids[0], Position: 0},
				{ItemID: ids[0], Position: 1},
				{ItemID: ids[1], Position: 2},
			},
			code:    "BUSINESS_RULE_VIOLATION",
			message: "Duplicate story_id",
		},
		{
			name: "gap in positions",
			payload: []store.PositionAssignment{
				{ItemID: ids[0], Position: 0},
				{ItemID: ids[1], Position: 2},
				{ItemID: ids[2], Position: 3},
			},
			code:    "BUSINESS_RULE_VIOLATION",
			message: "contiguous starting from 0",
		},
		{
			name:    "omitted story list",
			payload: nil,
			code:    "BUSINESS_RULE_VIOLATION",
			message: "must include all 3 stories",
		},
		{
			name: "partial payload",
			payload: []store.PositionAssignment{
				{ItemID: ids[0], Position: 0},
				{ItemID: ids[1], Position: 1},
			},
			code:    "BUSINESS_RULE_VIOLATION",
			message: "must include all 3 stories",
		},
		{
			name: "unknown member",
			payload: []store.PositionAssignment{
				{ItemID: ids[0], Position: 0},
				{ItemID: ids[1], Position: 1},
				{ItemID: "missing", Position: 2},
			},
			code:    "NOT_FOUND",
			message: "is not in backlog",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Reorder(b.ID, tc.payload, nil)
			assertCode(t, err, tc.code)
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("message %q does not contain %q", err.Error(), tc.message)
			}

			// A rejected payload must leave the ordering untouched.
			stories, err := svc.BacklogStories(b.ID)
			if err != nil {
				t.Fatalf("BacklogStories: %v", err)
			}
			for i, st := range stories {
				if st.ID != ids[i] || st.Position != i {
					t.Fatalf("ordering changed after rejected reorder: %v", stories)
				}
			}
		})
	}
}

func TestReorderRewritesPositions(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "RWR")
	b := defaultBacklog(t, svc, p.ID)

	ids := make([]string, 3)
	for i, title := range []string{"a", "b", "c"} {
		st := seedStory(t, svc, &p.ID, title)
		if _, err := svc.AddStory(b.ID, st.ID, i); err != nil {
			t.Fatalf("AddStory: %v", err)
		}
		ids[i] = st.ID
	}

	storyCount, taskCount, err := svc.Reorder(b.ID, []store.PositionAssignment{
		{ItemID: ids[2], Position: 0},
		{ItemID: ids[0], Position: 1},
		{ItemID: ids[1], Position: 2},
	}, nil)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if storyCount != 3 || taskCount != 0 {
		t.Fatalf("counts = (%d, %d), want (3, 0)", storyCount, taskCount)
	}

	stories, err := svc.BacklogStories(b.ID)
	if err != nil {
		t.Fatalf("BacklogStories: %v", err)
	}
	want := []string{ids[2], ids[0], ids[1]}
	for i, st := range stories {
		if st.ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, st.ID, want[i])
		}
	}
}

func TestDefaultBacklogProtections(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "DEF")
	b := defaultBacklog(t, svc, p.ID)

	err := svc.DeleteBacklog(b.ID)
	assertCode(t, err, "BUSINESS_RULE_VIOLATION")
	if err.Error() != "Cannot delete the default backlog" {
		t.Fatalf("unexpected message: %v", err)
	}

	sprint := seedSprint(t, svc, p.ID)
	flag := true
	_, err = svc.UpdateBacklog(sprint.ID, BacklogPatch{IsDefault: &flag})
	assertCode(t, err, "BUSINESS_RULE_VIOLATION")

	if err := svc.DeleteBacklog(sprint.ID); err != nil {
		t.Fatalf("DeleteBacklog sprint: %v", err)
	}
}

func TestActiveSprint(t *testing.T) {
	svc := testService(t)
	p := seedProject(t, svc, "SPR")

	_, err := svc.ActiveSprint(p.ID)
	assertCode(t, err, "NOT_FOUND")

	sprint := seedSprint(t, svc, p.ID)
	got, err := svc.ActiveSprint(p.ID)
	if err != nil {
		t.Fatalf("ActiveSprint: %v", err)
	}
	if got.ID != sprint.ID {
		t.Fatalf("sprint = %s, want %s", got.ID, sprint.ID)
	}

	// Closing the sprint removes it from the active slot.
	if _, err := svc.UpdateBacklog(sprint.ID, BacklogPatch{Status: strp(string(store.BacklogClosed))}); err != nil {
		t.Fatalf("UpdateBacklog: %v", err)
	}
	_, err = svc.ActiveSprint(p.ID)
	assertCode(t, err, "NOT_FOUND")
}
