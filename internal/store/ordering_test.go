package store

import (
	"sort"
	"testing"
)

// assertDense checks that the positions form exactly {0..n-1}.
func assertDense(t *testing.T, positions map[string]int) {
	t.Helper()
	seen := make([]int, 0, len(positions))
	for _, p := range positions {
		seen = append(seen, p)
	}
	sort.Ints(seen)
	for i, p := range seen {
		if p != i {
			t.Fatalf("positions not dense: %v", seen)
		}
	}
}

func TestAddStoryItemAppends(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "ORD")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	for i := 0; i < 3; i++ {
		st := makeStory(t, s, &p.ID)
		item, err := s.AddStoryItem(b.ID, st.ID, i)
		if err != nil {
			t.Fatalf("AddStoryItem: %v", err)
		}
		if item.Position != i {
			t.Errorf("position = %d, want %d", item.Position, i)
		}
	}

	positions, err := s.StoryPositions(b.ID)
	if err != nil {
		t.Fatalf("StoryPositions: %v", err)
	}
	assertDense(t, positions)
}

func TestAddStoryItemShiftsExisting(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "SHF")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	first := makeStory(t, s, &p.ID)
	second := makeStory(t, s, &p.ID)

	if _, err := s.AddStoryItem(b.ID, first.ID, 0); err != nil {
		t.Fatalf("add first: %v", err)
	}
	item, err := s.AddStoryItem(b.ID, second.ID, 0)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if item.Position != 0 {
		t.Errorf("second position = %d, want 0", item.Position)
	}

	positions, _ := s.StoryPositions(b.ID)
	if positions[first.ID] != 1 {
		t.Errorf("first shifted to %d, want 1", positions[first.ID])
	}
	if positions[second.ID] != 0 {
		t.Errorf("second at %d, want 0", positions[second.ID])
	}
	assertDense(t, positions)
}

func TestAddStoryItemClampsOutOfRange(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "CLP")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	a := makeStory(t, s, &p.ID)
	if _, err := s.AddStoryItem(b.ID, a.ID, 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Far past the end: silently appended, never an error.
	over := makeStory(t, s, &p.ID)
	item, err := s.AddStoryItem(b.ID, over.ID, 99)
	if err != nil {
		t.Fatalf("add overflow: %v", err)
	}
	if item.Position != 1 {
		t.Errorf("overflow position = %d, want 1", item.Position)
	}

	// Negative: clamped to the front.
	neg := makeStory(t, s, &p.ID)
	item, err = s.AddStoryItem(b.ID, neg.ID, -5)
	if err != nil {
		t.Fatalf("add negative: %v", err)
	}
	if item.Position != 0 {
		t.Errorf("negative position = %d, want 0", item.Position)
	}

	positions, _ := s.StoryPositions(b.ID)
	assertDense(t, positions)
}

func TestRemoveStoryItemClosesGap(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "REM")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	var ids []string
	for i := 0; i < 4; i++ {
		st := makeStory(t, s, &p.ID)
		ids = append(ids, st.ID)
		if _, err := s.AddStoryItem(b.ID, st.ID, i); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Remove the middle item; everything after shifts down.
	removed, err := s.RemoveStoryItem(b.ID, ids[1])
	if err != nil {
		t.Fatalf("RemoveStoryItem: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}

	positions, _ := s.StoryPositions(b.ID)
	assertDense(t, positions)
	if positions[ids[0]] != 0 || positions[ids[2]] != 1 || positions[ids[3]] != 2 {
		t.Errorf("unexpected positions after remove: %v", positions)
	}
}

func TestRemoveStoryItemNotMember(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "NMB")
	b := makeBacklog(t, s, &p.ID, KindBacklog)
	st := makeStory(t, s, &p.ID)

	removed, err := s.RemoveStoryItem(b.ID, st.ID)
	if err != nil {
		t.Fatalf("RemoveStoryItem: %v", err)
	}
	if removed {
		t.Error("expected false for non-member")
	}
}

func TestReorderItems(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "REO")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	var ids []string
	for i := 0; i < 3; i++ {
		st := makeStory(t, s, &p.ID)
		ids = append(ids, st.ID)
		if _, err := s.AddStoryItem(b.ID, st.ID, i); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Reverse the order.
	updatedStories, updatedTasks, err := s.ReorderItems(b.ID, []PositionAssignment{
		{ItemID: ids[0], Position: 2},
		{ItemID: ids[1], Position: 1},
		{ItemID: ids[2], Position: 0},
	}, nil)
	if err != nil {
		t.Fatalf("ReorderItems: %v", err)
	}
	if updatedStories != 3 || updatedTasks != 0 {
		t.Errorf("updated = (%d, %d), want (3, 0)", updatedStories, updatedTasks)
	}

	positions, _ := s.StoryPositions(b.ID)
	assertDense(t, positions)
	if positions[ids[0]] != 2 || positions[ids[2]] != 0 {
		t.Errorf("unexpected positions after reorder: %v", positions)
	}
}

func TestTaskOrderingIndependentOfStories(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "IND")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	st := makeStory(t, s, &p.ID)
	if _, err := s.AddStoryItem(b.ID, st.ID, 0); err != nil {
		t.Fatalf("add story: %v", err)
	}

	task := makeTask(t, s, &p.ID, nil)
	item, err := s.AddTaskItem(b.ID, task.ID, 0)
	if err != nil {
		t.Fatalf("AddTaskItem: %v", err)
	}
	if item.Position != 0 {
		t.Errorf("task position = %d, want 0 (kinds don't share a sequence)", item.Position)
	}

	storyPositions, _ := s.StoryPositions(b.ID)
	if storyPositions[st.ID] != 0 {
		t.Errorf("story moved by task insert: %v", storyPositions)
	}
}

func TestSingleMembershipConstraint(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "MEM")
	b1 := makeBacklog(t, s, &p.ID, KindBacklog)
	b2 := makeBacklog(t, s, &p.ID, KindBacklog)
	st := makeStory(t, s, &p.ID)

	if _, err := s.AddStoryItem(b1.ID, st.ID, 0); err != nil {
		t.Fatalf("add to b1: %v", err)
	}
	if _, err := s.AddStoryItem(b2.ID, st.ID, 0); err == nil {
		t.Error("expected unique constraint violation for second membership")
	}

	got, err := s.StoryBacklogID(st.ID)
	if err != nil {
		t.Fatalf("StoryBacklogID: %v", err)
	}
	if got != b1.ID {
		t.Errorf("StoryBacklogID = %q, want %q", got, b1.ID)
	}
}

func TestDensityAfterMixedOperations(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "MIX")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	var ids []string
	for i := 0; i < 5; i++ {
		st := makeStory(t, s, &p.ID)
		ids = append(ids, st.ID)
	}

	s.AddStoryItem(b.ID, ids[0], 0)
	s.AddStoryItem(b.ID, ids[1], 0)
	s.AddStoryItem(b.ID, ids[2], 1)
	s.RemoveStoryItem(b.ID, ids[0])
	s.AddStoryItem(b.ID, ids[3], 50)
	s.AddStoryItem(b.ID, ids[4], -1)
	s.RemoveStoryItem(b.ID, ids[2])

	positions, err := s.StoryPositions(b.ID)
	if err != nil {
		t.Fatalf("StoryPositions: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("membership = %d, want 3", len(positions))
	}
	assertDense(t, positions)
}

func TestListBacklogStoriesOrdered(t *testing.T) {
	s := testStore(t)
	p := makeProject(t, s, "LST")
	b := makeBacklog(t, s, &p.ID, KindBacklog)

	first := makeStory(t, s, &p.ID)
	second := makeStory(t, s, &p.ID)
	s.AddStoryItem(b.ID, first.ID, 0)
	s.AddStoryItem(b.ID, second.ID, 0)

	ordered, err := s.ListBacklogStories(b.ID)
	if err != nil {
		t.Fatalf("ListBacklogStories: %v", err)
	}
	if len(ordered) != 2 {
		t.Fatalf("len = %d, want 2", len(ordered))
	}
	if ordered[0].ID != second.ID || ordered[0].Position != 0 {
		t.Errorf("first row = %s@%d, want %s@0", ordered[0].ID, ordered[0].Position, second.ID)
	}
	if ordered[1].ID != first.ID || ordered[1].Position != 1 {
		t.Errorf("second row = %s@%d, want %s@1", ordered[1].ID, ordered[1].Position, first.ID)
	}
}
