package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Backlog ordering. Positions for each item kind form a dense zero-based
// sequence per backlog: after any add, remove or reorder the set of
// positions is exactly {0..n-1}.

// PositionAssignment pairs an item with its target position in a reorder.
type PositionAssignment struct {
	ItemID   string `json:"item_id"`
	Position int    `json:"position"`
}

// AddStoryItem inserts a story into a backlog at the requested position.
// Out-of-range positions are clamped: negative to the front, past-the-end to
// an append. Items at or after the target shift up by one. Returns the
// membership row with the position actually assigned.
func (s *Store) AddStoryItem(backlogID, storyID string, position int) (*BacklogItem, error) {
	return s.addItem("backlog_stories", "story_id", backlogID, storyID, position)
}

// AddTaskItem is AddStoryItem for the task kind.
func (s *Store) AddTaskItem(backlogID, taskID string, position int) (*BacklogItem, error) {
	return s.addItem("backlog_tasks", "task_id", backlogID, taskID, position)
}

func (s *Store) addItem(table, idCol, backlogID, itemID string, position int) (*BacklogItem, error) {
	now := time.Now().UTC()
	item := &BacklogItem{BacklogID: backlogID, ItemID: itemID, AddedAt: now}

	err := s.inTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM `+table+` WHERE backlog_id = ?`, backlogID,
		).Scan(&count); err != nil {
			return fmt.Errorf("count items: %w", err)
		}

		if position < 0 {
			position = 0
		}
		if position > count {
			position = count
		}

		// Make room: shift everything at or after the target up by one.
		if _, err := tx.Exec(
			`UPDATE `+table+` SET position = position + 1 WHERE backlog_id = ? AND position >= ?`,
			backlogID, position,
		); err != nil {
			return fmt.Errorf("shift up: %w", err)
		}

		if _, err := tx.Exec(
			`INSERT INTO `+table+` (backlog_id, `+idCol+`, position, added_at) VALUES (?, ?, ?, ?)`,
			backlogID, itemID, position, now,
		); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		item.Position = position
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveStoryItem removes a story from a backlog and closes the position
// gap. Returns false when the story isn't a member.
func (s *Store) RemoveStoryItem(backlogID, storyID string) (bool, error) {
	return s.removeItem("backlog_stories", "story_id", backlogID, storyID)
}

// RemoveTaskItem is RemoveStoryItem for the task kind.
func (s *Store) RemoveTaskItem(backlogID, taskID string) (bool, error) {
	return s.removeItem("backlog_tasks", "task_id", backlogID, taskID)
}

func (s *Store) removeItem(table, idCol, backlogID, itemID string) (bool, error) {
	removed := false
	err := s.inTx(func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRow(
			`SELECT position FROM `+table+` WHERE backlog_id = ? AND `+idCol+` = ?`,
			backlogID, itemID,
		).Scan(&position)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("item position: %w", err)
		}

		if _, err := tx.Exec(
			`DELETE FROM `+table+` WHERE backlog_id = ? AND `+idCol+` = ?`,
			backlogID, itemID,
		); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}

		// Close the gap left behind.
		if _, err := tx.Exec(
			`UPDATE `+table+` SET position = position - 1 WHERE backlog_id = ? AND position > ?`,
			backlogID, position,
		); err != nil {
			return fmt.Errorf("shift down: %w", err)
		}

		removed = true
		return nil
	})
	return removed, err
}

// ReorderItems rewrites the positions of both item kinds in one transaction.
// Callers validate the assignments (full set per kind, no duplicates,
// contiguous positions, membership) before calling; the writes here are
// all-or-nothing. Returns the number of story and task rows updated.
func (s *Store) ReorderItems(backlogID string, stories, tasks []PositionAssignment) (int, int, error) {
	var storyCount, taskCount int
	err := s.inTx(func(tx *sql.Tx) error {
		for _, a := range stories {
			res, err := tx.Exec(
				`UPDATE backlog_stories SET position = ? WHERE backlog_id = ? AND story_id = ?`,
				a.Position, backlogID, a.ItemID,
			)
			if err != nil {
				return fmt.Errorf("reorder story %s: %w", a.ItemID, err)
			}
			n, _ := res.RowsAffected()
			storyCount += int(n)
		}
		for _, a := range tasks {
			res, err := tx.Exec(
				`UPDATE backlog_tasks SET position = ? WHERE backlog_id = ? AND task_id = ?`,
				a.Position, backlogID, a.ItemID,
			)
			if err != nil {
				return fmt.Errorf("reorder task %s: %w", a.ItemID, err)
			}
			n, _ := res.RowsAffected()
			taskCount += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return storyCount, taskCount, nil
}

// StoryPositions returns story id → position for a backlog. Test and
// invariant-check helper.
func (s *Store) StoryPositions(backlogID string) (map[string]int, error) {
	return s.positions("backlog_stories", "story_id", backlogID)
}

// TaskPositions returns task id → position for a backlog.
func (s *Store) TaskPositions(backlogID string) (map[string]int, error) {
	return s.positions("backlog_tasks", "task_id", backlogID)
}

func (s *Store) positions(table, idCol, backlogID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT `+idCol+`, position FROM `+table+` WHERE backlog_id = ?`, backlogID,
	)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out[id] = pos
	}
	return out, rows.Err()
}
