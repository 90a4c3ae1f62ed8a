// Package planning implements the business rules for projects, epics,
// stories, tasks, labels, agents and backlogs on top of the store.
package planning

import (
	"log/slog"

	"github.com/openclaw/mission-control/internal/store"
)

// Service enforces existence, uniqueness and ordering rules, and runs the
// story status derivation engine. All methods return apperr errors.
type Service struct {
	store *store.Store
	log   *slog.Logger
}

// NewService creates a planning service over the given store.
func NewService(s *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, log: log}
}

// clampPage normalizes limit/offset to the API defaults (limit 20, max 100).
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
