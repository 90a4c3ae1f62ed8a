package store

import "strings"

const defaultOrder = "created_at DESC"

// Per-entity sortable column allow-lists. Anything outside the list is
// silently dropped so user input never reaches the ORDER BY clause raw.
var (
	projectSortFields = map[string]bool{"created_at": true, "updated_at": true, "name": true, "key": true, "status": true}
	epicSortFields    = map[string]bool{"created_at": true, "updated_at": true, "title": true, "key": true, "status": true, "priority": true}
	storySortFields   = map[string]bool{"created_at": true, "updated_at": true, "title": true, "key": true, "status": true, "priority": true}
	taskSortFields    = map[string]bool{"created_at": true, "updated_at": true, "title": true, "key": true, "status": true, "priority": true, "due_at": true}
	backlogSortFields = map[string]bool{"created_at": true, "updated_at": true, "name": true, "kind": true, "status": true}
	agentSortFields   = map[string]bool{"created_at": true, "updated_at": true, "name": true, "openclaw_key": true}
)

// parseSort converts a comma-separated sort expression like "-created_at,name"
// into an ORDER BY fragment. Unknown fields are dropped; an empty result
// falls back to created_at DESC.
func parseSort(raw string, allowed map[string]bool) string {
	var clauses []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(token, "-") {
			dir = "DESC"
			token = token[1:]
		}
		if !allowed[token] {
			continue
		}
		clauses = append(clauses, token+" "+dir)
	}
	if len(clauses) == 0 {
		return defaultOrder
	}
	return strings.Join(clauses, ", ")
}
