package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/store"
)

// ListAgents returns a page of agents and the total count.
func (s *Service) ListAgents(f store.AgentFilter, limit, offset int, sort string) ([]store.Agent, int, error) {
	limit, offset = clampPage(limit, offset)
	agents, total, err := s.store.ListAgents(f, limit, offset, sort)
	if err != nil {
		return nil, 0, fmt.Errorf("list agents: %w", err)
	}
	return agents, total, nil
}

// GetAgent returns an agent by ID.
func (s *Service) GetAgent(id string) (*store.Agent, error) {
	a, err := s.store.GetAgent(id)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if a == nil {
		return nil, apperr.NotFound("Agent %s not found", id)
	}
	return a, nil
}

// CreateAgentParams are the inputs for CreateAgent.
type CreateAgentParams struct {
	OpenclawKey string
	Name        string
	Role        *string
	WorkerType  *string
}

// CreateAgent registers an agent. The openclaw key is unique across agents.
func (s *Service) CreateAgent(p CreateAgentParams) (*store.Agent, error) {
	if p.OpenclawKey == "" {
		return nil, apperr.Validation("Agent openclaw_key is required")
	}
	if p.Name == "" {
		return nil, apperr.Validation("Agent name is required")
	}

	taken, err := s.store.AgentKeyExists(p.OpenclawKey)
	if err != nil {
		return nil, fmt.Errorf("check agent key: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Agent with openclaw_key '%s' already exists", p.OpenclawKey)
	}

	now := time.Now().UTC()
	a := &store.Agent{
		ID:          uuid.NewString(),
		OpenclawKey: p.OpenclawKey,
		Name:        p.Name,
		Role:        p.Role,
		WorkerType:  p.WorkerType,
		IsActive:    true,
		Source:      store.SourceManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateAgent(a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

// AgentPatch carries the updatable agent fields.
type AgentPatch struct {
	Name       *string
	Role       *string
	WorkerType *string
	IsActive   *bool
}

// UpdateAgent applies a partial update to an agent.
func (s *Service) UpdateAgent(id string, patch AgentPatch) (*store.Agent, error) {
	updated, err := s.store.UpdateAgent(id, store.AgentUpdate{
		Name:       patch.Name,
		Role:       patch.Role,
		WorkerType: patch.WorkerType,
		IsActive:   patch.IsActive,
	})
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Agent %s not found", id)
	}
	return updated, nil
}

// DeleteAgent removes an agent and its assignment history.
func (s *Service) DeleteAgent(id string) error {
	deleted, err := s.store.DeleteAgent(id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if !deleted {
		return apperr.NotFound("Agent %s not found", id)
	}
	return nil
}
