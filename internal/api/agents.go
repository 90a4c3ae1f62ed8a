package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

type createAgentRequest struct {
	OpenclawKey string  `json:"openclaw_key"`
	Name        string  `json:"name"`
	Role        *string `json:"role"`
	WorkerType  *string `json:"worker_type"`
}

func (s *Server) createAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	agent, err := s.planning.CreateAgent(planning.CreateAgentParams{
		OpenclawKey: req.OpenclawKey,
		Name:        req.Name,
		Role:        req.Role,
		WorkerType:  req.WorkerType,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, agent)
}

func (s *Server) listAgents(c *gin.Context) {
	limit, offset := pageParams(c)
	f := store.AgentFilter{Source: c.Query("source")}
	if raw := c.Query("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			f.IsActive = &active
		}
	}
	agents, total, err := s.planning.ListAgents(f, limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, agents, total, limit, offset)
}

func (s *Server) getAgent(c *gin.Context) {
	agent, err := s.planning.GetAgent(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, agent)
}

type updateAgentRequest struct {
	Name       *string `json:"name"`
	Role       *string `json:"role"`
	WorkerType *string `json:"worker_type"`
	IsActive   *bool   `json:"is_active"`
}

func (s *Server) updateAgent(c *gin.Context) {
	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	agent, err := s.planning.UpdateAgent(c.Param("id"), planning.AgentPatch{
		Name:       req.Name,
		Role:       req.Role,
		WorkerType: req.WorkerType,
		IsActive:   req.IsActive,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, agent)
}

func (s *Server) deleteAgent(c *gin.Context) {
	if err := s.planning.DeleteAgent(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
