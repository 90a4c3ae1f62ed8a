package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

type createTaskRequest struct {
	Title          string   `json:"title"`
	TaskType       string   `json:"task_type"`
	ProjectID      *string  `json:"project_id"`
	StoryID        *string  `json:"story_id"`
	Objective      *string  `json:"objective"`
	Description    *string  `json:"description"`
	Priority       *int     `json:"priority"`
	EstimatePoints *float64 `json:"estimate_points"`
	DueAt          *string  `json:"due_at"`
	Actor          *string  `json:"actor"`
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	task, err := s.planning.CreateTask(planning.CreateTaskParams{
		Title:          req.Title,
		TaskType:       req.TaskType,
		ProjectID:      req.ProjectID,
		StoryID:        req.StoryID,
		Objective:      req.Objective,
		Description:    req.Description,
		Priority:       req.Priority,
		EstimatePoints: req.EstimatePoints,
		DueAt:          req.DueAt,
		Actor:          req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, task)
}

func (s *Server) listTasks(c *gin.Context) {
	limit, offset := pageParams(c)
	tasks, total, err := s.planning.ListTasks(store.TaskFilter{
		Key:        c.Query("key"),
		ProjectID:  c.Query("project_id"),
		StoryID:    c.Query("story_id"),
		Status:     c.Query("status"),
		AssigneeID: c.Query("assignee_agent_id"),
	}, limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, tasks, total, limit, offset)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.planning.GetTask(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, task)
}

type updateTaskRequest struct {
	StoryID        *string  `json:"story_id"`
	Title          *string  `json:"title"`
	Objective      *string  `json:"objective"`
	Description    *string  `json:"description"`
	TaskType       *string  `json:"task_type"`
	Status         *string  `json:"status"`
	IsBlocked      *bool    `json:"is_blocked"`
	BlockedReason  *string  `json:"blocked_reason"`
	Priority       *int     `json:"priority"`
	EstimatePoints *float64 `json:"estimate_points"`
	DueAt          *string  `json:"due_at"`
	Actor          *string  `json:"actor"`
}

func (s *Server) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	task, err := s.planning.UpdateTask(c.Param("id"), planning.TaskPatch{
		StoryID:        req.StoryID,
		Title:          req.Title,
		Objective:      req.Objective,
		Description:    req.Description,
		TaskType:       req.TaskType,
		Status:         req.Status,
		IsBlocked:      req.IsBlocked,
		BlockedReason:  req.BlockedReason,
		Priority:       req.Priority,
		EstimatePoints: req.EstimatePoints,
		DueAt:          req.DueAt,
		Actor:          req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.planning.DeleteTask(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) taskLabels(c *gin.Context) {
	labels, err := s.planning.TaskLabels(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, labels)
}

func (s *Server) attachTaskLabel(c *gin.Context) {
	var req attachLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	if err := s.planning.AttachTaskLabel(c.Param("id"), req.LabelID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"task_id": c.Param("id"), "label_id": req.LabelID})
}

func (s *Server) detachTaskLabel(c *gin.Context) {
	if err := s.planning.DetachTaskLabel(c.Param("id"), c.Param("label_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignAgentRequest struct {
	AgentID    string  `json:"agent_id"`
	AssignedBy *string `json:"assigned_by"`
	Reason     *string `json:"reason"`
}

func (s *Server) assignAgent(c *gin.Context) {
	var req assignAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	assignment, err := s.planning.AssignAgent(c.Param("id"), req.AgentID, req.AssignedBy, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, assignment)
}

func (s *Server) unassignAgent(c *gin.Context) {
	if err := s.planning.UnassignAgent(c.Param("id"), c.Param("agent_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
