package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/apperr"
)

func (s *Server) requireBoard(c *gin.Context) bool {
	if s.board == nil {
		s.fail(c, apperr.NotFound("Workflow root is not configured"))
		return false
	}
	return true
}

func (s *Server) workflowStories(c *gin.Context) {
	if !s.requireBoard(c) {
		return
	}
	stories, err := s.board.ListStories()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (s *Server) workflowStory(c *gin.Context) {
	if !s.requireBoard(c) {
		return
	}
	story, tasks, err := s.board.GetStory(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if story == nil {
		s.fail(c, apperr.NotFound("Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": story, "tasks": tasks})
}

func (s *Server) workflowBoard(c *gin.Context) {
	if !s.requireBoard(c) {
		return
	}
	stories, tasks, err := s.board.Snapshot()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories, "tasks": tasks})
}

func (s *Server) workflowTask(c *gin.Context) {
	if !s.requireBoard(c) {
		return
	}
	task := s.board.GetTask(c.Param("story_id"), c.Param("task_id"))
	if task == nil {
		s.fail(c, apperr.NotFound("Task not found"))
		return
	}
	results := s.board.TaskResults(c.Param("story_id"), c.Param("task_id"))
	c.JSON(http.StatusOK, gin.H{"task": task, "results": results})
}

func (s *Server) workflowAgents(c *gin.Context) {
	if !s.requireBoard(c) {
		return
	}
	statuses, err := s.board.AgentStatuses()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": statuses})
}
