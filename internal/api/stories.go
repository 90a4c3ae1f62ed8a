package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

type createStoryRequest struct {
	Title       string  `json:"title"`
	StoryType   string  `json:"story_type"`
	ProjectID   *string `json:"project_id"`
	EpicID      *string `json:"epic_id"`
	Intent      *string `json:"intent"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
	Actor       *string `json:"actor"`
}

func (s *Server) createStory(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	story, err := s.planning.CreateStory(planning.CreateStoryParams{
		Title:       req.Title,
		StoryType:   req.StoryType,
		ProjectID:   req.ProjectID,
		EpicID:      req.EpicID,
		Intent:      req.Intent,
		Description: req.Description,
		Priority:    req.Priority,
		Actor:       req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, story)
}

func (s *Server) listStories(c *gin.Context) {
	limit, offset := pageParams(c)
	stories, total, err := s.planning.ListStories(store.StoryFilter{
		Key:       c.Query("key"),
		ProjectID: c.Query("project_id"),
		EpicID:    c.Query("epic_id"),
		Status:    c.Query("status"),
	}, limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, stories, total, limit, offset)
}

func (s *Server) getStory(c *gin.Context) {
	story, taskCount, err := s.planning.GetStory(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondMeta(c, http.StatusOK, story, gin.H{"task_count": taskCount})
}

func (s *Server) getStoryByKey(c *gin.Context) {
	story, taskCount, err := s.planning.GetStoryByKey(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondMeta(c, http.StatusOK, story, gin.H{"task_count": taskCount})
}

type updateStoryRequest struct {
	EpicID        *string `json:"epic_id"`
	Title         *string `json:"title"`
	Intent        *string `json:"intent"`
	Description   *string `json:"description"`
	StoryType     *string `json:"story_type"`
	Status        *string `json:"status"`
	IsBlocked     *bool   `json:"is_blocked"`
	BlockedReason *string `json:"blocked_reason"`
	Priority      *int    `json:"priority"`
	Actor         *string `json:"actor"`
}

func (s *Server) updateStory(c *gin.Context) {
	var req updateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	story, err := s.planning.UpdateStory(c.Param("id"), planning.StoryPatch{
		EpicID:        req.EpicID,
		Title:         req.Title,
		Intent:        req.Intent,
		Description:   req.Description,
		StoryType:     req.StoryType,
		Status:        req.Status,
		IsBlocked:     req.IsBlocked,
		BlockedReason: req.BlockedReason,
		Priority:      req.Priority,
		Actor:         req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, story)
}

func (s *Server) deleteStory(c *gin.Context) {
	if err := s.planning.DeleteStory(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) storyLabels(c *gin.Context) {
	labels, err := s.planning.StoryLabels(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, labels)
}

type attachLabelRequest struct {
	LabelID string `json:"label_id"`
}

func (s *Server) attachStoryLabel(c *gin.Context) {
	var req attachLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	if err := s.planning.AttachStoryLabel(c.Param("id"), req.LabelID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"story_id": c.Param("id"), "label_id": req.LabelID})
}

func (s *Server) detachStoryLabel(c *gin.Context) {
	if err := s.planning.DetachStoryLabel(c.Param("id"), c.Param("label_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
