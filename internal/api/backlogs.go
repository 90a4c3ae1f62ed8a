package api

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/apperr"
	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
)

type createBacklogRequest struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	ProjectID *string `json:"project_id"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Actor     *string `json:"actor"`
}

func (s *Server) createBacklog(c *gin.Context) {
	var req createBacklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	backlog, err := s.planning.CreateBacklog(planning.CreateBacklogParams{
		Name:      req.Name,
		Kind:      req.Kind,
		ProjectID: req.ProjectID,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Actor:     req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, backlog)
}

func (s *Server) listBacklogs(c *gin.Context) {
	limit, offset := pageParams(c)
	f := store.BacklogFilter{
		Status: c.Query("status"),
		Kind:   c.Query("kind"),
	}
	// project_id=null selects the global backlogs.
	if projectID := c.Query("project_id"); projectID == "null" {
		f.FilterGlobal = true
	} else {
		f.ProjectID = projectID
	}
	backlogs, total, err := s.planning.ListBacklogs(f, limit, offset, c.Query("sort"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondList(c, backlogs, total, limit, offset)
}

func (s *Server) getBacklog(c *gin.Context) {
	backlog, storyCount, taskCount, err := s.planning.GetBacklog(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondMeta(c, http.StatusOK, backlog, gin.H{
		"story_count": storyCount,
		"task_count":  taskCount,
	})
}

type updateBacklogRequest struct {
	Name      *string `json:"name"`
	Status    *string `json:"status"`
	IsDefault *bool   `json:"is_default"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Actor     *string `json:"actor"`
}

func (s *Server) updateBacklog(c *gin.Context) {
	var req updateBacklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	backlog, err := s.planning.UpdateBacklog(c.Param("id"), planning.BacklogPatch{
		Name:      req.Name,
		Status:    req.Status,
		IsDefault: req.IsDefault,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Actor:     req.Actor,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, backlog)
}

func (s *Server) deleteBacklog(c *gin.Context) {
	if err := s.planning.DeleteBacklog(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) backlogStories(c *gin.Context) {
	stories, err := s.planning.BacklogStories(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, stories)
}

func (s *Server) backlogTasks(c *gin.Context) {
	tasks, err := s.planning.BacklogTasks(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, tasks)
}

type addStoryRequest struct {
	StoryID  string `json:"story_id"`
	Position *int   `json:"position"`
}

func (s *Server) addBacklogStory(c *gin.Context) {
	var req addStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	position := math.MaxInt32 // append unless a position is given
	if req.Position != nil {
		position = *req.Position
	}
	item, err := s.planning.AddStory(c.Param("id"), req.StoryID, position)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"backlog_id": item.BacklogID,
		"story_id":   item.ItemID,
		"position":   item.Position,
		"added_at":   item.AddedAt,
	})
}

func (s *Server) removeBacklogStory(c *gin.Context) {
	if err := s.planning.RemoveStory(c.Param("id"), c.Param("story_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addTaskRequest struct {
	TaskID   string `json:"task_id"`
	Position *int   `json:"position"`
}

func (s *Server) addBacklogTask(c *gin.Context) {
	var req addTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}
	position := math.MaxInt32
	if req.Position != nil {
		position = *req.Position
	}
	item, err := s.planning.AddTask(c.Param("id"), req.TaskID, position)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"backlog_id": item.BacklogID,
		"task_id":    item.ItemID,
		"position":   item.Position,
		"added_at":   item.AddedAt,
	})
}

func (s *Server) removeBacklogTask(c *gin.Context) {
	if err := s.planning.RemoveTask(c.Param("id"), c.Param("task_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	Stories []struct {
		StoryID  string `json:"story_id"`
		Position int    `json:"position"`
	} `json:"stories"`
	Tasks []struct {
		TaskID   string `json:"task_id"`
		Position int    `json:"position"`
	} `json:"tasks"`
}

func (s *Server) reorderBacklog(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c)
		return
	}

	var stories, tasks []store.PositionAssignment
	for _, item := range req.Stories {
		stories = append(stories, store.PositionAssignment{ItemID: item.StoryID, Position: item.Position})
	}
	for _, item := range req.Tasks {
		tasks = append(tasks, store.PositionAssignment{ItemID: item.TaskID, Position: item.Position})
	}

	storyCount, taskCount, err := s.planning.Reorder(c.Param("id"), stories, tasks)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"updated_story_count": storyCount,
		"updated_task_count":  taskCount,
	})
}

func (s *Server) activeSprint(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		s.fail(c, apperr.Validation("project_id query parameter is required"))
		return
	}
	sprint, err := s.planning.ActiveSprint(projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	stories, err := s.planning.BacklogStories(sprint.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"backlog": sprint,
		"stories": stories,
	})
}
