package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tiny-backspace/internal/dispatch"
	"tiny-backspace/internal/eventstore"
)

type codeRequest struct {
	RepoURL string `json:"repoUrl" binding:"required"`
	Prompt  string `json:"prompt" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCode is the trigger endpoint. It acknowledges fast: the response
// only says whether the worker started, never how the task went.
func (s *Server) handleCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"message": "repoUrl and prompt are required",
		})
		return
	}

	sessionID, err := s.dispatcher.Dispatch(c.Request.Context(), dispatch.TaskSpec{
		RepoURL: req.RepoURL,
		Prompt:  req.Prompt,
	})
	if err != nil {
		s.metrics.dispatchFailures.Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"message": "Failed to start coding task",
		})
		return
	}
	s.metrics.dispatches.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sessionID,
		"message":   "Coding task started; follow the session stream for progress",
		"status":    "processing",
	})
}

func (s *Server) handleSessionEvents(c *gin.Context) {
	sessionID := c.Param("id")
	events, err := s.store.ListBySession(c.Request.Context(), sessionID, queryLimit(c, 0))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sessionID,
		"events":    events,
	})
}

func (s *Server) handleRecent(c *gin.Context) {
	events, err := s.store.ListRecent(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
	})
}

func (s *Server) storeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var unavailable *eventstore.UnavailableError
	if errors.As(err, &unavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"message": "Event store request failed",
	})
}

func queryLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
