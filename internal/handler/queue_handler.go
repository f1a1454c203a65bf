package handler

import (
	"errors"
	"net/http"

	"go-gin-waiting-room/internal/service"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueueHandler struct {
	service service.QueueService
}

func NewQueueHandler(service service.QueueService) *QueueHandler {
	return &QueueHandler{service: service}
}

func (h *QueueHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1", auth)
	{
		router.POST("events/:uuid/queue", h.Join)
		router.GET("events/:uuid/queue", h.Status)
		router.POST("events/:uuid/queue/window", h.GrantWindow)
		router.DELETE("events/:uuid/queue", h.Leave)
	}
}

func (h *QueueHandler) Join(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pos, err := h.service.Join(c, eventID, userID)
	if err != nil {
		h.handleError(c, err, "Join")
		return
	}
	c.JSON(http.StatusOK, pos)
}

// Status 目前位置與已發放的時窗，不會發放新時窗
func (h *QueueHandler) Status(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c, eventID, userID)
	if err != nil {
		h.handleError(c, err, "Status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// GrantWindow 輪到的使用者領取購買時窗；已有時窗時回傳原本的
func (h *QueueHandler) GrantWindow(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	window, err := h.service.GrantWindow(c, eventID, userID)
	if err != nil {
		h.handleError(c, err, "GrantWindow")
		return
	}
	c.JSON(http.StatusOK, window)
}

func (h *QueueHandler) Leave(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Leave(c, eventID, userID); err != nil {
		h.handleError(c, err, "Leave")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrNotInQueue):
		log.Warn("Not in queue")
		c.JSON(http.StatusNotFound, gin.H{"error": "Not in queue"})
	case errors.Is(err, apperrors.ErrSalesNotOpen):
		log.Warn("Sales not open")
		c.JSON(http.StatusForbidden, gin.H{"error": "Sales are not open yet"})
	case errors.Is(err, apperrors.ErrNotAdmitted):
		log.Warn("Not admitted")
		c.JSON(http.StatusForbidden, gin.H{"error": "Not admitted yet"})
	case errors.Is(err, apperrors.ErrSalesStartMissing):
		log.Warn("Sales start missing")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Sales start time is not configured"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
