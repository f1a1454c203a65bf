package handler

import (
	"errors"
	"net/http"

	"go-gin-waiting-room/internal/salewindow"
	"go-gin-waiting-room/internal/service"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const snapshotBuffer = 32

// SessionHandler 以 SSE 推送使用者的開賣狀態機畫面
type SessionHandler struct {
	events   service.EventService
	queue    salewindow.Queue
	registry *salewindow.Registry
	clock    salewindow.Clock
	cfg      salewindow.Config
}

func NewSessionHandler(
	events service.EventService,
	queue salewindow.Queue,
	registry *salewindow.Registry,
	clock salewindow.Clock,
	cfg salewindow.Config,
) *SessionHandler {
	return &SessionHandler{events: events, queue: queue, registry: registry, clock: clock, cfg: cfg}
}

func (h *SessionHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1", auth)
	{
		router.GET("events/:uuid/session", h.Stream)
	}
}

func (h *SessionHandler) Stream(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	event, err := h.events.GetByEventID(c, eventID)
	if err != nil {
		h.handleError(c, err, "Stream")
		return
	}

	snaps := make(chan salewindow.Snapshot, snapshotBuffer)
	m := salewindow.NewMachine(eventID, userID, h.queue, h.clock, h.cfg, func(s salewindow.Snapshot) {
		// client 太慢時丟掉最舊的畫面，每個畫面都是完整狀態
		for {
			select {
			case snaps <- s:
				return
			default:
			}
			select {
			case <-snaps:
			default:
			}
		}
	})

	ctx := c.Request.Context()
	if err := m.Start(ctx, event.SalesStartAt); err != nil {
		h.handleError(c, err, "Stream")
		return
	}
	h.registry.Open(m)
	defer h.registry.Release(m)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case s := <-snaps:
			c.SSEvent("snapshot", s)
			c.Writer.Flush()
			if s.State == salewindow.StateCompleted || s.Navigate == salewindow.NavigateEventDetail {
				return
			}
		case <-m.Done():
			// 被同一使用者的新連線取代
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *SessionHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrSalesStartMissing):
		log.Warn("Sales start missing")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Sales start time is not configured"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
