package handler

import (
	"errors"
	"net/http"
	"time"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/service"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1")
	{
		router.GET("events", h.List)
		router.GET("events/:uuid", h.GetDetail)
		router.GET("events/:uuid/event-status", h.EventStatus)
		router.GET("events/:uuid/waiting-room", h.WaitingRoom)
		router.POST("events", auth, h.Create)
		router.PUT("events/:uuid", auth, h.UpdateByEventID)
		router.POST("events/:uuid/ticket-kinds", auth, h.AddTicketKind)
		router.POST("events/:uuid/open", auth, h.OpenForSale)
	}
}

// CreateEventRequest 建立活動請求
type CreateEventRequest struct {
	Slug               string     `json:"slug" binding:"required"`
	Name               string     `json:"name" binding:"required"`
	Description        *string    `json:"description"`
	SalesStartAt       *time.Time `json:"sales_start_at"`
	WaitingRoomOpensAt *time.Time `json:"waiting_room_opens_at"`
}

// UpdateEventRequest 更新活動請求
type UpdateEventRequest struct {
	Name               *string    `json:"name"`
	Description        *string    `json:"description"`
	SalesStartAt       *time.Time `json:"sales_start_at"`
	WaitingRoomOpensAt *time.Time `json:"waiting_room_opens_at"`
}

type CreateTicketKindRequest struct {
	Name       string  `json:"name" binding:"required"`
	Price      float64 `json:"price" binding:"gte=0"`
	TotalStock int     `json:"total_stock" binding:"gte=0"`
	MaxPerUser int     `json:"max_per_user" binding:"gte=0"`
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.service.List(c)
	if err != nil {
		h.handleError(c, err, "List")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetDetail(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	detail, err := h.service.GetDetail(c, eventID)
	if err != nil {
		h.handleError(c, err, "GetDetail")
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *EventHandler) Create(c *gin.Context) {
	var req CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	event := &model.Event{
		Slug:               req.Slug,
		Name:               req.Name,
		Description:        req.Description,
		SalesStartAt:       req.SalesStartAt,
		WaitingRoomOpensAt: req.WaitingRoomOpensAt,
	}
	created, err := h.service.Create(c, event)
	if err != nil {
		h.handleError(c, err, "Create")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *EventHandler) UpdateByEventID(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	var req UpdateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	if req.Name == nil && req.Description == nil && req.SalesStartAt == nil && req.WaitingRoomOpensAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one field is required"})
		return
	}
	params := model.UpdateEventParams{
		Name:               req.Name,
		Description:        req.Description,
		SalesStartAt:       req.SalesStartAt,
		WaitingRoomOpensAt: req.WaitingRoomOpensAt,
	}
	updated, err := h.service.UpdateByEventID(c, eventID, params)
	if err != nil {
		h.handleError(c, err, "UpdateByEventID")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *EventHandler) AddTicketKind(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	var req CreateTicketKindRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	kind, err := h.service.AddTicketKind(c, eventID, &model.TicketKind{
		Name:       req.Name,
		Price:      req.Price,
		TotalStock: req.TotalStock,
		MaxPerUser: req.MaxPerUser,
	})
	if err != nil {
		h.handleError(c, err, "AddTicketKind")
		return
	}
	c.JSON(http.StatusCreated, kind)
}

func (h *EventHandler) OpenForSale(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	if err := h.service.OpenForSale(c, eventID); err != nil {
		h.handleError(c, err, "OpenForSale")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EventHandler) EventStatus(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c, eventID)
	if err != nil {
		h.handleError(c, err, "EventStatus")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *EventHandler) WaitingRoom(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	view, err := h.service.WaitingRoom(c, eventID)
	if err != nil {
		h.handleError(c, err, "WaitingRoom")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *EventHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	case errors.Is(err, apperrors.ErrSalesStartMissing):
		log.Warn("Sales start missing")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Sales start time is not configured"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
