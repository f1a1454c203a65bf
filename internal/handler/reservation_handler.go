package handler

import (
	"errors"
	"net/http"

	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/service"
	apperrors "go-gin-waiting-room/pkg/app_errors"
	"go-gin-waiting-room/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(service service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1", auth)
	{
		router.GET("events/:uuid/spots", h.CheckSpot)
		router.POST("events/:uuid/reservations", h.Reserve)
		router.GET("events/:uuid/reservation", h.Status)
		router.PUT("events/:uuid/reservation/pay", h.Pay)
		router.PUT("events/:uuid/reservation/cancel", h.Cancel)
	}
}

type CheckSpotQuery struct {
	TicketKind string `form:"ticket_kind" binding:"required"`
}

func (h *ReservationHandler) CheckSpot(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	var q CheckSpotQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}
	spot, err := h.service.CheckSpot(c, eventID, q.TicketKind)
	if err != nil {
		h.handleError(c, err, "CheckSpot")
		return
	}
	c.JSON(http.StatusOK, spot)
}

// Reserve 新建立回 201，重複預約回 200 並帶既有預約
func (h *ReservationHandler) Reserve(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req model.CreateReservationRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	result, err := h.service.Reserve(c, eventID, userID, req)
	if err != nil {
		h.handleError(c, err, "Reserve")
		return
	}
	if result.Existing {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ReservationHandler) Status(c *gin.Context) {
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

func (h *ReservationHandler) Pay(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.service.Pay(c, eventID, userID)
	if err != nil {
		h.handleError(c, err, "Pay")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.service.Cancel(c, eventID, userID)
	if err != nil {
		h.handleError(c, err, "Cancel")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReservationHandler) handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrTicketKindNotFound):
		log.Warn("Ticket kind not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Ticket kind not found"})
	case errors.Is(err, apperrors.ErrReservationNotFound):
		log.Warn("Reservation not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
	case errors.Is(err, apperrors.ErrNoPurchaseWindow):
		log.Warn("No purchase window")
		c.JSON(http.StatusForbidden, gin.H{"error": "No active purchase window"})
	case errors.Is(err, apperrors.ErrWindowExpired):
		log.Warn("Purchase window expired")
		c.JSON(http.StatusGone, gin.H{"error": "Purchase window expired"})
	case errors.Is(err, apperrors.ErrInsufficientStock):
		log.Warn("Insufficient stock")
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
	case errors.Is(err, apperrors.ErrExceedsMaxPerUser):
		log.Warn("Exceeds max per user")
		c.JSON(http.StatusConflict, gin.H{"error": "Exceeds max per user"})
	case errors.Is(err, apperrors.ErrReservationExists):
		log.Warn("Reservation exists")
		c.JSON(http.StatusConflict, gin.H{"error": "Reservation already exists"})
	case errors.Is(err, apperrors.ErrInvalidReservationStatus):
		log.Warn("Invalid reservation status")
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid reservation status"})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
