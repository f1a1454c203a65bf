package handler_test

import (
	"net/http"
	"testing"
	"time"

	"go-gin-waiting-room/internal/handler"
	"go-gin-waiting-room/internal/mocks"
	"go-gin-waiting-room/internal/model"
	"go-gin-waiting-room/internal/salewindow"
	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestEventHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		mockService.On("Create", mock.Anything, mock.MatchedBy(func(e *model.Event) bool {
			return e.Slug == "spring-concert" && e.SalesStartAt != nil && e.SalesStartAt.Equal(start)
		})).Return(&model.Event{ID: 1, EventID: testEventID, Slug: "spring-concert", Name: "Spring Concert"}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/events", map[string]any{
			"slug":           "spring-concert",
			"name":           "Spring Concert",
			"sales_start_at": start.Format(time.RFC3339),
		}))

		// 驗證結果
		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - BindingError", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/events", InvalidJSON))

		// 驗證結果
		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestEventHandler_GetDetail(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("GetDetail", mock.Anything, testEventID).Return(&model.EventDetail{
			Event:        &model.Event{ID: 1, EventID: testEventID, Name: "Spring Concert"},
			TicketKinds:  []*model.TicketKind{},
			Availability: model.AvailabilityLimited,
		}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, eventPath(""), nil))

		// 驗證結果
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"availability":"limited"`)
	})

	t.Run("Failed - invalid uuid", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, "/api/v1/events/not-a-uuid", nil))

		// 驗證結果
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Failed - ErrEventNotFound", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("GetDetail", mock.Anything, testEventID).Return(nil, apperrors.ErrEventNotFound).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, eventPath(""), nil))

		// 驗證結果
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestEventHandler_UpdateByEventID(t *testing.T) {
	t.Run("Failed - empty update", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPut, eventPath(""), map[string]any{}))

		// 驗證結果
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("UpdateByEventID", mock.Anything, testEventID, mock.MatchedBy(func(p model.UpdateEventParams) bool {
			return p.Name != nil && *p.Name == "Renamed"
		})).Return(&model.Event{ID: 1, EventID: testEventID, Name: "Renamed"}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPut, eventPath(""), map[string]any{"name": "Renamed"}))

		// 驗證結果
		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestEventHandler_OpenForSale(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("OpenForSale", mock.Anything, testEventID).Return(nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, eventPath("/open"), nil))

		// 驗證結果
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Failed - ErrSalesStartMissing", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("OpenForSale", mock.Anything, testEventID).Return(apperrors.ErrSalesStartMissing).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, eventPath("/open"), nil))

		// 驗證結果
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestEventHandler_AddTicketKind(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("AddTicketKind", mock.Anything, testEventID, mock.AnythingOfType("*model.TicketKind")).
			Return(&model.TicketKind{ID: 10, EventID: 1, Name: "General", Price: 50, TotalStock: 100, MaxPerUser: 1}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, eventPath("/ticket-kinds"), map[string]any{
			"name": "General", "price": 50, "total_stock": 100,
		}))

		// 驗證結果
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Failed - negative price", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodPost, eventPath("/ticket-kinds"), map[string]any{
			"name": "General", "price": -1, "total_stock": 100,
		}))

		// 驗證結果
		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "AddTicketKind", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEventHandler_StatusAndWaitingRoom(t *testing.T) {
	t.Run("Success - event status", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		mockService.On("Status", mock.Anything, testEventID).Return(&model.EventStatus{CurrentDate: now, IsOpen: true}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, eventPath("/event-status"), nil))

		// 驗證結果
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"currentDate":"2026-03-01T12:00:00Z","isOpen":true}`, w.Body.String())
	})

	t.Run("Success - waiting room", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("WaitingRoom", mock.Anything, testEventID).
			Return(&salewindow.WaitingRoomView{EventID: testEventID, State: salewindow.StateClosed, Display: "01:00:00"}, nil).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, eventPath("/waiting-room"), nil))

		// 驗證結果
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"display":"01:00:00"`)
	})

	t.Run("Failed - waiting room without sales start", func(t *testing.T) {
		mockService := mocks.NewMockEventService()
		router := setupRouter(handler.NewEventHandler(mockService))
		mockService.On("WaitingRoom", mock.Anything, testEventID).Return(nil, apperrors.ErrSalesStartMissing).Once()

		// 執行
		w := serve(router, createJSONHTTPRequest(http.MethodGet, eventPath("/waiting-room"), nil))

		// 驗證結果
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
