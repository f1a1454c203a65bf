package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"go-gin-waiting-room/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	InvalidJSON = `{"invalid": json}`
	testEventID = uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
)

const testUserID = "user-1"

type routeRegistrar interface {
	RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc)
}

func setupRouter(h routeRegistrar) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router, middleware.SetUserID(testUserID))
	return router
}

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	if s, ok := data.(string); ok {
		return bytes.NewBufferString(s)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

// create HTTP request with JSON body
func createJSONHTTPRequest(method, url string, data interface{}) *http.Request {
	req, err := http.NewRequest(method, url, createJSONRequest(data))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func eventPath(suffix string) string {
	return "/api/v1/events/" + testEventID.String() + suffix
}
