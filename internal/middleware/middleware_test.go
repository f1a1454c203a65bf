package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-gin-waiting-room/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.GET("/me", middleware.JWTAuth(testSecret), func(c *gin.Context) {
		uid, err := middleware.UserID(c)
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": uid})
	})
	return router
}

func doGet(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router := setupAuthRouter()
		token, err := middleware.SignToken(testSecret, "user-42", jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		require.NoError(t, err)

		// 執行
		w := doGet(router, token)

		// 驗證結果
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"user-42"}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Failed - missing token", func(t *testing.T) {
		router := setupAuthRouter()

		// 執行
		w := doGet(router, "")

		// 驗證結果
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - wrong secret", func(t *testing.T) {
		router := setupAuthRouter()
		token, err := middleware.SignToken("other-secret", "user-42", jwt.RegisteredClaims{})
		require.NoError(t, err)

		// 執行
		w := doGet(router, token)

		// 驗證結果
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - expired token", func(t *testing.T) {
		router := setupAuthRouter()
		token, err := middleware.SignToken(testSecret, "user-42", jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		})
		require.NoError(t, err)

		// 執行
		w := doGet(router, token)

		// 驗證結果
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - missing subject", func(t *testing.T) {
		router := setupAuthRouter()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		// 執行
		w := doGet(router, token)

		// 驗證結果
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - unsigned token rejected", func(t *testing.T) {
		router := setupAuthRouter()
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		// 執行
		w := doGet(router, token)

		// 驗證結果
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSignToken(t *testing.T) {
	t.Run("Failed - empty secret", func(t *testing.T) {
		// 執行
		_, err := middleware.SignToken("", "user-1", jwt.RegisteredClaims{})

		// 驗證結果
		assert.Error(t, err)
	})
}
