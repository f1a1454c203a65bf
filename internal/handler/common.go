package handler

import (
	"net/http"

	"go-gin-waiting-room/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// eventIDParam 解析路徑上的 :uuid，失敗時直接回應 400
func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event uuid"})
		return uuid.Nil, false
	}
	return eventID, true
}

// currentUser JWTAuth 放進 context 的使用者 id，沒有時回應 401
func currentUser(c *gin.Context) (string, bool) {
	userID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
