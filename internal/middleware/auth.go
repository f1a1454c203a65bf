package middleware

import (
	"errors"
	"net/http"
	"strings"

	apperrors "go-gin-waiting-room/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// JWTAuth 驗證 Bearer token（HS256），把 sub 放進 context 作為使用者 id
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		tok, err := parser.Parse(strings.TrimSpace(raw), func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		sub, err := tok.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}

		c.Set(userIDKey, sub)
		c.Next()
	}
}

// UserID 取得 JWTAuth 設定的使用者 id
func UserID(c *gin.Context) (string, error) {
	if v := c.GetString(userIDKey); v != "" {
		return v, nil
	}
	return "", apperrors.ErrUnauthorized
}

// SetUserID 測試或內部呼叫時直接指定使用者
func SetUserID(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, userID)
		c.Next()
	}
}

var errMissingSecret = errors.New("jwt secret is not configured")

// SignToken 產生 HS256 token，供本機測試與壓測腳本使用
func SignToken(secret, userID string, claims jwt.RegisteredClaims) (string, error) {
	if secret == "" {
		return "", errMissingSecret
	}
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
