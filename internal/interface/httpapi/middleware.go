package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/apperror"
	"leadcall-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// Claims is the expected shape of the auth service's tokens
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalAuth validates the bearer token and stores the tagged principal
// in the request context. The engine trusts the auth service; this only
// parses what it issued.
func PrincipalAuth(secret string, log logger.Logger) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := ""

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		// Websocket clients cannot set headers from the browser
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			log.Warn("Invalid or expired token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		kind, err := entity.ParsePrincipalKind(claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown principal role"})
			return
		}

		c.Set(principalKey, entity.Principal{ID: claims.UserID, Kind: kind})
		c.Next()
	}
}

// RequireKind blocks callers whose principal kind does not match
func RequireKind(kind entity.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentPrincipal(c)
		if p.Kind != kind && p.Kind != entity.KindAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": fmt.Sprintf("%s access required", kind),
			})
			return
		}
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) entity.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(entity.Principal)
	return p
}

// respondError maps a domain error onto an HTTP status. Unknown errors stay
// opaque to the client.
func respondError(c *gin.Context, log logger.Logger, err error) {
	var status int
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindConflict:
		status = http.StatusConflict
	case apperror.KindForbidden:
		status = http.StatusForbidden
	case apperror.KindInvalid:
		status = http.StatusBadRequest
	case apperror.KindUnavailable:
		status = http.StatusServiceUnavailable
	default:
		log.Error("Internal error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var appErr *apperror.Error
	message := err.Error()
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(status, gin.H{"error": message})
}
