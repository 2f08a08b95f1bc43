package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/models"
)

// APIKeyHeader carries the static API key.
const APIKeyHeader = "X-API-Key"

// PrincipalKey is the gin context key holding the authenticated caller.
const PrincipalKey = "principal"

// AuthConfig enables API key and/or bearer JWT authentication. With both empty, every request passes.
type AuthConfig struct {
	APIKey    string
	JWTSecret string
}

func (c AuthConfig) enabled() bool { return c.APIKey != "" || c.JWTSecret != "" }

// Auth accepts either a matching X-API-Key or an HS256 bearer token signed with JWTSecret.
// The token subject becomes the principal.
func Auth(cfg AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("Auth")
	if !cfg.enabled() {
		log.Warn("API authentication is disabled, API_KEY and JWT_SECRET are empty")
	}
	return func(c *gin.Context) {
		if !cfg.enabled() {
			c.Next()
			return
		}

		if key := c.GetHeader(APIKeyHeader); key != "" && cfg.APIKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
				c.Set(PrincipalKey, "api-key")
				c.Next()
				return
			}
			log.Warn("Rejected invalid API key", zap.String("ip", c.ClientIP()))
			abortUnauthorized(c, "invalid API key")
			return
		}

		if header := c.GetHeader("Authorization"); header != "" && cfg.JWTSecret != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				abortUnauthorized(c, "invalid Authorization header format")
				return
			}
			subject, err := verifyToken(parts[1], cfg.JWTSecret)
			if err != nil {
				log.Warn("Bearer token verification failed", zap.Error(err))
				abortUnauthorized(c, tokenErrorMessage(err))
				return
			}
			c.Set(PrincipalKey, subject)
			c.Next()
			return
		}

		abortUnauthorized(c, "missing credentials")
	}
}

func verifyToken(tokenString, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return "token", nil
	}
	return claims.Subject, nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid"
	}
	return "token is invalid"
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Code:    models.ErrCodeUnauthorized,
		Message: message,
	})
}
