package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for operator data
const (
	ContextKeyUsername = "auth_username"
	ContextKeyClaims   = "auth_claims"
)

// Middleware creates a JWT authentication middleware
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// Login verifies operator credentials against the configured bcrypt hash
// and returns a token pair on success
func Login(cfg Config, jwtManager *JWTManager, req LoginRequest) (*LoginResponse, error) {
	if req.Username != cfg.Username || !VerifyPassword(req.Password, cfg.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	pair, err := jwtManager.GenerateTokenPair(OperatorClaims{
		Username: req.Username,
		IsAdmin:  true,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Username:     req.Username,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// GetUsername extracts the operator username from the Gin context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextKeyUsername); exists {
		return username.(string)
	}
	return ""
}

// GetClaims extracts the full operator claims from the Gin context
func GetClaims(c *gin.Context) *OperatorClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*OperatorClaims)
	}
	return nil
}
