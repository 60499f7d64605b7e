package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/obrafin-api/pkg/logger"
)

// Roles carried by identity tokens.
const (
	RoleAdmin    = "admin"
	RoleApprover = "approver"
	RoleFinance  = "finance"
	RoleViewer   = "viewer"
)

const (
	operatorIDKey = "operatorID"
	roleKey       = "operatorRole"
	claimsKey     = "claims"
)

// Claims represents the JWT claims structure. Tokens are minted by the
// identity provider; the operator id falls back to the subject claim.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that validates JWT tokens
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
			})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		claims, err := validateToken(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(operatorIDKey, claims.OperatorID)
		c.Set(roleKey, claims.Role)
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithOperator(c.Request.Context(), claims.OperatorID))

		c.Next()
	}
}

// validateToken parses and validates a JWT token string
func validateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.OperatorID == "" {
		claims.OperatorID = claims.Subject
	}
	if claims.OperatorID == "" {
		return nil, errors.New("token carries no operator")
	}

	return claims, nil
}

// GetOperatorID extracts the operator ID from the Gin context
func GetOperatorID(c *gin.Context) string {
	return c.GetString(operatorIDKey)
}

// GetRole extracts the operator role from the Gin context
func GetRole(c *gin.Context) string {
	return c.GetString(roleKey)
}

// RequireRole returns a middleware that requires specific roles. Admins pass
// every check.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "You do not have access to this resource",
		})
	}
}
