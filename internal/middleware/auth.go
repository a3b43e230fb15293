package middleware

import (
	"net/http"
	"strings"

	"metersquare/internal/apierror"
	"metersquare/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"

	// Matches service.TokenTypeAccess; refresh tokens never authenticate a request.
	tokenTypeAccess = "access"
)

// JWTClaims are the custom claims embedded in every access token.
// UserUUID and RoleValue are resolved once here and never re-parsed.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims

	UserUUID  uuid.UUID  `json:"-"`
	RoleValue model.Role `json:"-"`
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "invalid or expired token"))
			return
		}

		if claims.Type != tokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "access token required"))
			return
		}

		uid, err := uuid.Parse(claims.UserID)
		if err != nil || uid == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "malformed token"))
			return
		}
		role, err := model.ParseRole(claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "unknown role in token"))
			return
		}
		claims.UserUUID = uid
		claims.RoleValue = role

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.RoleValue] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(apierror.KindForbidden, "insufficient permissions"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
// It returns nil on routes without JWTAuth.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
