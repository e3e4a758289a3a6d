package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/run-uniqueness/pkg/response"
)

// ContextUserKey holds the authenticated subject on the gin context
const ContextUserKey = "user"

var errMissingToken = errors.New("missing bearer token")

// JWTAuth requires an HS256 bearer token signed with secret. The token subject
// is stored under ContextUserKey. An empty secret disables the check.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		subject, err := ParseToken(c.GetHeader("Authorization"), secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			c.Abort()
			return
		}

		c.Set(ContextUserKey, subject)
		c.Next()
	}
}

// ParseToken validates an "Authorization: Bearer <token>" header value and
// returns the token subject
func ParseToken(header, secret string) (string, error) {
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return "", errMissingToken
	}

	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for subject; used by the CLI and tests
func IssueToken(subject, secret string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
