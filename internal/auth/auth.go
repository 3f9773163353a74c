// Package auth validates HS256 bearer tokens issued by the platform's auth
// service and exposes the caller's user id to handlers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "auth.user_id"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID parses the Authorization header and returns the token subject.
func (v *Verifier) UserID(header string) (string, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: verifier has no secret", ErrInvalidToken)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Optional records the user id when a valid token is present and otherwise
// lets the request through anonymously.
func (v *Verifier) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, err := v.UserID(c.GetHeader("Authorization")); err == nil {
			c.Set(userIDKey, uid)
		}
		c.Next()
	}
}

// Required aborts with 401 unless a valid token is present.
func (v *Verifier) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := v.UserID(c.GetHeader("Authorization"))
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrMissingToken) {
				msg = "Missing authorization header"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated user for the request, or "".
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
