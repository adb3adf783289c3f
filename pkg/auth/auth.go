// Package auth verifies session tokens issued by the hosted identity
// provider and exposes the caller to gin handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	identityKey   = "identity"
	sessionCookie = "session"
	adminRole     = "admin"
)

type Identity struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

type Verifier struct {
	secret     []byte
	issuer     string
	adminClaim string
}

func NewVerifier(secret, issuer, adminClaim string) *Verifier {
	if adminClaim == "" {
		adminClaim = "role"
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, adminClaim: adminClaim}
}

func (v *Verifier) Verify(raw string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	id := &Identity{UserID: sub}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	role, _ := claims[v.adminClaim].(string)
	id.Admin = role == adminRole
	return id, nil
}

// UserSyncer stores the identities seen on incoming requests.
type UserSyncer interface {
	Upsert(ctx context.Context, u *models.User) error
}

// Authenticate resolves the caller from a bearer token or the session
// cookie. Anonymous requests pass through; RequireUser and RequireAdmin
// enforce access.
func Authenticate(v *Verifier, users UserSyncer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				raw = cookie
			}
		}
		if raw == "" {
			c.Next()
			return
		}

		id, err := v.Verify(raw)
		if err != nil {
			logger.Debug("Rejected session token", zap.Error(err))
			c.Next()
			return
		}
		c.Set(identityKey, id)

		if users != nil && id.Email != "" {
			u := &models.User{ID: id.UserID, Email: id.Email, Name: id.Name, IsAdmin: id.Admin}
			if err := users.Upsert(c.Request.Context(), u); err != nil {
				logger.Warn("Failed to sync user", zap.String("user_id", id.UserID), zap.Error(err))
			}
		}
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if FromContext(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := FromContext(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		if !id.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès réservé aux administrateurs"})
			return
		}
		c.Next()
	}
}

// FromContext returns the authenticated caller, or nil.
func FromContext(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
