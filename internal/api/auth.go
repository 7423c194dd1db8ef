package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/pkg/config"
)

const identityKey = "sdgforum.identity"

// Claims represents the bearer token claims; the subject is the user id
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated requester
type Identity struct {
	UserID string
	Role   models.UserRole
}

// Authenticator verifies HS256 bearer tokens issued by the auth service
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an authenticator from configuration
func NewAuthenticator(cfg *config.AuthConfig) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}, nil
}

// IssueToken signs a token for userID
func (a *Authenticator) IssueToken(userID string, role models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token
func (a *Authenticator) Verify(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthenticated("token expired")
		}
		return nil, apperr.Unauthenticated("invalid token")
	}

	if claims.Subject == "" {
		return nil, apperr.Unauthenticated("token has no subject")
	}

	role := models.UserRole(claims.Role)
	if role == "" {
		role = models.RoleUser
	}
	return &Identity{UserID: claims.Subject, Role: role}, nil
}

// Middleware attaches the requester identity when a bearer token is
// present. Requests without a token pass through anonymously; a bad token
// is rejected.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := a.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   NewError(err),
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// bearerToken reads the Authorization header, or the token query
// parameter used by browser websocket clients
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

// requireIdentity returns the authenticated requester
func requireIdentity(c *gin.Context) (*Identity, error) {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil, apperr.Unauthenticated("authorization required")
	}
	identity, ok := value.(*Identity)
	if !ok {
		return nil, apperr.Unauthenticated("authorization required")
	}
	return identity, nil
}
