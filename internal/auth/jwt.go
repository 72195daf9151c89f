package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"musicez/internal/handlers/render"
	"musicez/internal/models"
)

const principalKey = "auth.principal"

var (
	// ErrMissingToken means no bearer token was sent
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the token failed verification
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims are the token claims the service reads. Tokens are issued
// elsewhere; this package only verifies them.
type Claims struct {
	SpotifyConnected bool `json:"spotify_connected"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens and turns them into principals
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for tokens signed with secret
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify validates a raw token
func (v *Verifier) Verify(raw string) (*models.Principal, error) {
	token, err := v.parser.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &models.Principal{
		ID:                claims.Subject,
		ProviderConnected: claims.SpotifyConnected,
	}, nil
}

// Optional attaches a principal when a valid token is present. Requests
// without a token pass through anonymously; a bad token is rejected.
func (v *Verifier) Optional() gin.HandlerFunc {
	return v.middleware(false)
}

// Required rejects requests without a valid token
func (v *Verifier) Required() gin.HandlerFunc {
	return v.middleware(true)
}

func (v *Verifier) middleware(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if errors.Is(err, ErrMissingToken) && !required {
			c.Next()
			return
		}
		if err != nil {
			render.Unauthorized(c, "A valid bearer token is required")
			return
		}

		principal, err := v.Verify(raw)
		if err != nil {
			slog.Debug("Rejected bearer token", "path", c.FullPath(), "error", err)
			render.Unauthorized(c, "Invalid or expired bearer token")
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the caller attached by the middleware, or nil
func PrincipalFrom(c *gin.Context) *models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*models.Principal); ok {
			return p
		}
	}
	return nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
