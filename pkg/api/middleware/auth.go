package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "jengaiq-schedule"

// JWTConfig holds the signing secret and token lifetime. A nil config
// disables authentication entirely.
type JWTConfig struct {
	SecretKey  []byte
	Expiration time.Duration
}

// NewJWTConfig builds a JWT configuration from a shared secret and a
// token lifetime. It returns nil when the secret is empty, which
// callers treat as authentication disabled.
func NewJWTConfig(secret string, ttl time.Duration) *JWTConfig {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTConfig{
		SecretKey:  []byte(secret),
		Expiration: ttl,
	}
}

// Claims carries the caller's role list alongside the registered JWT
// claims. The subject identifies who the token was issued to.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for a subject holding the given
// roles, valid from now until the configured expiration.
func GenerateToken(config *JWTConfig, subject string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Expiration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.SecretKey)
}

// ValidateToken verifies a token produced by GenerateToken and returns
// its claims. Tokens signed with another method, another secret, or for
// another issuer are rejected.
func ValidateToken(config *JWTConfig, raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{},
		func(*jwt.Token) (interface{}, error) { return config.SecretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("token claims have an unexpected shape")
	}
	return claims, nil
}

// JWTAuth rejects requests that lack a valid bearer token and records
// the token's subject and roles on the request context for downstream
// handlers.
func JWTAuth(config *JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, http.StatusUnauthorized, "NO_TOKEN", "Authorization header required")
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			AbortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Authorization header must be 'Bearer {token}'")
			return
		}

		claims, err := ValidateToken(config, raw)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", err.Error())
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("roles", claims.Roles)
		c.Next()
	}
}

// RequireRole passes requests whose caller holds at least one of the
// given roles. It must run after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("roles")
		if !exists {
			AbortWithError(c, http.StatusForbidden, "NO_ROLES", "User roles not found")
			return
		}

		held, ok := value.([]string)
		if !ok {
			AbortWithError(c, http.StatusForbidden, "INVALID_ROLES", "Invalid user roles format")
			return
		}

		for _, role := range roles {
			if slices.Contains(held, role) {
				c.Next()
				return
			}
		}

		AbortWithError(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS",
			fmt.Sprintf("Required roles: %v", roles))
	}
}
