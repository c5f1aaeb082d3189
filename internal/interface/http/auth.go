package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// ScopeAwardPoints lets a token credit points to users other than its
// subject.
const ScopeAwardPoints = "points:award"

// Claims are the bearer token claims. Subject is the acting user's id and
// Scope is a space-separated list of granted scopes.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenVerifier validates HS256 bearer tokens issued by the authentication
// service.
type TokenVerifier struct {
	secretKey []byte
	issuer    string
}

// NewTokenVerifier creates a verifier. An empty secret rejects every token.
func NewTokenVerifier(secretKey, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// Issue signs a token for userID. The API never issues tokens itself; this
// exists for tooling and tests.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration, scopes ...string) (string, error) {
	if len(v.secretKey) == 0 {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
}

// Verify parses the token and returns its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	if len(v.secretKey) == 0 {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// requireAuth validates the bearer token and stores the acting user id in
// the gin context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeJSONError(c, http.StatusUnauthorized, "not_authenticated", "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeJSONError(c, http.StatusUnauthorized, "not_authenticated", "Invalid authorization format. Use: Bearer <token>")
			c.Abort()
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "Token has expired"
			}
			writeJSONError(c, http.StatusUnauthorized, "not_authenticated", msg)
			c.Abort()
			return
		}

		c.Set(contextKeyActorID, claims.Subject)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// actorID retrieves the authenticated user id from context.
func actorID(c *gin.Context) (string, bool) {
	id := c.GetString(contextKeyActorID)
	return id, id != ""
}

// hasScope reports whether the request's token grants scope.
func hasScope(c *gin.Context, scope string) bool {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return false
	}
	claims, ok := v.(*Claims)
	return ok && claims.HasScope(scope)
}
