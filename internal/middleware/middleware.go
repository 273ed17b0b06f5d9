package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the authentication middlewares
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextClientID = "clientID"
	ContextScopes   = "scopes"
	ContextAuthType = "auth_type"
)

// OAuth2Auth middleware that handles OAuth2 JWT access tokens
// This middleware validates JWT tokens and extracts user information from claims
// following RFC 6749 (OAuth2) and RFC 7519 (JWT) specifications
func OAuth2Auth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// RFC 6750: Extract Bearer token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "authorization_required",
				"Missing Authorization header. A valid Bearer token is required.")
			return
		}

		if err := authenticate(c, authHeader, jwtSecret); err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, err.code, err.description)
			return
		}

		c.Next()
	}
}

// OptionalAuth annotates the request with the caller's identity when a bearer token is sent.
// Anonymous requests pass through; a malformed or expired token is still rejected.
func OptionalAuth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		if err := authenticate(c, authHeader, jwtSecret); err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, err.code, err.description)
			return
		}

		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or 0 for anonymous requests
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// IsAdmin reports whether the authenticated caller holds the admin role
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextUserRole) == models.RoleAdmin
}

type authError struct {
	code        string
	description string
}

func authenticate(c *gin.Context, authHeader string, jwtSecret []byte) *authError {
	// Validate Bearer scheme format
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return &authError{models.ErrInvalidRequest, "Authorization header must use Bearer scheme. Format: 'Bearer <token>'"}
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		return &authError{models.ErrInvalidToken, "Bearer token is empty"}
	}

	claims, err := parseAndValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return &authError{models.ErrInvalidToken, err.Error()}
	}

	if err := extractAndSetClaims(c, claims); err != nil {
		return &authError{models.ErrInvalidToken, err.Error()}
	}
	return nil
}

// respondWithOAuth2Error responds with RFC 6750 compliant error format
func respondWithOAuth2Error(c *gin.Context, status int, errorCode, description string) {
	c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer error=%q`, errorCode))
	c.AbortWithStatusJSON(status, models.NewOAuth2Error(errorCode, description))
}

// parseJWTToken validates and parses a JWT token using HMAC signing method
// Returns the claims if valid, error otherwise
func parseJWTToken(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC so a forged "alg" header cannot switch verification
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v. Expected HMAC", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}

	return claims, nil
}

// parseAndValidateJWT parses the JWT and performs strict validation
func parseAndValidateJWT(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	claims, err := parseJWTToken(tokenString, jwtSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Tokens without an expiry are never accepted
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("token missing required 'exp' claim")
	}
	if exp.Before(now) {
		return nil, fmt.Errorf("token has expired")
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, fmt.Errorf("invalid nbf claim: %w", err)
	}
	if nbf != nil && nbf.After(now) {
		return nil, fmt.Errorf("token not yet valid")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("invalid iat claim: %w", err)
	}
	if iat != nil && iat.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("token issued in the future")
	}

	return claims, nil
}

// extractAndSetClaims extracts user information from JWT claims and sets it in the Gin context
func extractAndSetClaims(c *gin.Context, claims jwt.MapClaims) error {
	userID, err := extractUserID(claims)
	if err != nil {
		return err
	}
	if userID == 0 {
		return fmt.Errorf("invalid user identifier: cannot be zero")
	}

	role, err := extractRole(claims)
	if err != nil {
		return err
	}

	c.Set(ContextUserID, userID)
	c.Set(ContextUserRole, role)

	// Client credentials tokens carry the client id as audience; login tokens carry none
	if aud, ok := claims["aud"].(string); ok && aud != "" {
		c.Set(ContextClientID, aud)
	} else if audArray, ok := claims["aud"].([]interface{}); ok && len(audArray) > 0 {
		if firstAud, ok := audArray[0].(string); ok && firstAud != "" {
			c.Set(ContextClientID, firstAud)
		}
	}

	if scope, ok := claims["scope"].(string); ok && scope != "" {
		c.Set(ContextScopes, scope)
	}

	if _, ok := c.Get(ContextClientID); ok {
		c.Set(ContextAuthType, "oauth2")
	} else {
		c.Set(ContextAuthType, "jwt")
	}

	return nil
}

// extractUserID extracts and validates the user ID from the "uid" claim
func extractUserID(claims jwt.MapClaims) (uint, error) {
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		parsedID, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid uid claim format: must be a numeric string, got: %s", uid)
		}
		return uint(parsedID), nil
	}

	// JSON numbers decode as float64
	if uid, ok := claims["uid"].(float64); ok {
		if uid <= 0 {
			return 0, fmt.Errorf("invalid uid claim: must be positive, got: %f", uid)
		}
		return uint(uid), nil
	}

	return 0, fmt.Errorf("token missing required 'uid' claim. This token is not valid for this API")
}

// extractRole extracts and validates the role from JWT claims
// All tokens must have an explicit role claim - no defaults are provided
func extractRole(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", fmt.Errorf("token missing required 'role' claim. Tokens must explicitly specify user roles")
	}

	switch role {
	case models.RoleAdmin, models.RoleUser:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role '%s'. Allowed roles: admin, user", role)
	}
}
