package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Role defines the access level attached to a request.
type Role string

const (
	// RoleOperator can manage any session and read study data.
	RoleOperator Role = "operator"
	// RoleParticipant holds a token scoped to exactly one session.
	RoleParticipant Role = "participant"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode      string // "token", "api-key", "none"
	APIKey    string
	JWTSecret string
	TokenTTL  time.Duration
}

// mintSessionToken issues a participant token scoped to one session.
func mintSessionToken(cfg AuthConfig, sessionID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    "quilld",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// parseSessionToken validates a participant token and returns its session ID.
func parseSessionToken(cfg AuthConfig, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer("quilld"))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// newAuthMiddleware classifies every request. Operators authenticate with the
// API key; participants with a session token whose subject must match the
// :id path parameter. Probe endpoints are always open, and starting a session
// is open in token mode (it is the participant entry point).
func newAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Mode == "none" {
			c.Locals("role", RoleOperator)
			return c.Next()
		}

		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		if cfg.Mode == "token" {
			// Participant entry points need no prior credential.
			if path == "/api/v1/sessions" && c.Method() == fiber.MethodPost {
				return c.Next()
			}
			if path == "/api/v1/catalog" {
				return c.Next()
			}
		}

		raw := bearerToken(c)
		if raw == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header with Bearer credentials is required")
		}

		if cfg.APIKey != "" && raw == cfg.APIKey {
			c.Locals("role", RoleOperator)
			return c.Next()
		}

		if cfg.Mode == "token" {
			sessionID, err := parseSessionToken(cfg, raw)
			if err == nil {
				if target := c.Params("id"); target != "" && target != sessionID {
					return problemResponse(c, fiber.StatusForbidden,
						"session_mismatch", "Forbidden",
						"Token is not valid for this session")
				}
				c.Locals("role", RoleParticipant)
				c.Locals("token_session_id", sessionID)
				return c.Next()
			}
			logger.Warn().Err(err).Str("path", path).Msg("rejected session token")
		}

		logger.Warn().
			Str("path", path).
			Str("method", c.Method()).
			Msg("unauthorized request")

		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_credentials", "Unauthorized",
			"Invalid API key or session token")
	}
}

// requireOperator enforces operator access on a route.
func requireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if role, _ := c.Locals("role").(Role); role != RoleOperator {
			return problemResponse(c, fiber.StatusForbidden,
				"operator_required", "Forbidden",
				"This operation requires operator access")
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
