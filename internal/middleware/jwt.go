package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

const userLocalKey = "user"

// JWTConfig holds JWT middleware configuration.
type JWTConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
}

// JWTMiddleware validates the bearer token and injects the caller's
// UserContext. The caller id is taken from the token only, never from the
// request body.
func JWTMiddleware(cfg JWTConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := bearerToken(c.Get("Authorization"))

		// EventSource cannot set headers, so job streams pass ?token=.
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
				"code":  "unauthorized",
			})
		}

		claims, err := ValidateJWT(token, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "unauthorized",
			})
		}

		c.Locals(userLocalKey, claims.UserContext())
		return c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// JWTMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !GetUserContext(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
				"code":  "forbidden",
			})
		}
		return c.Next()
	}
}

// GetUserContext extracts the UserContext from Fiber locals.
func GetUserContext(c fiber.Ctx) *domain.UserContext {
	u, ok := c.Locals(userLocalKey).(*domain.UserContext)
	if !ok {
		return nil
	}
	return u
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// --- JWT Claims & Helpers ---

// Claims represents the JWT payload.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Issuer    string `json:"iss"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// UserContext converts the claims into the request identity.
func (c *Claims) UserContext() *domain.UserContext {
	role := c.Role
	if role == "" {
		role = domain.RoleClient
	}
	return &domain.UserContext{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   c.Name,
		Role:   role,
	}
}

// GenerateJWT creates a signed HS256 token for user. Only the operator CLI
// and tests issue tokens; login lives in another service.
func GenerateJWT(user *domain.UserContext, cfg JWTConfig) (string, error) {
	if user == nil || user.UserID == "" {
		return "", errors.New("generate jwt: user id is required")
	}
	if cfg.Secret == "" {
		return "", errors.New("generate jwt: secret is required")
	}

	now := time.Now()
	claims := Claims{
		Subject:   user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Issuer:    cfg.Issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(cfg.ExpiresIn).Unix(),
	}

	headerJSON, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	return signingInput + "." + signHS256(signingInput, cfg.Secret), nil
}

// ValidateJWT verifies signature, expiry and issuer. Failures wrap
// port.ErrTokenInvalid or port.ErrTokenExpired.
func ValidateJWT(tokenStr string, cfg JWTConfig) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed token", port.ErrTokenInvalid)
	}

	signingInput := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(signHS256(signingInput, cfg.Secret))) {
		return nil, fmt.Errorf("%w: bad signature", port.ErrTokenInvalid)
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", port.ErrTokenInvalid)
	}

	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, fmt.Errorf("%w: bad claims", port.ErrTokenInvalid)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", port.ErrTokenInvalid)
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, port.ErrTokenExpired
	}

	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", port.ErrTokenInvalid)
	}

	return &claims, nil
}

func signHS256(input, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
