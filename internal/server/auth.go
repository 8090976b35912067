package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"crabber/internal/cache"
	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/visibility"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "crabber-api"
	tokenAudience = "crabber-client"
	tokenTTL      = 7 * 24 * time.Hour

	viewerLocal = "viewer"
	jtiLocal    = "jti"
	expiryLocal = "tokenExpiry"
)

// credentials is what a request authenticated with.
type credentials struct {
	crab   *models.Crab
	jti    string
	expiry time.Time
}

// generateToken issues a session JWT for crab.
func (s *Server) generateToken(crab *models.Crab) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(crab.ID), 10),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// authenticate resolves the Authorization header. It returns nil credentials
// when the header is absent and an error when it is present but unusable.
func (s *Server) authenticate(c *fiber.Ctx) (*credentials, error) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return nil, nil
	}

	scheme, value, ok := strings.Cut(header, " ")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil, models.NewUnauthorizedError("Malformed Authorization header")
	}

	var creds *credentials
	var err error
	switch {
	case strings.EqualFold(scheme, "Bearer"):
		creds, err = s.parseSessionToken(c.UserContext(), value)
	case strings.EqualFold(scheme, "Token"):
		var crab *models.Crab
		crab, err = s.tokenRepo.CrabByAccessToken(c.UserContext(), value)
		creds = &credentials{crab: crab}
	default:
		return nil, models.NewUnauthorizedError("Unsupported authorization scheme")
	}
	if err != nil {
		return nil, err
	}

	switch creds.crab.Status {
	case models.StatusActive:
		return creds, nil
	case models.StatusBanned:
		return nil, models.NewForbiddenError("This account has been banned")
	default:
		return nil, models.NewUnauthorizedError("This account no longer exists")
	}
}

func (s *Server) parseSessionToken(ctx context.Context, raw string) (*credentials, error) {
	invalid := models.NewUnauthorizedError("Invalid or expired token")

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, invalid
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return nil, invalid
	}

	if claims.ID != "" {
		revoked, err := cache.IsRevoked(ctx, claims.ID)
		if err == nil && revoked {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	crab, err := s.crabRepo.GetByID(ctx, uint(id))
	if models.IsNotFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	return &credentials{crab: crab, jti: claims.ID, expiry: claims.ExpiresAt.Time}, nil
}

func (s *Server) setViewer(c *fiber.Ctx, creds *credentials) {
	c.Locals("userID", creds.crab.ID)
	c.Locals(viewerLocal, visibility.NewViewer(creds.crab))
	if creds.jti != "" {
		c.Locals(jtiLocal, creds.jti)
		c.Locals(expiryLocal, creds.expiry)
	}
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, creds.crab.ID)
	c.SetUserContext(ctx)
}

// OptionalAuth attaches the viewer when credentials are sent. Requests
// without credentials continue anonymously; bad credentials are rejected.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds, err := s.authenticate(c)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if creds != nil {
			s.setViewer(c, creds)
		}
		return c.Next()
	}
}

// AuthRequired rejects anonymous requests.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !viewer(c).Anonymous() {
			return c.Next()
		}
		creds, err := s.authenticate(c)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if creds == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		s.setViewer(c, creds)
		return c.Next()
	}
}

// viewer returns the signed-in crab for c, or nil when anonymous.
func viewer(c *fiber.Ctx) *visibility.Viewer {
	v, _ := c.Locals(viewerLocal).(*visibility.Viewer)
	return v
}
