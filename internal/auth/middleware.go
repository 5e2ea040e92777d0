package auth

import (
	"errors"
	"strings"

	"stocktrack-backend/internal/config"
	"stocktrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CtxActorKey holds the models.Actor resolved for the request.
const CtxActorKey = "actor"

// JWTMiddleware authenticates "Authorization: Bearer <token>".
func JWTMiddleware(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header missing")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		return authenticate(c, cfg, db, parts[1])
	}
}

// QueryTokenMiddleware authenticates "?token=<token>". Browsers cannot set
// headers on a WebSocket handshake.
func QueryTokenMiddleware(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token query parameter missing")
		}
		return authenticate(c, cfg, db, token)
	}
}

func authenticate(c *fiber.Ctx, cfg *config.Config, db *gorm.DB, tokenStr string) error {
	claims, err := ParseToken(cfg.JWTSecret, tokenStr)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	// Role and active flag come from the database, not the token, so a
	// deactivation takes effect immediately.
	actor, err := LoadActor(db.WithContext(c.UserContext()), claims.UserID)
	if err != nil {
		return err
	}

	c.Locals(CtxActorKey, actor)
	return c.Next()
}

// LoadActor resolves an active user. Unknown and inactive users are 401.
func LoadActor(db *gorm.DB, id uuid.UUID) (models.Actor, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}
		return models.Actor{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load user")
	}
	if !user.IsActive {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "User is inactive")
	}

	return models.Actor{
		ID:           user.ID,
		Name:         user.Name,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		IsActive:     user.IsActive,
	}, nil
}

// ActorFrom returns the authenticated actor stored by the middleware.
func ActorFrom(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(CtxActorKey).(models.Actor)
	return actor, ok
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
		}

		for _, r := range allowedRoles {
			if r == actor.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
	}
}
