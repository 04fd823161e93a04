package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/permission"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// RequirePermission gates a route on the role permission matrix. It must run
// after AuthMiddleware.Handle so the user is present in locals.
func RequirePermission(action permission.Action, resource permission.Resource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !permission.Evaluate(user.Role, action, resource) {
			return apperrors.NewForbidden("operation not permitted for role")
		}
		return c.Next()
	}
}

// RequireAdmin gates a route on the admin role.
func RequireAdmin(c *fiber.Ctx) error {
	user, ok := UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !user.Role.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return c.Next()
}
