package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permissions checked by the API. The master API key and admins without a
// permissions claim hold all of them.
const (
	PermDocumentCreate   = "document.create"
	PermDocumentConvert  = "document.convert"
	PermDocumentView     = "document.view"
	PermAmbiguityView    = "ambiguity.view"
	PermAmbiguityResolve = "ambiguity.resolve"
)

var allPermissions = []string{
	PermDocumentCreate,
	PermDocumentConvert,
	PermDocumentView,
	PermAmbiguityView,
	PermAmbiguityResolve,
}

// Can reports whether u holds at least one of permissions.
func (u *AppUser) Can(permissions ...string) bool {
	if u == nil {
		return false
	}
	for _, p := range permissions {
		if slices.Contains(u.Permissions, p) {
			return true
		}
	}
	return false
}

// RequirePermission admits users holding any of permissions.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !user.Can(permissions...) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "Forbidden: missing permission " + strings.Join(permissions, " or "),
				})
			}
			return next(c)
		}
	}
}
