package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// HeaderPractitionerID carries the authenticated user id, set by the API gateway
	HeaderPractitionerID = "X-Practitioner-ID"
	// ContextKeyPractitionerID is the context key for the practitioner id
	ContextKeyPractitionerID = "practitioner_id"
)

// RequirePractitioner rejects requests that reach the API without a practitioner id
func RequirePractitioner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderPractitionerID))
			if id == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"erro": "Usuário não autenticado",
				})
			}
			c.Set(ContextKeyPractitionerID, id)
			return next(c)
		}
	}
}

// GetPractitionerID retrieves the practitioner id from context
func GetPractitionerID(c echo.Context) string {
	id, ok := c.Get(ContextKeyPractitionerID).(string)
	if !ok {
		return ""
	}
	return id
}
