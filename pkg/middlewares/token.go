package middlewares

import (
	"strings"

	"media_pipeline/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenIdentity caller identity from token, set c.locals name
	TokenIdentity = "identity"
	//TokenAdmin admin flag from token, set c.locals name
	TokenAdmin = "admin"
)

// BearerToken returns the token of an "Authorization: Bearer" header, "" otherwise
func BearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// JWTMiddleware validates the JWT from the Authorization header, the auth query or the auth_token cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}
		// 如果查詢參數中沒有 token，則嘗試從 Cookie 中獲取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := token.ValidateTokenFunc(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenIdentity, claims.Username)
		c.Locals(TokenAdmin, claims.Admin)
		return c.Next()
	}
}

// Identity the caller identity set by JWTMiddleware
func Identity(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenIdentity).(string)
	return id
}
