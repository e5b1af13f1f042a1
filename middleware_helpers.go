package auth

import (
	"github.com/cinemalog/auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ClaimsContextListener copies validated claims into the request's user
// context, where GetClaims finds them.
func ClaimsContextListener(c *fiber.Ctx, claims any) error {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return ErrTokenMalformed
	}
	c.SetUserContext(WithClaimsContext(c.UserContext(), authClaims))
	return nil
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
