package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// DefaultCookieName is the cookie carrying the session credential
const DefaultCookieName = "token"

// ErrorResponse is the JSON body returned for every failed request
type ErrorResponse struct {
	Error    string         `json:"error"`
	TextCode string         `json:"text_code,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewErrorHandler returns a fiber error handler that renders go-errors
// values as ErrorResponse bodies with the matching status code.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	_, logger = ResolveLogger("auth.http", nil, logger)

	return func(c *fiber.Ctx, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
			}
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := HTTPStatus(richErr)
		if status >= fiber.StatusInternalServerError {
			logger.Error(
				"request failed",
				"path", c.OriginalURL(),
				"error", richErr.Error(),
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug(
				"request rejected",
				"path", c.OriginalURL(),
				"status", status,
				"text_code", richErr.TextCode,
			)
		}

		return c.Status(status).JSON(ErrorResponse{
			Error:    richErr.Message,
			TextCode: richErr.TextCode,
			Metadata: richErr.Metadata,
		})
	}
}

// SessionCookies writes and clears the credential cookie
type SessionCookies struct {
	name       string
	secure     bool
	sameSite   string
	expiration time.Duration
	now        nowFunc
}

// NewSessionCookies builds the cookie writer from the auth config.
// Production deployments get Secure cookies, SameSite is None so the
// frontend may live on another origin.
func NewSessionCookies(cfg Config, now func() time.Time) SessionCookies {
	cookies := SessionCookies{
		name:       DefaultCookieName,
		sameSite:   fiber.CookieSameSiteNoneMode,
		expiration: time.Duration(DefaultTokenExpiration) * time.Hour,
		now:        resolveNow(now),
	}

	if cfg == nil {
		return cookies
	}

	if name := cfg.GetCookieName(); name != "" {
		cookies.name = name
	}
	if hours := cfg.GetTokenExpiration(); hours > 0 {
		cookies.expiration = time.Duration(hours) * time.Hour
	}
	cookies.secure = cfg.IsProduction()

	return cookies
}

// Name is the cookie name
func (s SessionCookies) Name() string {
	return s.name
}

// Set stores token on the response
func (s SessionCookies) Set(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.expiration),
		MaxAge:   int(s.expiration.Seconds()),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: s.sameSite,
	})
}

// Clear expires the credential cookie
func (s SessionCookies) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Expires:  s.now().Add(-time.Hour * (24 * 365)),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: s.sameSite,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into field/message pairs
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

// validationError converts a payload validation failure into ErrInvalidArgument
func validationError(err error) error {
	fields := FormatValidationErrorToMap(err)
	metadata := make(map[string]any, len(fields))
	for k, v := range fields {
		metadata[k] = v
	}
	return invalidArgument("validation failed", map[string]any{"fields": metadata})
}

// bindJSON parses the request body into payload, mapping failures to ErrInvalidArgument
func bindJSON(c *fiber.Ctx, payload any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(payload); err != nil {
		return invalidArgument("invalid request body", map[string]any{"cause": err.Error()})
	}
	return nil
}
