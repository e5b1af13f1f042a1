package auth

import (
	"context"
	"strings"

	"github.com/cinemalog/auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// SessionResolver turns a credential into a live account. Every call
// re-reads the store, the claims are never trusted for role or ban state.
type SessionResolver struct {
	tokens     TokenService
	accounts   AccountReader
	extractors []jwtware.JWTExtractor
	logger     Logger
	provider   LoggerProvider
}

// SessionResolverOption customizes the resolver
type SessionResolverOption func(*SessionResolver)

// WithResolverTokenLookup overrides where credentials are read from
func WithResolverTokenLookup(lookup, authScheme string) SessionResolverOption {
	return func(r *SessionResolver) {
		if strings.TrimSpace(lookup) != "" {
			r.extractors = jwtware.GetExtractors(lookup, authScheme)
		}
	}
}

// WithResolverLogger overrides the logger
func WithResolverLogger(logger Logger) SessionResolverOption {
	return func(r *SessionResolver) {
		r.provider, r.logger = ResolveLogger("auth.resolver", r.provider, logger)
	}
}

// WithResolverLoggerProvider sets the provider used to name the logger
func WithResolverLoggerProvider(provider LoggerProvider) SessionResolverOption {
	return func(r *SessionResolver) {
		r.provider, r.logger = ResolveLogger("auth.resolver", provider, nil)
	}
}

// NewSessionResolver builds a resolver reading cookie "token" then the bearer header
func NewSessionResolver(tokens TokenService, accounts AccountReader, opts ...SessionResolverOption) *SessionResolver {
	provider, logger := ResolveLogger("auth.resolver", nil, nil)
	r := &SessionResolver{
		tokens:     tokens,
		accounts:   accounts,
		extractors: jwtware.GetExtractors("cookie:token,header:Authorization", "Bearer"),
		logger:     logger,
		provider:   provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve is the hard resolution used on authenticated paths.
// Missing, invalid or expired credentials, missing accounts and banned
// accounts all yield ErrUnauthenticated.
func (r *SessionResolver) Resolve(ctx context.Context, rawToken string) (*Account, error) {
	account, err := r.Observe(ctx, rawToken)
	if err != nil {
		if HasTextCode(err, TextCodeAccountNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if account.IsBanned {
		r.logger.Debug("rejecting banned account", "account_id", account.ID)
		return nil, withMetadata(ErrUnauthenticated, map[string]any{"reason": "banned"})
	}

	return account, nil
}

// ResolveOptional is the soft resolution: any failure resolves to anonymous (nil).
// Store failures are logged.
func (r *SessionResolver) ResolveOptional(ctx context.Context, rawToken string) *Account {
	if rawToken == "" {
		return nil
	}

	account, err := r.Resolve(ctx, rawToken)
	if err != nil {
		if HTTPStatus(err) >= fiber.StatusInternalServerError {
			r.logger.Error("session resolution failed", "error", err)
		}
		return nil
	}
	return account
}

// Observe validates the credential and returns the live account whatever its
// ban state. It backs the self-status endpoint, which is how a connected
// client learns it has been banned. A missing account is ErrAccountNotFound.
func (r *SessionResolver) Observe(ctx context.Context, rawToken string) (*Account, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := r.tokens.Validate(rawToken)
	if err != nil {
		return nil, unauthenticatedFrom(err)
	}

	return r.ObserveClaims(ctx, claims)
}

// ObserveClaims loads the account referenced by already validated claims
func (r *SessionResolver) ObserveClaims(ctx context.Context, claims AuthClaims) (*Account, error) {
	if claims == nil || claims.AccountID() == 0 {
		return nil, ErrUnauthenticated
	}

	account, err := r.accounts.GetByID(ctx, claims.AccountID())
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Extract reads the raw credential from the request, empty when absent
func (r *SessionResolver) Extract(c *fiber.Ctx) string {
	raw, err := jwtware.ExtractRawTokenFromContext(c, r.extractors)
	if err != nil {
		return ""
	}
	return raw
}

// Middleware resolves the caller softly and stores the account on the request.
// Anonymous callers pass through; guards decide what they may reach.
// Credential and ban failures resolve as anonymous. Store failures are kept
// on the request so guarded routes answer with an internal error.
func (r *SessionResolver) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := r.Extract(c)
		if raw == "" {
			return c.Next()
		}

		account, err := r.Resolve(c.UserContext(), raw)
		switch {
		case err == nil:
			SetAccount(c, account)
		case HTTPStatus(err) >= fiber.StatusInternalServerError:
			r.logger.Error("session resolution failed", "path", c.Path(), "error", err)
			SetResolutionError(c, err)
		}
		return c.Next()
	}
}

// CredentialGate is the hard credential check used by the self-status endpoint.
// Validated claims are stored under the "claims" Locals key and on the user
// context.
func (r *SessionResolver) CredentialGate(cfg Config, errorHandler fiber.ErrorHandler) fiber.Handler {
	lookup, scheme := "", ""
	if cfg != nil {
		lookup, scheme = cfg.GetTokenLookup(), cfg.GetAuthScheme()
	}

	gate := jwtware.Config{
		ContextKey:  "claims",
		TokenLookup: lookup,
		AuthScheme:  scheme,
		Validator: func(token string) (any, error) {
			claims, err := r.tokens.Validate(token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return errorHandler(c, unauthenticatedFrom(err))
		},
	}
	RegisterValidationListeners(&gate, ClaimsContextListener)

	return jwtware.New(gate)
}

func unauthenticatedFrom(err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category == errors.CategoryAuth {
		return withMetadata(ErrUnauthenticated, map[string]any{"cause": richErr.TextCode})
	}
	return ErrUnauthenticated
}
