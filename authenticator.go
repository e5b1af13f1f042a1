package auth

import (
	"context"
)

// IdentityProvider verifies credentials
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (*Account, error)
}

// AccountRegistrar creates accounts
type AccountRegistrar interface {
	Execute(ctx context.Context, msg RegisterAccountMessage) (*Account, error)
}

// Session is the result of a successful login or registration
type Session struct {
	Token   string
	Account *Account
}

// Authenticator exchanges credentials for session tokens
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Register(ctx context.Context, msg RegisterAccountMessage) (*Session, error)
	TokenService() TokenService
}

type Auther struct {
	provider     IdentityProvider
	registrar    AccountRegistrar
	tokenService TokenService
	limiter      LoginLimiter
	logger       Logger
	recorder     activityRecorder
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, registrar AccountRegistrar, tokens TokenService) *Auther {
	_, logger := ResolveLogger("auth.authenticator", nil, nil)
	return &Auther{
		provider:     provider,
		registrar:    registrar,
		tokenService: tokens,
		limiter:      NoopLimiter(),
		logger:       logger,
		recorder:     newActivityRecorder(nil, logger, nil),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	_, s.logger = ResolveLogger("auth.authenticator", nil, logger)
	s.recorder.logger = s.logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.recorder.sink = normalizeActivitySink(sink)
	return s
}

// WithLoginLimiter throttles login attempts per LoginRequest.ClientKey
func (s *Auther) WithLoginLimiter(limiter LoginLimiter) *Auther {
	if limiter != nil {
		s.limiter = limiter
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

func (s *Auther) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if req.ClientKey != "" {
		allowed, err := s.limiter.Allow(ctx, req.ClientKey)
		if err != nil {
			// limiter failures fail open
			s.logger.Warn("login limiter error", "error", err)
		} else if !allowed {
			s.emitFailure(ctx, nil, req.Email, ErrTooManyLoginAttempts)
			return nil, ErrTooManyLoginAttempts
		}
	}

	account, err := s.provider.VerifyIdentity(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Debug("login verify identity error", "error", err)
		s.emitFailure(ctx, nil, req.Email, err)
		return nil, err
	}

	token, err := s.tokenService.Generate(account)
	if err != nil {
		s.logger.Error("login failed to sign token", "error", err)
		s.emitFailure(ctx, account, req.Email, err)
		return nil, err
	}

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorFromAccount(account),
		AccountID: account.ID,
		Metadata:  map[string]any{"email": account.Email},
	})

	return &Session{Token: token, Account: account}, nil
}

func (s *Auther) Register(ctx context.Context, msg RegisterAccountMessage) (*Session, error) {
	account, err := s.registrar.Execute(ctx, msg)
	if err != nil {
		return nil, err
	}

	token, err := s.tokenService.Generate(account)
	if err != nil {
		s.logger.Error("register failed to sign token", "error", err)
		return nil, err
	}

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     ActorFromAccount(account),
		AccountID: account.ID,
		To:        string(account.Role),
		Metadata:  map[string]any{"username": account.Username},
	})

	return &Session{Token: token, Account: account}, nil
}

func (s *Auther) emitFailure(ctx context.Context, account *Account, email string, err error) {
	actor := ActorRef{Type: "unknown"}
	if account != nil {
		actor = ActorFromAccount(account)
	}

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     actor,
		AccountID: accountIDOf(account),
		Metadata: map[string]any{
			"email": NormalizeEmail(email),
			"error": err.Error(),
		},
	})
}
