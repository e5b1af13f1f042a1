package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Logger is the logging surface used across the package.
// Arguments after msg are key/value pairs, so *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers per component
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetCookieName() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetOwnerEmail() string
	IsProduction() bool
}

// TokenService mints and validates session credentials
type TokenService interface {
	Generate(account *Account) (string, error)
	Validate(tokenString string) (*JWTClaims, error)
}

// AccountReader is the read side of the credential store the resolver needs
type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
}

// LoginLimiter throttles login attempts per caller key, usually the client IP
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// NoopLimiter never throttles
func NoopLimiter() LoginLimiter { return noopLimiter{} }

// ResolveLogger returns a provider and a logger for the given component.
// An explicit logger wins, then the provider, then the default logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider == nil {
		provider = defProvider{}
	}

	if logger != nil {
		return provider, logger
	}

	if l := provider.GetLogger(name); l != nil {
		return provider, l
	}

	return provider, defLogger{name: name}
}

type slogProvider struct {
	root *slog.Logger
}

// NewSlogProvider adapts a slog logger, tagging children with a logger attribute
func NewSlogProvider(root *slog.Logger) LoggerProvider {
	if root == nil {
		root = slog.Default()
	}
	return slogProvider{root: root}
}

func (p slogProvider) GetLogger(name string) Logger {
	return p.root.With(slog.String("logger", name))
}

type defProvider struct{}

func (defProvider) GetLogger(name string) Logger {
	return defLogger{name: name}
}

type defLogger struct {
	name string
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(d.line("ERR", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(d.line("WRN", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(d.line("INF", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print(d.line("DBG", msg, args...))
}

func (d defLogger) line(level, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH ")
	if d.name != "" {
		b.WriteString(d.name + ": ")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// nowFunc is the clock signature injected into services
type nowFunc func() time.Time

func resolveNow(now nowFunc) nowFunc {
	if now == nil {
		return time.Now
	}
	return now
}
