// Package config loads the service configuration.
//
// Values are layered, later sources win:
//
//	defaults -> YAML file -> .env file -> environment -> command line flags
//
// The YAML file is only read when --config or CINEMALOG_CONFIG names one.
// The .env file is optional; variables already present in the environment
// are never overwritten by it.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Environment is the deployment type
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// DefaultSigningKey is only accepted outside production
const DefaultSigningKey = "your-secret-key"

var redisURLPattern = regexp.MustCompile(`^rediss?://`)

// BaseConfig is the root configuration
type BaseConfig struct {
	Environment Environment       `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Auth        AuthConfig        `yaml:"auth"`
	Throttle    ThrottleConfig    `yaml:"throttle"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// FrontendURL is the single origin allowed by CORS, with credentials.
	FrontendURL string `yaml:"frontend_url"`
	// ShutdownTimeoutExpression is a time.ParseDuration expression.
	ShutdownTimeoutExpression string `yaml:"shutdown_timeout"`
}

// PersistenceConfig configures the credential store
type PersistenceConfig struct {
	// DSN is either a sqlite path (optionally sqlite:// prefixed) or a
	// postgres:// URL.
	DSN                   string `yaml:"dsn"`
	PingTimeoutExpression string `yaml:"ping_timeout"`
}

// AuthConfig implements auth.Config
type AuthConfig struct {
	SigningKey      string   `yaml:"signing_key"`
	TokenExpiration int      `yaml:"token_expiration"`
	Issuer          string   `yaml:"issuer"`
	Audience        []string `yaml:"audience"`
	CookieName      string   `yaml:"cookie_name"`
	TokenLookup     string   `yaml:"token_lookup"`
	AuthScheme      string   `yaml:"auth_scheme"`
	OwnerEmail      string   `yaml:"owner_email"`

	production bool
}

// ThrottleConfig configures the per client login limiter. An empty RedisURL
// disables it.
type ThrottleConfig struct {
	RedisURL         string `yaml:"redis_url"`
	MaxAttempts      int    `yaml:"max_attempts"`
	WindowExpression string `yaml:"window"`
}

// Default returns the configuration used before any source is applied
func Default() *BaseConfig {
	return &BaseConfig{
		Environment: Development,
		Server: ServerConfig{
			Addr:                      ":3001",
			FrontendURL:               "http://localhost:5173",
			ShutdownTimeoutExpression: "10s",
		},
		Persistence: PersistenceConfig{
			DSN:                   "cinemalog.db",
			PingTimeoutExpression: "5s",
		},
		Auth: AuthConfig{
			SigningKey:      DefaultSigningKey,
			TokenExpiration: 7 * 24,
			Issuer:          "cinemalog",
			Audience:        []string{"cinemalog:web"},
			CookieName:      "token",
			AuthScheme:      "Bearer",
		},
		Throttle: ThrottleConfig{
			MaxAttempts:      20,
			WindowExpression: "15m",
		},
	}
}

// Validate will validate the configuration
func (c BaseConfig) Validate() error {
	c.Auth.production = c.IsProduction()
	return validation.ValidateStruct(&c,
		validation.Field(&c.Environment, validation.Required, validation.In(Development, Test, Production)),
		validation.Field(&c.Server),
		validation.Field(&c.Persistence),
		validation.Field(&c.Auth),
		validation.Field(&c.Throttle),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.FrontendURL, is.URL),
		validation.Field(&s.ShutdownTimeoutExpression, validation.By(durationRule)),
	)
}

func (p PersistenceConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(durationRule)),
	)
}

func (a AuthConfig) Validate() error {
	keyRules := []validation.Rule{validation.Required}
	if a.production {
		keyRules = append(keyRules, validation.Length(32, 0), validation.By(notDefaultKey))
	}

	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, keyRules...),
		validation.Field(&a.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&a.CookieName, validation.Required),
		validation.Field(&a.TokenLookup, validation.By(a.readsSessionCookie)),
		validation.Field(&a.OwnerEmail, is.Email),
	)
}

func (t ThrottleConfig) Validate() error {
	var attemptRules []validation.Rule
	if t.Enabled() {
		attemptRules = append(attemptRules, validation.Required, validation.Min(1))
	}

	return validation.ValidateStruct(&t,
		validation.Field(&t.RedisURL, validation.Match(redisURLPattern).Error("must be a redis:// or rediss:// URL")),
		validation.Field(&t.MaxAttempts, attemptRules...),
		validation.Field(&t.WindowExpression, validation.By(durationRule)),
	)
}

// readsSessionCookie rejects a lookup that ignores the cookie SessionCookies writes
func (a AuthConfig) readsSessionCookie(value any) error {
	lookup, _ := value.(string)
	if strings.TrimSpace(lookup) == "" {
		return nil
	}
	for _, source := range strings.Split(lookup, ",") {
		if strings.TrimSpace(source) == "cookie:"+a.CookieName {
			return nil
		}
	}
	return fmt.Errorf("must include cookie:%s", a.CookieName)
}

func notDefaultKey(value any) error {
	if key, _ := value.(string); key == DefaultSigningKey {
		return fmt.Errorf("the default signing key is not allowed in production")
	}
	return nil
}

func durationRule(value any) error {
	expr, _ := value.(string)
	if expr == "" {
		return nil
	}
	if _, err := time.ParseDuration(expr); err != nil {
		return fmt.Errorf("invalid duration %q", expr)
	}
	return nil
}

// IsProduction reports whether secure cookies and strict checks apply
func (c BaseConfig) IsProduction() bool {
	return c.Environment == Production
}

// GetAuth returns the auth section bound to the current environment
func (c *BaseConfig) GetAuth() AuthConfig {
	auth := c.Auth
	auth.production = c.IsProduction()
	return auth
}

func (s ServerConfig) GetShutdownTimeout() time.Duration {
	return mustDuration(s.ShutdownTimeoutExpression, 10*time.Second)
}

func (p PersistenceConfig) GetPingTimeout() time.Duration {
	return mustDuration(p.PingTimeoutExpression, 5*time.Second)
}

func (t ThrottleConfig) Enabled() bool {
	return strings.TrimSpace(t.RedisURL) != ""
}

func (t ThrottleConfig) GetWindow() time.Duration {
	return mustDuration(t.WindowExpression, 15*time.Minute)
}

// mustDuration expects expr to have passed Validate
func mustDuration(expr string, fallback time.Duration) time.Duration {
	if expr == "" {
		return fallback
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(fmt.Sprintf("unable to parse duration: expr %s", expr))
	}
	return dur
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAudience() []string {
	return a.Audience
}

func (a AuthConfig) GetCookieName() string {
	return a.CookieName
}

// GetTokenLookup defaults to the session cookie, then the Authorization header
func (a AuthConfig) GetTokenLookup() string {
	if strings.TrimSpace(a.TokenLookup) != "" {
		return a.TokenLookup
	}
	return "cookie:" + a.CookieName + ",header:Authorization"
}

func (a AuthConfig) GetAuthScheme() string {
	return a.AuthScheme
}

func (a AuthConfig) GetOwnerEmail() string {
	return a.OwnerEmail
}

func (a AuthConfig) IsProduction() bool {
	return a.production
}
