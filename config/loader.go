package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the YAML file when --config is not given
const EnvConfigPath = "CINEMALOG_CONFIG"

// Loader builds a BaseConfig from the layered sources
type Loader struct {
	name      string
	args      []string
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

type LoaderOption func(*Loader)

// WithArgs sets the command line, without the program name
func WithArgs(args []string) LoaderOption {
	return func(l *Loader) {
		l.args = args
	}
}

// WithLookupEnv replaces os.LookupEnv
func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		if fn != nil {
			l.lookupEnv = fn
		}
	}
}

// WithReadFile replaces os.ReadFile for the YAML and .env files
func WithReadFile(fn func(string) ([]byte, error)) LoaderOption {
	return func(l *Loader) {
		if fn != nil {
			l.readFile = fn
		}
	}
}

func WithProgramName(name string) LoaderOption {
	return func(l *Loader) {
		if name != "" {
			l.name = name
		}
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		name:      "cinemalog-auth",
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is NewLoader(opts...).Load()
func Load(opts ...LoaderOption) (*BaseConfig, error) {
	return NewLoader(opts...).Load()
}

type flagValues struct {
	configPath  string
	envFile     string
	addr        string
	dsn         string
	environment string
	ownerEmail  string
	redisURL    string
}

func (l *Loader) flagSet() (*pflag.FlagSet, *flagValues) {
	values := &flagValues{}

	flagSet := pflag.NewFlagSet(l.name, pflag.ContinueOnError)
	flagSet.StringVar(&values.configPath, "config", "", "path to a YAML config file (env "+EnvConfigPath+")")
	flagSet.StringVar(&values.envFile, "env-file", ".env", "dotenv file, ignored when missing")
	flagSet.StringVar(&values.addr, "addr", "", "listen address, e.g. :3001")
	flagSet.StringVar(&values.dsn, "dsn", "", "sqlite path or postgres:// URL")
	flagSet.StringVar(&values.environment, "environment", "", "development, test or production")
	flagSet.StringVar(&values.ownerEmail, "owner-email", "", "email that receives the owner role at registration")
	flagSet.StringVar(&values.redisURL, "redis-url", "", "redis URL for login throttling")

	return flagSet, values
}

// Usage returns the flag help text
func (l *Loader) Usage() string {
	flagSet, _ := l.flagSet()
	return flagSet.FlagUsages()
}

// Load applies every source and validates the result. pflag.ErrHelp is
// returned unwrapped so callers can print usage.
func (l *Loader) Load() (*BaseConfig, error) {
	flagSet, flags := l.flagSet()
	if err := flagSet.Parse(l.args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid command line")
	}

	cfg := Default()

	configPath := flags.configPath
	if configPath == "" {
		configPath, _ = l.lookupEnv(EnvConfigPath)
	}
	if configPath != "" {
		if err := l.applyFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	dotenv, err := l.readDotenv(flags.envFile)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := l.lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	applyFlags(cfg, flagSet, flags)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}

	cfg.Auth.production = cfg.IsProduction()
	return cfg, nil
}

func (l *Loader) applyFile(cfg *BaseConfig, path string) error {
	raw, err := l.readFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to parse config file").
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}

func (l *Loader) readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	raw, err := l.readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to read env file").
			WithMetadata(map[string]any{"path": path})
	}

	values, err := godotenv.UnmarshalBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse env file").
			WithMetadata(map[string]any{"path": path})
	}
	return values, nil
}

func applyEnv(cfg *BaseConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "invalid integer in environment").
				WithMetadata(map[string]any{"key": key})
		}
		*dst = n
		return nil
	}

	var env string
	str("NODE_ENV", &env)
	str("CINEMALOG_ENV", &env)
	if env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}

	var port string
	str("PORT", &port)
	if port != "" {
		if strings.Contains(port, ":") {
			cfg.Server.Addr = port
		} else {
			cfg.Server.Addr = ":" + port
		}
	}
	str("FRONTEND_URL", &cfg.Server.FrontendURL)

	str("DB_PATH", &cfg.Persistence.DSN)
	str("DATABASE_URL", &cfg.Persistence.DSN)

	str("JWT_SECRET", &cfg.Auth.SigningKey)
	str("OWNER_EMAIL", &cfg.Auth.OwnerEmail)
	if err := num("TOKEN_EXPIRATION_HOURS", &cfg.Auth.TokenExpiration); err != nil {
		return err
	}

	str("REDIS_URL", &cfg.Throttle.RedisURL)
	str("LOGIN_RATE_WINDOW", &cfg.Throttle.WindowExpression)
	return num("LOGIN_RATE_LIMIT", &cfg.Throttle.MaxAttempts)
}

func applyFlags(cfg *BaseConfig, flagSet *pflag.FlagSet, flags *flagValues) {
	if flagSet.Changed("addr") {
		cfg.Server.Addr = flags.addr
	}
	if flagSet.Changed("dsn") {
		cfg.Persistence.DSN = flags.dsn
	}
	if flagSet.Changed("environment") {
		cfg.Environment = Environment(strings.ToLower(flags.environment))
	}
	if flagSet.Changed("owner-email") {
		cfg.Auth.OwnerEmail = flags.ownerEmail
	}
	if flagSet.Changed("redis-url") {
		cfg.Throttle.RedisURL = flags.redisURL
	}
}
