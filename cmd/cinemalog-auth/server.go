package main

import (
	"github.com/cinemalog/auth"
	"github.com/cinemalog/auth/activitymap"
	"github.com/cinemalog/auth/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/uptrace/bun"
)

type services struct {
	repo     auth.RepositoryManager
	tokens   *auth.TokenServiceImpl
	resolver *auth.SessionResolver
	auther   *auth.Auther
	admin    *auth.AdminService
	commands *auth.CommandInterpreter
}

func newServices(cfg *config.BaseConfig, db *bun.DB, provider auth.LoggerProvider, limiter auth.LoginLimiter) *services {
	authCfg := cfg.GetAuth()
	sink := activitymap.NewLoggingSink(provider.GetLogger("auth.activity"))

	repo := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenServiceFromConfig(authCfg,
		auth.WithTokenLogger(provider.GetLogger("auth.tokens")),
	)

	resolver := auth.NewSessionResolver(tokens, repo.Accounts(),
		auth.WithResolverTokenLookup(authCfg.GetTokenLookup(), authCfg.GetAuthScheme()),
		auth.WithResolverLoggerProvider(provider),
	)

	identities := auth.NewAccountProvider(repo.Accounts()).
		WithLoggerProvider(provider)

	registrar := auth.NewRegisterAccountHandler(repo, authCfg.GetOwnerEmail())

	auther := auth.NewAuthenticator(identities, registrar, tokens).
		WithLogger(provider.GetLogger("auth.authenticator")).
		WithActivitySink(sink).
		WithLoginLimiter(limiter)

	admin := auth.NewAdminService(repo,
		auth.WithAdminActivitySink(sink),
		auth.WithAdminLoggerProvider(provider),
	)

	commands := auth.NewCommandInterpreter(admin,
		auth.WithCommandActivitySink(sink),
		auth.WithCommandLogger(provider.GetLogger("auth.commands")),
	)

	return &services{
		repo:     repo,
		tokens:   tokens,
		resolver: resolver,
		auther:   auther,
		admin:    admin,
		commands: commands,
	}
}

// newApp mounts every route under /api
func newApp(cfg *config.BaseConfig, svc *services, provider auth.LoggerProvider) *fiber.App {
	errorHandler := auth.NewErrorHandler(provider.GetLogger("auth.http"))

	app := fiber.New(fiber.Config{
		AppName:               "cinemalog-auth",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.FrontendURL,
		AllowCredentials: true,
	}))

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}).Name("health")

	authController := auth.NewAuthController(cfg.GetAuth(), svc.auther, svc.resolver, svc.repo.Accounts(),
		auth.WithAuthControllerErrorHandler(errorHandler),
		auth.WithAuthControllerLogger(provider.GetLogger("auth.controller")),
	)
	auth.RegisterAuthRoutes(api.Group("/auth"), authController)

	adminController := auth.NewAdminController(svc.admin, svc.commands, svc.resolver,
		auth.WithAdminControllerErrorHandler(errorHandler),
		auth.WithAdminControllerLogger(provider.GetLogger("auth.admin.controller")),
	)
	auth.RegisterAdminRoutes(api.Group("/admin"), adminController)

	return app
}
