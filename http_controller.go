package auth

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	// ClientKey identifies the caller for the login limiter, usually the IP
	ClientKey string `form:"-" json:"-"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ProfileUpdatePayload is the self-service profile body. Absent fields are kept.
type ProfileUpdatePayload struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
	Location    *string `json:"location"`
	BannerURL   *string `json:"bannerUrl"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Length(1, 100)),
		validation.Field(&r.Bio, validation.Length(0, 500)),
		validation.Field(&r.AvatarURL, validation.Length(0, 2048)),
		validation.Field(&r.Location, validation.Length(0, 100)),
		validation.Field(&r.BannerURL, validation.Length(0, 2048)),
	)
}

// AuthControllerRoutes are the paths mounted by RegisterAuthRoutes
type AuthControllerRoutes struct {
	Me       string
	Login    string
	Register string
	Logout   string
	Profile  string
}

// AuthController serves the /auth endpoints
type AuthController struct {
	Logger       Logger
	Config       Config
	Auther       Authenticator
	Resolver     *SessionResolver
	Accounts     Accounts
	Cookies      SessionCookies
	Guard        *RoleGuard
	Routes       *AuthControllerRoutes
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		_, c.Logger = ResolveLogger("auth.controller", nil, logger)
		return c
	}
}

func WithAuthControllerErrorHandler(handler fiber.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithAuthControllerCookies(cookies SessionCookies) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Cookies = cookies
		return c
	}
}

// NewAuthController wires the controller. auther, resolver and accounts are required.
func NewAuthController(cfg Config, auther Authenticator, resolver *SessionResolver, accounts Accounts, opts ...AuthControllerOption) *AuthController {
	_, logger := ResolveLogger("auth.controller", nil, nil)
	c := &AuthController{
		Logger:   logger,
		Config:   cfg,
		Auther:   auther,
		Resolver: resolver,
		Accounts: accounts,
		Cookies:  NewSessionCookies(cfg, nil),
		Routes: &AuthControllerRoutes{
			Me:       "/me",
			Login:    "/login",
			Register: "/register",
			Logout:   "/logout",
			Profile:  "/profile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger)
	}

	if c.Guard == nil {
		c.Guard = NewRoleGuard(c.ErrorHandler)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Resolver == nil {
		panic("Missing SessionResolver in auth controller...")
	}

	if c.Accounts == nil {
		panic("Missing Accounts repository in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the controller on app, usually the /auth group
func RegisterAuthRoutes(app fiber.Router, c *AuthController) {
	app.Get(c.Routes.Me, c.Resolver.CredentialGate(c.Config, c.ErrorHandler), c.Me).
		Name("auth.me")

	app.Post(c.Routes.Login, c.LoginPost).Name("auth.login")
	app.Post(c.Routes.Register, c.RegisterPost).Name("auth.register")
	app.Post(c.Routes.Logout, c.LogOut).Name("auth.logout")

	app.Patch(c.Routes.Profile, c.Resolver.Middleware(), c.Guard.RequireAuth(), c.ProfileUpdate).
		Name("auth.profile.update")
	app.Get(c.Routes.Profile+"/:username", c.ProfileShow).
		Name("auth.profile.show")
}

// Me reports the caller's live account, banned accounts included, so that
// connected clients can observe a ban. A deleted account is 401.
func (a *AuthController) Me(ctx *fiber.Ctx) error {
	claims, ok := GetFiberClaims(ctx, "claims")
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	account, err := a.Resolver.ObserveClaims(ctx.UserContext(), claims)
	if err != nil {
		if HasTextCode(err, TextCodeAccountNotFound) {
			err = ErrUnauthenticated
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": account})
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := bindJSON(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	payload.ClientKey = ctx.IP()

	session, err := a.Auther.Login(ctx.UserContext(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Cookies.Set(ctx, session.Token)

	return ctx.JSON(fiber.Map{
		"message": "Login successful",
		"user":    session.Account,
	})
}

func (a *AuthController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegisterAccountMessage)

	if err := bindJSON(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	session, err := a.Auther.Register(ctx.UserContext(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Cookies.Set(ctx, session.Token)

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created successfully",
		"user":    session.Account,
	})
}

// LogOut clears the credential cookie. It always succeeds.
func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	a.Cookies.Clear(ctx)
	return ctx.JSON(fiber.Map{"message": "Logged out successfully"})
}

// ProfileUpdate applies self-service changes. The banner is only stored for
// the owner and silently dropped for everyone else.
func (a *AuthController) ProfileUpdate(ctx *fiber.Ctx) error {
	account := CurrentAccount(ctx)
	payload := new(ProfileUpdatePayload)

	if err := bindJSON(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	update := ProfileUpdate{
		DisplayName: trimmed(payload.DisplayName),
		Bio:         payload.Bio,
		AvatarURL:   trimmed(payload.AvatarURL),
		Location:    trimmed(payload.Location),
	}

	if account.IsOwner() {
		update.BannerURL = trimmed(payload.BannerURL)
	}

	updated, err := a.Accounts.UpdateProfile(ctx.UserContext(), account.ID, update)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    updated,
	})
}

// ProfileShow returns the public view of an account
func (a *AuthController) ProfileShow(ctx *fiber.Ctx) error {
	account, err := a.Accounts.GetByUsername(ctx.UserContext(), NormalizeUsername(ctx.Params("username")))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": account.Public()})
}

// AdminUsernamePayload is the body of promote, demote, ban and unban
type AdminUsernamePayload struct {
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Validate will validate the payload
func (r AdminUsernamePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

// BroadcastPayload is the body of POST /admin/broadcast
type BroadcastPayload struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Validate will validate the payload
func (r BroadcastPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// CommandPayload is the body of POST /admin/command
type CommandPayload struct {
	Command string `json:"command"`
}

// AdminController serves the /admin endpoints
type AdminController struct {
	Logger       Logger
	Admin        *AdminService
	Commands     *CommandInterpreter
	Resolver     *SessionResolver
	Guard        *RoleGuard
	ErrorHandler fiber.ErrorHandler
}

type AdminControllerOption func(*AdminController) *AdminController

func WithAdminControllerErrorHandler(handler fiber.ErrorHandler) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithAdminControllerLogger(logger Logger) AdminControllerOption {
	return func(c *AdminController) *AdminController {
		_, c.Logger = ResolveLogger("auth.admin.controller", nil, logger)
		return c
	}
}

// NewAdminController wires the controller
func NewAdminController(admin *AdminService, commands *CommandInterpreter, resolver *SessionResolver, opts ...AdminControllerOption) *AdminController {
	_, logger := ResolveLogger("auth.admin.controller", nil, nil)
	c := &AdminController{
		Logger:   logger,
		Admin:    admin,
		Commands: commands,
		Resolver: resolver,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger)
	}

	if c.Guard == nil {
		c.Guard = NewRoleGuard(c.ErrorHandler)
	}

	if c.Admin == nil || c.Resolver == nil {
		panic("Missing AdminService or SessionResolver in admin controller...")
	}

	if c.Commands == nil {
		c.Commands = NewCommandInterpreter(c.Admin)
	}

	return c
}

// RegisterAdminRoutes mounts the controller on app, usually the /admin group.
// Everything but the announcement feed requires an admin tier caller.
func RegisterAdminRoutes(app fiber.Router, c *AdminController) {
	app.Get("/announcements", c.AnnouncementsIndex).Name("admin.announcements.index")

	app.Get("/stats", c.guarded(c.Stats)...).Name("admin.stats")
	app.Get("/users", c.guarded(c.Users)...).Name("admin.users")
	app.Post("/promote", c.guarded(c.Promote)...).Name("admin.promote")
	app.Post("/demote", c.guarded(c.Demote)...).Name("admin.demote")
	app.Post("/ban", c.guarded(c.Ban)...).Name("admin.ban")
	app.Post("/unban", c.guarded(c.Unban)...).Name("admin.unban")
	app.Post("/command", c.guarded(c.Command)...).Name("admin.command")
	app.Post("/broadcast", c.guarded(c.Broadcast)...).Name("admin.broadcast")
	app.Patch("/announcements/:id/deactivate", c.guarded(c.Deactivate)...).Name("admin.announcements.deactivate")
}

func (a *AdminController) guarded(handler fiber.Handler) []fiber.Handler {
	return []fiber.Handler{a.Resolver.Middleware(), a.Guard.RequireAdminTier(), handler}
}

func (a *AdminController) Stats(ctx *fiber.Ctx) error {
	stats, err := a.Admin.Stats(ctx.UserContext(), CurrentAccount(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(fiber.Map{"stats": stats})
}

func (a *AdminController) Users(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	accounts, err := a.Admin.ListAccounts(ctx.UserContext(), CurrentAccount(ctx), limit, offset)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(fiber.Map{"users": accounts})
}

func (a *AdminController) Promote(ctx *fiber.Ctx) error {
	payload, err := a.usernamePayload(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if strings.TrimSpace(payload.Role) == "" {
		return a.ErrorHandler(ctx, invalidArgument("username and role are required", nil))
	}

	account, err := a.Admin.Promote(ctx.UserContext(), CurrentAccount(ctx), payload.Username, payload.Role)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"message": "User promoted to " + account.Role.String(),
		"user":    account,
	})
}

func (a *AdminController) Demote(ctx *fiber.Ctx) error {
	payload, err := a.usernamePayload(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Admin.Demote(ctx.UserContext(), CurrentAccount(ctx), payload.Username)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"message": "User demoted to " + account.Role.String(),
		"user":    account,
	})
}

func (a *AdminController) Ban(ctx *fiber.Ctx) error {
	payload, err := a.usernamePayload(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	opts := []BanOption{WithBanReason(strings.TrimSpace(payload.Reason))}
	if payload.ExpiresAt != nil {
		opts = append(opts, WithBanExpiry(*payload.ExpiresAt))
	}

	account, err := a.Admin.Ban(ctx.UserContext(), CurrentAccount(ctx), payload.Username, opts...)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"message": "User banned successfully",
		"user":    account,
	})
}

func (a *AdminController) Unban(ctx *fiber.Ctx) error {
	payload, err := a.usernamePayload(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Admin.Unban(ctx.UserContext(), CurrentAccount(ctx), payload.Username)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"message": "User unbanned successfully",
		"user":    account,
	})
}

func (a *AdminController) Command(ctx *fiber.Ctx) error {
	payload := new(CommandPayload)
	if err := bindJSON(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if strings.TrimSpace(payload.Command) == "" {
		return a.ErrorHandler(ctx, invalidArgument("command is required", nil))
	}

	result, err := a.Commands.Execute(ctx.UserContext(), CurrentAccount(ctx), payload.Command)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(result)
}

func (a *AdminController) Broadcast(ctx *fiber.Ctx) error {
	payload := new(BroadcastPayload)
	if err := bindJSON(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, validationError(err))
	}

	record, err := a.Admin.Broadcast(ctx.UserContext(), CurrentAccount(ctx), BroadcastRequest{
		Title:     payload.Title,
		Content:   payload.Content,
		ExpiresAt: payload.ExpiresAt,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Announcement created successfully",
		"announcement": record,
	})
}

func (a *AdminController) AnnouncementsIndex(ctx *fiber.Ctx) error {
	records, err := a.Admin.ActiveAnnouncements(ctx.UserContext())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(fiber.Map{"announcements": records})
}

func (a *AdminController) Deactivate(ctx *fiber.Ctx) error {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return a.ErrorHandler(ctx, invalidArgument("invalid announcement id", map[string]any{"id": ctx.Params("id")}))
	}

	if _, err := a.Admin.DeactivateAnnouncement(ctx.UserContext(), CurrentAccount(ctx), id); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "Announcement deactivated"})
}

func (a *AdminController) usernamePayload(ctx *fiber.Ctx) (*AdminUsernamePayload, error) {
	payload := new(AdminUsernamePayload)
	if err := bindJSON(ctx, payload); err != nil {
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}

	return payload, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
