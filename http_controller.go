package enroll

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// IdentityTokenValidator verifies a directory-issued ID token and maps it
// to an identity. OIDCValidator is the production implementation.
type IdentityTokenValidator interface {
	Validate(idToken string) (*DirectoryIdentity, error)
}

// RegisterEnrollRoutes mounts the gateway's HTTP surface: session exchange,
// admin link management, and the public enrollment endpoints.
func RegisterEnrollRoutes[T any](app router.Router[T], opts ...EnrollControllerOption) {
	controller := NewEnrollController(opts...)

	admin := controller.Sessions.AdminRoute(controller.Sessions.ErrorHandler)

	app.Post(controller.Routes.Session, controller.SessionCreate).
		SetName("session.post")
	app.Get(controller.Routes.Logout, controller.SessionDestroy).
		SetName("session.delete")

	app.Post(controller.Routes.AdminLinks, controller.InviteCreate, admin).
		SetName("admin-links.post")
	app.Get(controller.Routes.AdminLinks, controller.InviteList, admin).
		SetName("admin-links.get")
	app.Delete(controller.Routes.AdminLinks+"/expired", controller.InviteSweep, admin).
		SetName("admin-links-sweep.delete")
	app.Get(controller.Routes.AdminLinks+"/:uuid", controller.InviteShow, admin).
		SetName("admin-link.get")

	app.Get(controller.Routes.Enroll+"/:token", controller.EnrollShow).
		SetName("enroll.get")
	app.Post(controller.Routes.Enroll+"/:token", controller.EnrollComplete).
		SetName("enroll.post")
}

type EnrollControllerRoutes struct {
	Session    string
	Logout     string
	AdminLinks string
	Enroll     string
}

type EnrollController struct {
	Logger   Logger
	Enroller *Enroller
	Sessions *RouteSessions
	Identity IdentityTokenValidator
	Routes   *EnrollControllerRoutes
}

type EnrollControllerOption func(*EnrollController) *EnrollController

func WithControllerEnroller(enroller *Enroller) EnrollControllerOption {
	return func(c *EnrollController) *EnrollController {
		c.Enroller = enroller
		return c
	}
}

func WithControllerSessions(sessions *RouteSessions) EnrollControllerOption {
	return func(c *EnrollController) *EnrollController {
		c.Sessions = sessions
		return c
	}
}

func WithControllerIdentity(identity IdentityTokenValidator) EnrollControllerOption {
	return func(c *EnrollController) *EnrollController {
		c.Identity = identity
		return c
	}
}

func WithControllerLogger(logger Logger) EnrollControllerOption {
	return func(c *EnrollController) *EnrollController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewEnrollController(opts ...EnrollControllerOption) *EnrollController {
	c := &EnrollController{
		Logger: defLogger{},
		Routes: &EnrollControllerRoutes{
			Session:    "/auth/session",
			Logout:     "/auth/logout",
			AdminLinks: "/admin/links",
			Enroll:     "/enroll",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Enroller == nil {
		panic("Missing Enroller in enroll controller...")
	}

	if c.Sessions == nil {
		panic("Missing RouteSessions in enroll controller...")
	}

	if c.Identity == nil {
		panic("Missing IdentityTokenValidator in enroll controller...")
	}

	return c
}

// SessionCreatePayload carries the directory ID token to exchange for a
// gateway session.
type SessionCreatePayload struct {
	IDToken string `form:"id_token" json:"id_token"`
}

func (r SessionCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

func (c *EnrollController) SessionCreate(ctx router.Context) error {
	payload := new(SessionCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.badRequest(ctx, err.Error())
	}

	identity, err := c.Identity.Validate(payload.IDToken)
	if err != nil {
		c.Logger.Warn("identity token rejected: %s", err)
		return c.Sessions.ErrorHandler(ctx, err)
	}

	if err := c.Sessions.StartSession(ctx, *identity); err != nil {
		return c.Sessions.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"subject":  identity.Subject,
		"username": identity.Username,
	})
}

func (c *EnrollController) SessionDestroy(ctx router.Context) error {
	c.Sessions.EndSession(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

// InviteCreatePayload configures a new provision link.
type InviteCreatePayload struct {
	TTLSeconds int64 `form:"ttl_seconds" json:"ttl_seconds"`
	MaxUses    *int  `form:"max_uses" json:"max_uses"`
}

func (r InviteCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TTLSeconds, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.MaxUses, validation.Min(1)),
	)
}

func (c *EnrollController) InviteCreate(ctx router.Context) error {
	payload := new(InviteCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.badRequest(ctx, err.Error())
	}

	ttl := time.Duration(payload.TTLSeconds) * time.Second

	invite, err := c.Enroller.CreateInvite(ctx.Context(), ttl, payload.MaxUses)
	if err != nil {
		return c.serverError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, invite)
}

func (c *EnrollController) InviteList(ctx router.Context) error {
	links, err := c.Enroller.repo.Links().ListLinks(ctx.Context())
	if err != nil {
		return c.serverError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"links": links})
}

// InviteShow gives admins the full link state, including why a link is no
// longer redeemable. The anonymous endpoints never expose this.
func (c *EnrollController) InviteShow(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("uuid", ""))
	if err != nil {
		return c.badRequest(ctx, "invalid link id")
	}

	link, err := c.Enroller.repo.Links().GetLink(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]any{
				"error": "link not found",
				"code":  TextCodeLinkNotFound,
			})
		}
		return c.serverError(ctx, err)
	}

	now := time.Now()
	return ctx.JSON(router.StatusOK, map[string]any{
		"link":       link,
		"redeemable": link.Redeemable(now),
		"expired":    link.Expired(now),
		"exhausted":  link.Exhausted(),
	})
}

func (c *EnrollController) InviteSweep(ctx router.Context) error {
	swept, err := c.Enroller.SweepExpired(ctx.Context(), time.Now())
	if err != nil {
		return c.serverError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"swept": swept})
}

// EnrollShow is the pre-redemption check for the invite landing page. It
// does not consume a use.
func (c *EnrollController) EnrollShow(ctx router.Context) error {
	link, err := c.Enroller.InspectInvite(ctx.Context(), ctx.Param("token", ""))
	if err != nil {
		return c.anonymousFailure(ctx, err)
	}

	now := time.Now()
	if !link.Redeemable(now) {
		return c.anonymousFailure(ctx, ErrLinkExpired)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"valid":      true,
		"expires_at": link.ExpiresAt,
	})
}

// EnrollCompletePayload is the account the invitee wants created.
type EnrollCompletePayload struct {
	Username    string `form:"username" json:"username"`
	DisplayName string `form:"display_name" json:"display_name"`
	Email       string `form:"email" json:"email"`
}

func (r EnrollCompletePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 100), is.Alphanumeric),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, is.Email),
	)
}

func (c *EnrollController) EnrollComplete(ctx router.Context) error {
	payload := new(EnrollCompletePayload)

	if err := ctx.Bind(payload); err != nil {
		return c.badRequest(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return c.badRequest(ctx, err.Error())
	}

	result, err := c.Enroller.CompleteEnrollment(ctx.Context(), ctx.Param("token", ""), NewPerson{
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
	})
	if err != nil {
		if IsTerminalRedemptionError(err) || isTokenError(err) {
			return c.anonymousFailure(ctx, err)
		}
		return c.serverError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, result)
}

// anonymousFailure collapses every invite failure into one response so an
// unauthenticated caller cannot probe which link ids exist or how many
// uses they had.
func (c *EnrollController) anonymousFailure(ctx router.Context, err error) error {
	c.Logger.Info("enrollment rejected on %s: %s", ctx.OriginalURL(), err)
	return ctx.JSON(http.StatusNotFound, map[string]any{
		"error": "this enrollment link is no longer valid",
	})
}

func isTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenSignature) ||
		errors.Is(err, ErrTokenExpired)
}

func (c *EnrollController) badRequest(ctx router.Context, msg string) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{"error": msg})
}

func (c *EnrollController) serverError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "an unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	c.Logger.Error("request failed on %s: %s", ctx.OriginalURL(), richErr.Message)

	return ctx.JSON(http.StatusInternalServerError, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
