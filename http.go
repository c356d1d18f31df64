package enroll

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-enroll/middleware/sessionware"
)

// SessionCookieName is where the signed session token lives between
// requests.
const SessionCookieName = "enroll_session"

// RouteSessions adapts the session layer to HTTP: cookie handling, the
// protected-route middleware, and the shared error handlers.
type RouteSessions struct {
	sessions       Sessioner
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

// NewRouteSessions builds the HTTP session adapter.
func NewRouteSessions(sessions Sessioner, cfg Config) *RouteSessions {
	cookieDuration := cfg.GetSessionDuration()
	if cookieDuration <= 0 {
		cookieDuration = 24 * time.Hour
	}

	r := &RouteSessions{
		sessions:       sessions,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}

	r.ErrorHandler = r.defaultErrHandler

	return r
}

// sessionValidator bridges Sessioner to the middleware's interface without
// the middleware importing this package.
type sessionValidator struct {
	sessions Sessioner
}

func (v sessionValidator) Validate(token string) (sessionware.Session, error) {
	return v.sessions.Validate(token)
}

// ProtectedRoute requires a valid session on every request underneath it.
func (r *RouteSessions) ProtectedRoute(errorHandler router.ErrorHandler) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = r.ErrorHandler
	}
	return sessionware.New(sessionware.Config{
		ErrorHandler: errorHandler,
		ContextKey:   SessionCookieName,
		TokenLookup:  "cookie:" + SessionCookieName + ",header:" + router.HeaderAuthorization,
		Validator:    sessionValidator{sessions: r.sessions},
	})
}

// AdminRoute additionally re-checks directory group membership on every
// request, so dropped admins lose access immediately.
func (r *RouteSessions) AdminRoute(errorHandler router.ErrorHandler) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = r.ErrorHandler
	}
	return sessionware.New(sessionware.Config{
		ErrorHandler: errorHandler,
		ContextKey:   SessionCookieName,
		TokenLookup:  "cookie:" + SessionCookieName + ",header:" + router.HeaderAuthorization,
		Validator:    sessionValidator{sessions: r.sessions},
		Guards: []sessionware.Guard{
			func(ctx router.Context, session sessionware.Session) error {
				so, ok := session.(*SessionObject)
				if !ok {
					return ErrTokenMalformed
				}
				return r.sessions.RequireAdmin(ctx.Context(), so)
			},
		},
	})
}

// GetRouterSession retrieves the validated session the middleware stored.
func GetRouterSession(c router.Context) (*SessionObject, error) {
	local := c.Locals(SessionCookieName)
	if local == nil {
		return nil, errors.New("no session in request context", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	session, ok := local.(*SessionObject)
	if !ok || session == nil {
		return nil, ErrTokenMalformed
	}

	return session, nil
}

// StartSession mints a session for the identity and sets the cookie.
func (r *RouteSessions) StartSession(ctx router.Context, identity DirectoryIdentity) error {
	token, err := r.sessions.IssueSession(ctx.Context(), identity)
	if err != nil {
		r.Logger.Error("session issue error: %s", err)
		return err
	}

	r.setCookieToken(ctx, token, r.cookieDuration)
	return nil
}

// EndSession clears the session cookie. The token itself stays valid until
// it expires; there is no server-side session state to revoke.
func (r *RouteSessions) EndSession(ctx router.Context) {
	r.cookieDel(ctx, SessionCookieName)
}

func (r *RouteSessions) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (r *RouteSessions) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (r *RouteSessions) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "invalid session").
			WithCode(errors.CodeUnauthorized)
	}

	r.Logger.Info(
		"session error on %s: %s (%s)",
		c.OriginalURL(),
		richErr.Message,
		richErr.TextCode,
	)

	status := http.StatusUnauthorized
	if richErr.TextCode == TextCodeNotAdmin {
		status = http.StatusForbidden
	}

	return c.JSON(status, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
