package sessionware

import (
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup      = "cookie:enroll_session,header:" + router.HeaderAuthorization
	ErrSessionMissing       = errors.New("missing or malformed session token")
	defaultSessionContextKey = "session"
)

// Session is the validated-session view the middleware stores in the
// request context. Mirrors the session object from the enroll package
// without importing it.
type Session interface {
	GetSubject() string
}

// SessionValidator validates a raw token into a Session.
type SessionValidator interface {
	Validate(token string) (Session, error)
}

// Guard runs after validation, before the handler. Use it for group or
// admin checks that need the live request context.
type Guard func(ctx router.Context, session Session) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	Validator      SessionValidator
	Guards         []Guard
}

// New builds the session middleware. Every request must present a token in
// one of the configured locations; the validated session lands in
// ctx.Locals under ContextKey.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			session, err := cfg.Validator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			for _, guard := range cfg.Guards {
				if guard == nil {
					continue
				}
				if err := guard(ctx, session); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, session)

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if err.Error() == ErrSessionMissing.Error() {
				return c.Status(router.StatusBadRequest).SendString(ErrSessionMissing.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired session")
		}
	}

	if cfg.Validator == nil {
		panic("ENROLL: session middleware configuration: Validator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultSessionContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func ExtractRawToken(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// cookie:enroll_session,header:Authorization,query:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c router.Context) (string, error)

func tokenFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", ErrSessionMissing
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrSessionMissing
	}
}

func tokenFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrSessionMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrSessionMissing
		}
		return token, nil
	}
}
