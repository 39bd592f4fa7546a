package middleware

import (
	"net/http"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/labstack/echo/v4"
)

const (
	CtxSession = "session"
	CtxUserID  = "user_id"
	CtxRole    = "role"
)

// SessionMiddleware verifies the access token issued by the BaaS auth
// provider. Token refresh stays with the provider; an expired token is a 401.
type SessionMiddleware struct {
	JWTSecret []byte
}

func NewSessionMiddleware(secret []byte) *SessionMiddleware {
	return &SessionMiddleware{JWTSecret: secret}
}

type ValidatorFunc func(s session.Session) error

func (m *SessionMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *SessionMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(s session.Session) error {
		if !s.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *SessionMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil || claims == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
		}

		userID, err := claims.ResolveUserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "token has no user")
		}

		sess := session.New(userID, claims.AppRole, raw)
		if validator != nil {
			if vErr := validator(sess); vErr != nil {
				return vErr
			}
		}

		setSession(c, sess)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func setSession(c echo.Context, s session.Session) {
	c.Set(CtxSession, s)
	c.Set(CtxUserID, s.UserID)
	c.Set(CtxRole, s.Role)
}

// SessionFrom returns the session stored by RequireAuth/RequireAdmin.
func SessionFrom(c echo.Context) (session.Session, bool) {
	s, ok := c.Get(CtxSession).(session.Session)
	if !ok || !s.Valid() {
		return session.Session{}, false
	}
	return s, true
}
