package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// SessionName is the session cookie name.
const SessionName = "pharma.sid"

const (
	sessionUserKey   = "user_id"
	sessionIssuedKey = "issued_at"
)

// CookieOptions returns the session cookie policy: HttpOnly, SameSite=Strict,
// Secure in production.
func CookieOptions(maxAge time.Duration, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SessionManager reads and writes the login session through the store
// installed by echo-contrib's session.Middleware.
type SessionManager struct {
	name    string
	options sessions.Options
}

func NewSessionManager(opts sessions.Options) *SessionManager {
	return &SessionManager{name: SessionName, options: opts}
}

// Begin issues a fresh session for userID. Any session presented with the
// request is destroyed first so the id changes on every login.
func (m *SessionManager) Begin(c echo.Context, userID uuid.UUID) error {
	old, err := session.Get(m.name, c)
	if old == nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err == nil && !old.IsNew {
		old.Options.MaxAge = -1
		if err := old.Save(c.Request(), c.Response()); err != nil {
			return fmt.Errorf("destroy previous session: %w", err)
		}
	}

	fresh := sessions.NewSession(old.Store(), m.name)
	opts := m.options
	fresh.Options = &opts
	fresh.IsNew = true
	fresh.Values[sessionUserKey] = userID.String()
	fresh.Values[sessionIssuedKey] = time.Now().Unix()
	if err := fresh.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UserID returns the user bound to the request's session.
func (m *SessionManager) UserID(c echo.Context) (uuid.UUID, bool) {
	sess, err := session.Get(m.name, c)
	if err != nil || sess == nil || sess.IsNew {
		return uuid.Nil, false
	}
	raw, ok := sess.Values[sessionUserKey].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Touch re-saves the session to slide its expiry forward.
func (m *SessionManager) Touch(c echo.Context) error {
	sess, err := session.Get(m.name, c)
	if err != nil || sess == nil || sess.IsNew {
		return nil
	}
	return sess.Save(c.Request(), c.Response())
}

// End destroys the request's session and expires the cookie.
func (m *SessionManager) End(c echo.Context) error {
	sess, err := session.Get(m.name, c)
	if sess == nil {
		return err
	}
	sess.Options.MaxAge = -1
	sess.Values = make(map[interface{}]interface{})
	return sess.Save(c.Request(), c.Response())
}
