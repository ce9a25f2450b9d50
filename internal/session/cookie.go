package session

import (
	"net/http"
	"time"
)

const (
	CookieName = "__Host-session"

	// InsecureCookieName is used when Secure is off; browsers reject
	// __Host- cookies that are not Secure.
	InsecureCookieName = "session"
)

// CookieOptions controls the attributes of the session cookie.
// The zero value yields Path=/, HttpOnly and SameSite=Lax.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string // leave empty when Secure; __Host- forbids it
}

// Name returns the cookie name matching the Secure flag.
func (o CookieOptions) Name() string {
	if o.Secure {
		return CookieName
	}
	return InsecureCookieName
}

func (o CookieOptions) cookie(value string) *http.Cookie {
	c := &http.Cookie{
		Name:     o.Name(),
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	if c.Secure {
		c.Domain = ""
	}
	return c
}

// SetCookie hands token to the client until expiresAt.
func SetCookie(w http.ResponseWriter, token string, expiresAt time.Time, opts CookieOptions) {
	c := opts.cookie(token)
	c.Expires = expiresAt
	http.SetCookie(w, c)
}

// ClearCookie tells the client to drop the session cookie.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	c := opts.cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// TokenFromRequest returns the session cookie value, or "" if the
// request carries none.
func TokenFromRequest(r *http.Request, opts CookieOptions) string {
	c, err := r.Cookie(opts.Name())
	if err != nil {
		return ""
	}
	return c.Value
}
