package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	sessionCookie = "compass_session"
	sessionTTL    = 12 * time.Hour
)

// Auth gates the pages when token auth is enabled. A browser signs in once
// with the access token and gets a session cookie; scripts may send the
// token as a Bearer header instead.
type Auth struct {
	Enabled bool
	Token   string
}

// Middleware rejects requests without a valid session or Bearer token.
// Page loads are redirected to the sign-in form; everything else gets 401.
func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled || a.bearerOK(r) || a.sessionOK(r, time.Now()) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (a Auth) tokenOK(given string) bool {
	return given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(a.Token)) == 1
}

func (a Auth) bearerOK(r *http.Request) bool {
	given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && a.tokenOK(given)
}

func (a Auth) sessionOK(r *http.Request, now time.Time) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return a.validSession(c.Value, now)
}

// newSession returns a cookie value "<expiry>.<mac>" valid for sessionTTL
// from now. Changing the token invalidates every session.
func (a Auth) newSession(now time.Time) string {
	exp := strconv.FormatInt(now.Add(sessionTTL).Unix(), 10)
	return exp + "." + a.sign(exp)
}

func (a Auth) validSession(value string, now time.Time) bool {
	exp, mac, ok := strings.Cut(value, ".")
	if !ok {
		return false
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || now.Unix() >= unix {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(a.sign(exp)))
}

func (a Auth) sign(exp string) string {
	m := hmac.New(sha256.New, []byte(a.Token))
	m.Write([]byte("compass-session:" + exp))
	return hex.EncodeToString(m.Sum(nil))
}

func (a Auth) setSession(w http.ResponseWriter, r *http.Request, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    a.newSession(now),
		Path:     "/",
		Expires:  now.Add(sessionTTL),
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// localPath returns next when it is a path on this site, otherwise "/".
func localPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	return next
}
