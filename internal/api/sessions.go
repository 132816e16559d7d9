package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	apierrs "wxsync/internal/errors"
)

const sessionCookieName = "wxsync_session"

// The admin session persisted to the operator's cookie.
type sessionState struct {
	Authenticated bool
}

// Fetches the current session tied to the request.
func session(r *http.Request, secureCookie *securecookie.SecureCookie) sessionState {
	cookie, err := r.Cookie(sessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sessionState{}
	}
	if err != nil {
		slog.Error("error fetching cookie", "err", err)
		return sessionState{}
	}

	value := sessionState{}
	if err := secureCookie.Decode(sessionCookieName, cookie.Value, &value); err != nil {
		slog.Error("error decoding cookie", "err", err)
		return sessionState{}
	}

	return value
}

// Sets the session on the response.
func setSession(w http.ResponseWriter, secureCookie *securecookie.SecureCookie, https bool, sess sessionState) {
	encoded, err := secureCookie.Encode(sessionCookieName, sess)
	if err != nil {
		slog.Error("error encoding cookie", "err", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
	})
}

func requireSessionMiddleware(sc *securecookie.SecureCookie) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session(r, sc).Authenticated {
				http.Error(w, "Unauthenticated", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type PostSessionReq struct {
	AdminKey string `json:"admin_key"`
}

func (r PostSessionReq) Validate() error {
	if r.AdminKey == "" {
		return apierrs.E("admin_key is required", http.StatusBadRequest)
	}

	return nil
}

func (s *Server) postSession(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeValid[PostSessionReq](r.Body)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(body.AdminKey), []byte(s.adminKey)) != 1 {
		return apierrs.E("invalid admin key", http.StatusUnauthorized)
	}

	setSession(w, s.secureCookie, s.httpsCookies, sessionState{Authenticated: true})
	return writeJSON(w, http.StatusCreated, struct{}{})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) error {
	setSession(w, s.secureCookie, s.httpsCookies, sessionState{})
	return writeJSON(w, http.StatusOK, struct{}{})
}
