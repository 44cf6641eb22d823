package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/jdholdren/spectacle/internal/credstore"
	specerrs "github.com/jdholdren/spectacle/internal/errors"
	"github.com/jdholdren/spectacle/internal/server"
)

const (
	stateCookieName   = "spectacle_connect"
	sessionCookieName = "spectacle_session"
)

// Describes the in-flight connect attempt persisted to a cookie.
type connectState struct {
	State string
}

// Identifies the connected user after a successful grant, so the
// disconnect path knows whose credential to remove.
type session struct {
	UserToken string
}

func decodeCookie(r *http.Request, sc *securecookie.SecureCookie, name string, dst any) bool {
	cookie, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return false
	}
	if err != nil {
		slog.Error("error fetching cookie", "name", name, "err", err)
		return false
	}

	if err := sc.Decode(name, cookie.Value, dst); err != nil {
		slog.Error("error decoding cookie", "name", name, "err", err)
		return false
	}

	return true
}

func setCookie(w http.ResponseWriter, sc *securecookie.SecureCookie, https bool, name string, v any) {
	encoded, err := sc.Encode(name, v)
	if err != nil {
		slog.Error("error encoding cookie", "name", name, "err", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
	})
}

// Starts the grant flow: the user ends up at the provider's consent
// page, and the state round-trips through the cookie.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) error {
	st := connectState{
		State: uuid.NewString(),
	}
	setCookie(w, s.secureCookie, s.httpsCookies, stateCookieName, st)

	http.Redirect(w, r, s.oauthConfig.AuthCodeURL(st.State), http.StatusTemporaryRedirect)
	return nil
}

// Handles the code coming back from the provider: exchange it, find
// out who the grant belongs to, and store it so future notifications
// for that user token can be resolved.
func (s *Server) handleConnectCallback(w http.ResponseWriter, r *http.Request) error {
	var st connectState
	decodeCookie(r, s.secureCookie, stateCookieName, &st)

	q := r.URL.Query()
	if q.Get("state") != st.State {
		http.Redirect(w, r, "/connect?error="+url.QueryEscape("invalid_state"), http.StatusFound)
		return nil
	}
	if q.Get("error") != "" {
		http.Redirect(w, r, "/connect?error="+url.QueryEscape(q.Get("error")), http.StatusFound)
		return nil
	}

	tok, err := s.oauthConfig.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		http.Redirect(w, r, "/connect?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return nil
	}

	// Ask the provider whose grant this is
	client := s.oauthConfig.Client(r.Context(), tok)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		http.Redirect(w, r, "/connect?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return nil
	}
	defer resp.Body.Close()

	type userInfo struct {
		ID string `json:"id"`
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		http.Redirect(w, r, "/connect?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return nil
	}

	cred := credstore.Credential{
		UserToken:    info.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		cred.Expiry = &tok.Expiry
	}
	if err := s.store.Put(r.Context(), cred); err != nil {
		return err
	}

	// A reconnecting user may already have a client cached from the
	// previous grant; drop it so the new credential takes effect now.
	s.clients.Forget(info.ID)

	setCookie(w, s.secureCookie, s.httpsCookies, sessionCookieName, session{UserToken: info.ID})

	slog.InfoContext(r.Context(), "stored credentials", "user_token", info.ID)

	http.Redirect(w, r, "/connected", http.StatusFound)
	return nil
}

// Removes the connected user's stored grant and the cached client
// built from it.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) error {
	var sess session
	if !decodeCookie(r, s.secureCookie, sessionCookieName, &sess) || sess.UserToken == "" {
		return specerrs.E(http.StatusUnauthorized, specerrs.ReasonUnauthorized, "no connected user")
	}

	if err := s.store.Delete(r.Context(), sess.UserToken); err != nil {
		return err
	}
	s.clients.Forget(sess.UserToken)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	slog.InfoContext(r.Context(), "removed credentials", "user_token", sess.UserToken)

	return server.WriteJSON(w, http.StatusOK, struct{}{})
}
