// Package api is the HTTP surface: the notification webhook, a health
// check, and the OAuth connect flow that seeds the credential store.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"

	"github.com/jdholdren/spectacle/internal/credstore"
	"github.com/jdholdren/spectacle/internal/server"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

// Dispatcher handles one parsed notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n spectacle.Notification) error
}

// ClientCache drops resolved timeline clients when a user's stored
// grant changes, so stale clients don't outlive the credential they
// were built from.
type ClientCache interface {
	Forget(userToken string)
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
}

func (r errRouter) HandleFuncE(path string, f server.HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}

type (
	// Server receives webhook pings and hosts the connect flow.
	Server struct {
		*http.Server

		dispatcher Dispatcher
		store      credstore.Store
		clients    ClientCache

		oauthConfig  oauth2.Config
		userInfoURL  string
		secureCookie *securecookie.SecureCookie
		httpsCookies bool // Whether or not HTTPS should be used for cookies
	}

	ServerConfig struct {
		Port           int
		CookieHashKey  []byte
		CookieBlockKey []byte
		HTTPSCookies   bool
		OAuth          oauth2.Config
		UserInfoURL    string
	}
)

func NewServer(config ServerConfig, dispatcher Dispatcher, store credstore.Store, clients ClientCache) *Server {
	r := errRouter{Router: mux.NewRouter()}

	srvr := Server{
		dispatcher:   dispatcher,
		store:        store,
		clients:      clients,
		oauthConfig:  config.OAuth,
		userInfoURL:  config.UserInfoURL,
		secureCookie: securecookie.New(config.CookieHashKey, config.CookieBlockKey),
		httpsCookies: config.HTTPSCookies,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second, // A notify can fan out to several upstream fetches
			Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r),
		},
	}

	r.Use(server.AccessLog) // Log everything
	r.HandleFuncE("/notify", srvr.handleNotify).Methods(http.MethodPost)
	r.HandleFunc("/healthz", srvr.handleHealthz).Methods(http.MethodGet)
	r.HandleFuncE("/connect", srvr.handleConnect).Methods(http.MethodGet)
	r.HandleFuncE("/connect/callback", srvr.handleConnectCallback).Methods(http.MethodGet)
	r.HandleFuncE("/disconnect", srvr.handleDisconnect).Methods(http.MethodPost)

	slog.Debug("configured spectacle server", "port", config.Port)

	return &srvr
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, struct{}{})
}
