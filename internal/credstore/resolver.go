package credstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"

	"github.com/jdholdren/spectacle/internal/mirror"
	"github.com/jdholdren/spectacle/internal/spectacle"
)

// How many resolved clients to keep warm. Each entry is keyed by a
// single user token and never handed out for a different one.
const clientCacheSize = 256

// Compile-time check against the resolver capability.
var _ spectacle.CredentialResolver = (*Resolver)(nil)

// Resolver turns stored grants into per-user timeline clients.
type Resolver struct {
	store       Store
	oauthConfig oauth2.Config
	mirrorURL   string

	cache *lru.Cache[string, spectacle.Timeline]
}

func NewResolver(store Store, oauthConfig oauth2.Config, mirrorURL string) *Resolver {
	cache, _ := lru.New[string, spectacle.Timeline](clientCacheSize)

	return &Resolver{
		store:       store,
		oauthConfig: oauthConfig,
		mirrorURL:   mirrorURL,
		cache:       cache,
	}
}

// Resolve returns a timeline client authorized as the given user, or
// [spectacle.ErrNoCredentials] when no grant is stored.
func (r *Resolver) Resolve(ctx context.Context, userToken string) (spectacle.Timeline, error) {
	if tl, ok := r.cache.Get(userToken); ok {
		return tl, nil
	}

	cred, err := r.store.Credential(ctx, userToken)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
	}
	if cred.Expiry != nil {
		tok.Expiry = *cred.Expiry
	}

	// The token source outlives the request that built it: cached
	// clients serve later notifications for the same user, and the
	// source refreshes the grant on its own. Per-call contexts still
	// bound the individual requests.
	src := r.oauthConfig.TokenSource(context.Background(), tok)
	cli, err := mirror.New(r.mirrorURL, oauth2.NewClient(context.Background(), src))
	if err != nil {
		return nil, fmt.Errorf("error building timeline client: %w", err)
	}

	r.cache.Add(userToken, cli)

	return cli, nil
}

// Forget drops the cached client for a user token. Called whenever the
// stored grant changes, so the next Resolve rebuilds from the current
// credential instead of serving a client built on a stale one.
func (r *Resolver) Forget(userToken string) {
	r.cache.Remove(userToken)
}
