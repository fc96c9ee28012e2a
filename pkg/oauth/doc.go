// Package oauth drives an OAuth2 authorization code login against a remote
// identity provider (Spotify by default) and keeps a renewable access token
// for signing API calls.
//
// # Phases
//
// A login moves through three phase types, each only obtainable from the
// previous one:
//
//	Unauthenticated --Authenticate--> Authorized --ExchangeToken--> TokenBearing
//
// A successful transition consumes its receiver: calling a transition again
// on a consumed phase returns ErrPhaseConsumed, so an authorization code is
// never exchanged twice. A failed transition leaves the receiver usable so
// the caller can retry without rebuilding credentials.
//
// # Usage
//
//	unauth := oauth.New(oauth.ClientCredentials{
//	    ClientID:     clientID,
//	    ClientSecret: clientSecret,
//	})
//
//	authorized, err := unauth.Authenticate(ctx, "user-read-private", nil)
//	if err != nil {
//	    return err
//	}
//
//	session, err := authorized.ExchangeToken(ctx)
//	if err != nil {
//	    return err
//	}
//
//	result, err := session.CallAPI(ctx, http.MethodGet, url.Values{"ids": {id}}, "https://api.spotify.com/v1/artists/")
//
//	// Later, when the access token nears expiry:
//	err = session.RefreshToken(ctx)
//
// # Callback listener
//
// Authenticate binds a TCP listener on localhost:<callback port> before
// handing the authorize URL to the browser, accepts exactly one connection,
// reads its request line, answers with a short HTML page and parses the
// code or error from the request target. The wait has no timeout unless
// WithCallbackTimeout is given or the context is cancelled.
//
// # Concurrency
//
// A machine is meant to be driven from one goroutine at a time. Nothing in
// this package locks; RefreshToken mutates the TokenSet held by its
// TokenBearing in place.
package oauth
