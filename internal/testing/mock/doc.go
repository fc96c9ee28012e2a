// Package mock provides test doubles for the login lifecycle.
//
// Key Components:
//
// ProviderServer: a local authorization server with an authorize endpoint
// that redirects straight back to the caller (simulating user consent), a
// token endpoint serving both the authorization_code and refresh_token
// grants, and a bearer-protected API endpoint that echoes what it received.
// ProviderConfig switches on the misbehaviours the client must cope with,
// such as a missing refresh token or a non-Bearer token type.
//
// Browser: stands in for the user's web browser. Open follows the authorize
// URL in the background so the redirect reaches the callback listener.
//
// RecordingTransport: an oauth.Transport that records every request and
// answers from a queue of canned replies.
//
// MockClock: a controllable clock for pinning token expiry times.
//
// Usage:
//
//	provider := mock.NewProviderServer(mock.ProviderConfig{ClientID: "id", ClientSecret: "secret"})
//	_, err := provider.Start(ctx)
//	defer provider.Stop(ctx)
//
//	browser := mock.NewBrowser()
//	start := oauth.New(creds,
//		oauth.WithEndpoint(provider.Endpoint()),
//		oauth.WithBrowser(browser),
//	)
package mock
