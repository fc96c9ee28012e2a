package oauth_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DomWilliams0/spotify-auth/internal/testing/mock"
	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

type loginFixture struct {
	provider *mock.ProviderServer
	browser  *mock.Browser
	clock    *mock.MockClock
	out      *bytes.Buffer
	creds    oauth.ClientCredentials
}

func newLoginFixture(t *testing.T, config mock.ProviderConfig) *loginFixture {
	t.Helper()
	config.ClientID = "client-id"
	config.ClientSecret = "client-secret"
	if config.Clock == nil {
		config.Clock = mock.NewMockClock(testNow)
	}

	provider := mock.NewProviderServer(config)
	_, err := provider.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Stop(context.Background()) })

	return &loginFixture{
		provider: provider,
		browser:  mock.NewBrowser(),
		clock:    config.Clock.(*mock.MockClock),
		out:      &bytes.Buffer{},
		creds: oauth.ClientCredentials{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			CallbackPort: freePort(t),
		},
	}
}

func (f *loginFixture) options(extra ...oauth.Option) []oauth.Option {
	opts := []oauth.Option{
		oauth.WithEndpoint(f.provider.Endpoint()),
		oauth.WithBrowser(f.browser),
		oauth.WithClock(f.clock),
		oauth.WithOutput(f.out),
		oauth.WithCallbackHost("127.0.0.1"),
	}
	return append(opts, extra...)
}

func (f *loginFixture) start(extra ...oauth.Option) *oauth.Unauthenticated {
	return oauth.New(f.creds, f.options(extra...)...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLogin_EndToEnd(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "user-read-private user-read-email", nil)
	require.NoError(t, err)
	require.NoError(t, f.browser.Wait(ctx))
	assert.Contains(t, f.out.String(), "Opening the browser")

	session, err := authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	tokens := session.Tokens()
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, []string{"user-read-private", "user-read-email"}, tokens.Scopes())
	assert.Equal(t, testNow.Add(time.Hour), tokens.ExpiresAt)
	assert.False(t, session.AuthCode().IsEmpty())
	assert.Equal(t, f.creds, session.Credentials())

	result, err := session.CallAPI(ctx, http.MethodGet, url.Values{"market": {"GB"}}, f.provider.APIURL("/me"))
	require.NoError(t, err)
	require.True(t, result.Success())
	body := result.Body.(map[string]any)
	assert.Equal(t, "/me", body["path"])
	assert.Equal(t, map[string]any{"market": []any{"GB"}}, body["query"])

	for i := 0; i < 3; i++ {
		f.clock.Advance(2 * time.Hour)
		previous := session.Tokens()

		require.NoError(t, session.RefreshToken(ctx))

		refreshed := session.Tokens()
		assert.NotEqual(t, previous.AccessToken, refreshed.AccessToken)
		assert.Equal(t, previous.RefreshToken, refreshed.RefreshToken)
		assert.Equal(t, f.clock.Now().Add(time.Hour), refreshed.ExpiresAt)

		result, err = session.CallAPI(ctx, http.MethodPost, url.Values{"name": {"x"}}, f.provider.APIURL("/playlists"))
		require.NoError(t, err)
		assert.True(t, result.Success())
	}

	grants := f.provider.TokenRequests()
	require.Len(t, grants, 4)
	assert.Equal(t, "authorization_code", grants[0].GrantType)
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(f.creds.CallbackPort), grants[0].Form.Get("redirect_uri"))
}

func TestUnauthenticated_RedirectURIFollowsCallbackHost(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)
	start := f.start()

	want := "http://127.0.0.1:" + strconv.Itoa(f.creds.CallbackPort)
	assert.Equal(t, want, start.RedirectURI())

	authURL, err := start.AuthorizeURL("streaming", nil)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, want, parsed.Query().Get("redirect_uri"))

	authorized, err := start.Authenticate(ctx, "streaming", nil)
	require.NoError(t, err)
	_, err = authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	grants := f.provider.TokenRequests()
	require.Len(t, grants, 1)
	assert.Equal(t, want, grants[0].Form.Get("redirect_uri"))
}

func TestLogin_PhasesAreConsumed(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)
	start := f.start()

	authorized, err := start.Authenticate(ctx, "streaming", nil)
	require.NoError(t, err)

	_, err = start.Authenticate(ctx, "streaming", nil)
	assert.ErrorIs(t, err, oauth.ErrPhaseConsumed)

	_, err = authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	_, err = authorized.ExchangeToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrPhaseConsumed)

	// the provider saw exactly one code exchange
	assert.Len(t, f.provider.TokenRequests(), 1)
}

func TestLogin_CopiedPhasesShareConsumption(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)
	start := f.start()
	startCopy := *start

	authorized, err := start.Authenticate(ctx, "streaming", nil)
	require.NoError(t, err)

	_, err = startCopy.Authenticate(ctx, "streaming", nil)
	assert.ErrorIs(t, err, oauth.ErrPhaseConsumed)

	authorizedCopy := *authorized
	_, err = authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	_, err = authorizedCopy.ExchangeToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrPhaseConsumed)
	assert.Len(t, f.provider.TokenRequests(), 1)
}

func TestLogin_ConcurrentExchangeOfCopiesSendsCodeOnce(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "streaming", nil)
	require.NoError(t, err)

	const attempts = 4
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		phase := *authorized
		go func() {
			_, err := phase.ExchangeToken(ctx)
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < attempts; i++ {
		err := <-errs
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, oauth.ErrPhaseConsumed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.provider.TokenRequests(), 1)
}

func TestLogin_ProviderDenied(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{DenyAuthorization: "access_denied"})
	ctx := testContext(t)
	start := f.start()

	_, err := start.Authenticate(ctx, "streaming", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrAuthentication)
	assert.Contains(t, err.Error(), "access_denied")

	// a failed transition leaves the phase usable
	_, err = start.Authenticate(ctx, "streaming", nil)
	assert.ErrorIs(t, err, oauth.ErrAuthentication)
	assert.NotErrorIs(t, err, oauth.ErrPhaseConsumed)
}

func TestLogin_ExchangeFailureIsRetryable(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	transport := mock.NewRecordingTransport().
		Reply(http.StatusInternalServerError, `{"error":"server_error"}`).
		Reply(http.StatusOK, `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":3600,"refresh_token":"RT"}`)

	authorized, err := f.start(oauth.WithTransport(transport)).Authenticate(ctx, "s", nil)
	require.NoError(t, err)

	_, err = authorized.ExchangeToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrHTTP)

	session, err := authorized.ExchangeToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AT", session.Tokens().AccessToken)

	requests := transport.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, formOf(t, requests[0]).Get("code"), formOf(t, requests[1]).Get("code"))
}

func TestLogin_MissingRefreshToken(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{OmitRefreshToken: true})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "s", nil)
	require.NoError(t, err)

	_, err = authorized.ExchangeToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrProviderIncompatibility)
}

func TestLogin_RefreshFailureKeepsTokens(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "s", nil)
	require.NoError(t, err)
	session, err := authorized.ExchangeToken(ctx)
	require.NoError(t, err)
	before := session.Tokens()

	require.NoError(t, f.provider.Stop(ctx))

	err = session.RefreshToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrTransport)
	assert.Equal(t, before, session.Tokens())
}

func TestLogin_APIErrorIsAResult(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "s", nil)
	require.NoError(t, err)
	session, err := authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	result, err := session.CallAPI(ctx, http.MethodGet, nil, f.provider.APIURL("/me"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
	assert.True(t, session.Tokens().ExpiredAt(f.clock.Now()))

	result, err = session.CallAPI(ctx, http.MethodGet, nil, f.provider.APIURL("/unavailable"))
	require.NoError(t, err)
	assert.Equal(t, "upstream unavailable", result.Body)

	_, err = session.CallAPI(ctx, http.MethodGet, nil, f.provider.APIURL("/plain"))
	assert.ErrorIs(t, err, oauth.ErrProviderIncompatibility)
}

func TestLogin_BrowserFailurePrintsURL(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	browser := oauth.BrowserFunc(func(u string) error {
		_ = f.browser.Open(u)
		return errors.New("no display")
	})

	_, err := f.start(oauth.WithBrowser(browser)).Authenticate(ctx, "s", nil)
	require.NoError(t, err)

	assert.Contains(t, f.out.String(), "Navigate to the following url in your browser:")
	assert.Contains(t, f.out.String(), f.provider.Endpoint().AuthURL)
}

func TestLogin_CallbackTimeout(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	idle := oauth.BrowserFunc(func(string) error { return nil })
	start := f.start(oauth.WithBrowser(idle), oauth.WithCallbackTimeout(50*time.Millisecond))

	_, err := start.Authenticate(context.Background(), "s", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the listener was released and the phase is still usable
	start = f.start(oauth.WithCallbackTimeout(5 * time.Second))
	_, err = start.Authenticate(testContext(t), "s", nil)
	assert.NoError(t, err)
}

func TestLogin_PortInUse(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	busy, err := oauth.ListenForCallback("127.0.0.1", f.creds.CallbackPort)
	require.NoError(t, err)
	defer busy.Close()

	opened := false
	browser := oauth.BrowserFunc(func(string) error {
		opened = true
		return nil
	})

	_, err = f.start(oauth.WithBrowser(browser)).Authenticate(testContext(t), "s", nil)
	assert.ErrorIs(t, err, oauth.ErrTransport)
	assert.False(t, opened, "browser must not open before the listener is bound")
}

func TestAuthorizeURL(t *testing.T) {
	creds := oauth.ClientCredentials{ClientID: "abc", ClientSecret: "secret", CallbackPort: 4000}
	start := oauth.New(creds)

	tests := []struct {
		name       string
		showDialog *bool
		want       string
	}{
		{"unset", nil, ""},
		{"true", boolPtr(true), "true"},
		{"false", boolPtr(false), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := start.AuthorizeURL("user-read-private playlist-modify", tt.showDialog)
			require.NoError(t, err)

			parsed, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "accounts.spotify.com", parsed.Host)

			query := parsed.Query()
			assert.Equal(t, "abc", query.Get("client_id"))
			assert.Equal(t, "code", query.Get("response_type"))
			assert.Equal(t, "http://localhost:4000", query.Get("redirect_uri"))
			assert.Equal(t, "user-read-private playlist-modify", query.Get("scope"))
			assert.Equal(t, tt.want, query.Get("show_dialog"))
			assert.Equal(t, tt.showDialog != nil, query.Has("show_dialog"))
			assert.False(t, query.Has("client_secret"))
			assert.False(t, query.Has("state"))
		})
	}
}

func TestZeroValuePhases(t *testing.T) {
	ctx := context.Background()

	_, err := (&oauth.Unauthenticated{}).Authenticate(ctx, "s", nil)
	assert.ErrorIs(t, err, oauth.ErrInvalidPhase)

	_, err = (&oauth.Unauthenticated{}).AuthorizeURL("s", nil)
	assert.ErrorIs(t, err, oauth.ErrInvalidPhase)

	_, err = (&oauth.Authorized{}).ExchangeToken(ctx)
	assert.ErrorIs(t, err, oauth.ErrInvalidPhase)

	_, err = (&oauth.TokenBearing{}).CallAPI(ctx, http.MethodGet, nil, testAPI)
	assert.ErrorIs(t, err, oauth.ErrInvalidPhase)

	assert.ErrorIs(t, (&oauth.TokenBearing{}).RefreshToken(ctx), oauth.ErrInvalidPhase)
	assert.Equal(t, oauth.ClientCredentials{}, (&oauth.Unauthenticated{}).Credentials())
	assert.Empty(t, (&oauth.Unauthenticated{}).RedirectURI())
}

func TestTokenBearing_TokenSource(t *testing.T) {
	f := newLoginFixture(t, mock.ProviderConfig{})
	ctx := testContext(t)

	authorized, err := f.start().Authenticate(ctx, "user-top-read", nil)
	require.NoError(t, err)
	session, err := authorized.ExchangeToken(ctx)
	require.NoError(t, err)

	token, err := session.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, session.Tokens().AccessToken, token.AccessToken)
	assert.Equal(t, "Bearer", token.Type())
	assert.Equal(t, "user-top-read", token.Extra("scope"))

	// an oauth2 client signs requests the same way CallAPI does
	req, err := http.NewRequest(http.MethodGet, f.provider.APIURL("/me"), nil)
	require.NoError(t, err)
	token.SetAuthHeader(req)
	assert.Equal(t, fmt.Sprintf("Bearer %s", token.AccessToken), req.Header.Get("Authorization"))
	assert.True(t, f.provider.IsValidToken(token.AccessToken))
}

func boolPtr(b bool) *bool {
	return &b
}
