package oauth_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DomWilliams0/spotify-auth/internal/testing/mock"
	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

const (
	testTokenURL    = "https://accounts.example.com/api/token"
	testRedirectURI = "http://localhost:30405"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExchanger(transport oauth.Transport) *oauth.TokenExchanger {
	creds := oauth.ClientCredentials{ClientID: "client-id", ClientSecret: "client-secret"}
	return oauth.NewTokenExchanger(creds, testTokenURL, testRedirectURI, transport, mock.NewMockClock(testNow))
}

func formOf(t *testing.T, req *oauth.Request) url.Values {
	t.Helper()
	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	return form
}

func TestTokenExchanger_Exchange(t *testing.T) {
	transport := mock.NewRecordingTransport().Reply(http.StatusOK,
		`{"access_token":"AT1","token_type":"Bearer","scope":"user-read-private","expires_in":3600,"refresh_token":"RT1"}`)

	tokens, err := newTestExchanger(transport).Exchange(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "AT1", tokens.AccessToken)
	assert.Equal(t, "RT1", tokens.RefreshToken)
	assert.Equal(t, "user-read-private", tokens.Scope)
	assert.Equal(t, testNow.Add(time.Hour), tokens.ExpiresAt)

	req := transport.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, testTokenURL, req.URL)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Authorization"))

	form := formOf(t, req)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, testRedirectURI, form.Get("redirect_uri"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
}

func TestTokenExchanger_ExchangeFractionalExpiry(t *testing.T) {
	transport := mock.NewRecordingTransport().Reply(http.StatusOK,
		`{"access_token":"AT","token_type":"Bearer","scope":"","expires_in":1.5,"refresh_token":"RT"}`)

	tokens, err := newTestExchanger(transport).Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(1500*time.Millisecond), tokens.ExpiresAt)
	assert.Empty(t, tokens.Scopes())
}

func TestTokenExchanger_ExchangeLongExpiry(t *testing.T) {
	// 100 years is still representable and lands in the future
	transport := mock.NewRecordingTransport().Reply(http.StatusOK,
		`{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":3155760000,"refresh_token":"RT"}`)

	tokens, err := newTestExchanger(transport).Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(3155760000*time.Second), tokens.ExpiresAt)
	assert.False(t, tokens.ExpiredAt(testNow))
}

func TestTokenExchanger_RefreshRejectsOverflowingExpiry(t *testing.T) {
	transport := mock.NewRecordingTransport().Reply(http.StatusOK,
		`{"access_token":"AT2","token_type":"Bearer","scope":"s","expires_in":1e12}`)
	tokens := &oauth.TokenSet{AccessToken: "AT1", Scope: "s", ExpiresAt: testNow, RefreshToken: "RT1"}
	before := *tokens

	err := newTestExchanger(transport).Refresh(context.Background(), tokens)
	assert.ErrorIs(t, err, oauth.ErrProviderIncompatibility)
	assert.Equal(t, before, *tokens)
}

func TestTokenExchanger_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{
			name:   "missing refresh token",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":3600}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "empty refresh token",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":3600,"refresh_token":""}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "lowercase bearer",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"bearer","scope":"s","expires_in":3600,"refresh_token":"RT"}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "missing expires_in",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","refresh_token":"RT"}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "wrong field type",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":"3600","refresh_token":"RT"}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "negative expires_in",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":-1,"refresh_token":"RT"}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "expires_in overflows duration",
			status: http.StatusOK,
			body:   `{"access_token":"AT","token_type":"Bearer","scope":"s","expires_in":1e12,"refresh_token":"RT"}`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>hello</html>`,
			kind:   oauth.ErrProviderIncompatibility,
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"error":"invalid_grant","error_description":"Invalid authorization code"}`,
			kind:   oauth.ErrHTTP,
		},
		{
			name:   "server error with html",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			kind:   oauth.ErrHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mock.NewRecordingTransport().Reply(tt.status, tt.body)

			tokens, err := newTestExchanger(transport).Exchange(context.Background(), "code")
			require.Error(t, err)
			assert.Nil(t, tokens)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestTokenExchanger_HTTPErrorCarriesBody(t *testing.T) {
	transport := mock.NewRecordingTransport().Reply(http.StatusBadRequest, `{"error":"invalid_client"}`)

	_, err := newTestExchanger(transport).Exchange(context.Background(), "code")

	var oauthErr *oauth.Error
	require.True(t, errors.As(err, &oauthErr))
	assert.Equal(t, oauth.KindHTTP, oauthErr.Kind)
	assert.Equal(t, http.StatusBadRequest, oauthErr.StatusCode)
	assert.Equal(t, map[string]any{"error": "invalid_client"}, oauthErr.Body)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestTokenExchanger_TransportFailures(t *testing.T) {
	t.Run("connection", func(t *testing.T) {
		transport := mock.NewRecordingTransport().Fail(errors.New("dial tcp: connection refused"))
		_, err := newTestExchanger(transport).Exchange(context.Background(), "code")
		assert.ErrorIs(t, err, oauth.ErrTransport)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		transport := mock.NewRecordingTransport().ReplyBytes(http.StatusOK, []byte{'{', 0xff, '}'})
		_, err := newTestExchanger(transport).Exchange(context.Background(), "code")
		assert.ErrorIs(t, err, oauth.ErrTransport)
	})
}

func TestTokenExchanger_Refresh(t *testing.T) {
	transport := mock.NewRecordingTransport().Reply(http.StatusOK,
		`{"access_token":"AT2","token_type":"Bearer","scope":"user-read-private","expires_in":3600}`)
	tokens := &oauth.TokenSet{AccessToken: "AT1", Scope: "old", ExpiresAt: testNow, RefreshToken: "RT1"}

	require.NoError(t, newTestExchanger(transport).Refresh(context.Background(), tokens))

	assert.Equal(t, "AT2", tokens.AccessToken)
	assert.Equal(t, "user-read-private", tokens.Scope)
	assert.Equal(t, testNow.Add(time.Hour), tokens.ExpiresAt)
	assert.Equal(t, "RT1", tokens.RefreshToken)

	req := transport.LastRequest()
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
	assert.Equal(t, want, req.Header.Get("Authorization"))

	form := formOf(t, req)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "RT1", form.Get("refresh_token"))
	assert.Empty(t, form.Get("client_secret"))
}

func TestTokenExchanger_RefreshRotation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"rotated", `{"access_token":"AT2","token_type":"Bearer","scope":"","expires_in":60,"refresh_token":"RT2"}`, "RT2"},
		{"absent", `{"access_token":"AT2","token_type":"Bearer","scope":"","expires_in":60}`, "RT1"},
		{"empty", `{"access_token":"AT2","token_type":"Bearer","scope":"","expires_in":60,"refresh_token":""}`, "RT1"},
		{"null", `{"access_token":"AT2","token_type":"Bearer","scope":"","expires_in":60,"refresh_token":null}`, "RT1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mock.NewRecordingTransport().Reply(http.StatusOK, tt.body)
			tokens := &oauth.TokenSet{AccessToken: "AT1", RefreshToken: "RT1"}

			require.NoError(t, newTestExchanger(transport).Refresh(context.Background(), tokens))
			assert.Equal(t, tt.want, tokens.RefreshToken)
			assert.NotEmpty(t, tokens.RefreshToken)
		})
	}
}

func TestTokenExchanger_RefreshFailureKeepsTokens(t *testing.T) {
	original := oauth.TokenSet{AccessToken: "AT1", Scope: "s", ExpiresAt: testNow, RefreshToken: "RT1"}

	for _, reply := range []struct {
		status int
		body   string
	}{
		{http.StatusBadRequest, `{"error":"invalid_grant"}`},
		{http.StatusOK, `{"access_token":"AT2","token_type":"MAC","scope":"","expires_in":60}`},
		{http.StatusOK, `not json`},
	} {
		transport := mock.NewRecordingTransport().Reply(reply.status, reply.body)
		tokens := original

		require.Error(t, newTestExchanger(transport).Refresh(context.Background(), &tokens))
		assert.Equal(t, original, tokens)
	}
}

func TestTokenExchanger_RefreshIsRepeatable(t *testing.T) {
	body := `{"access_token":"AT2","token_type":"Bearer","scope":"s","expires_in":3600}`
	transport := mock.NewRecordingTransport().Reply(http.StatusOK, body).Reply(http.StatusOK, body)
	exchanger := newTestExchanger(transport)
	tokens := &oauth.TokenSet{AccessToken: "AT1", RefreshToken: "RT1"}

	require.NoError(t, exchanger.Refresh(context.Background(), tokens))
	first := *tokens
	require.NoError(t, exchanger.Refresh(context.Background(), tokens))

	assert.Equal(t, first, *tokens)
}
