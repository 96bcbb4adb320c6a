package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mksbai/backend-chat-buy-crypto/core/csrf"
	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/middleware"
)

func testConfig() Config {
	return Config{
		AppName:           "chat-backend-test",
		AppEnv:            "dev",
		CORSOrigins:       "http://localhost:5173",
		StreamDelay:       0,
		MaxMessageBytes:   10240,
		SessionTTL:        time.Minute,
		SessionGCInterval: time.Minute,
		FreshnessWindow:   5 * time.Minute,
	}
}

func startApp(t *testing.T, cfg Config) (*httptest.Server, *http.Client) {
	t.Helper()

	log := logger.New(logger.WithOutput(io.Discard))
	srv := httptest.NewServer(newApp(cfg, log).handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return srv, &http.Client{Jar: jar}
}

func cookieValue(t *testing.T, client *http.Client, rawURL, name string) string {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// guardedRequest builds a mutating request carrying everything the
// pipeline demands: the echoed token header plus a fresh timestamp and a
// unique nonce.
func guardedRequest(t *testing.T, method, rawURL, body, token string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, rawURL, strings.NewReader(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, token)
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(middleware.HeaderNonce, uuid.NewString())
	return req
}

// bootstrap performs the first harmless request so the client holds
// session and token cookies, and returns the token value.
func bootstrap(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()

	resp, err := client.Get(baseURL + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := cookieValue(t, client, baseURL, csrf.CookieName)
	require.NotEmpty(t, token)
	require.NotEmpty(t, cookieValue(t, client, baseURL, middleware.SessionCookieName))
	return token
}

func TestServer_Bootstrap(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())

	resp, err := client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	assert.NotEmpty(t, cookieValue(t, client, srv.URL, middleware.SessionCookieName))
	assert.NotEmpty(t, cookieValue(t, client, srv.URL, csrf.CookieName))
}

func TestServer_ChatStreamsPlaceholder(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())
	token := bootstrap(t, client, srv.URL)

	req := guardedRequest(t, http.MethodPost, srv.URL+"/api/chat", `{"message":"hello"}`, token)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, placeholderText, string(body))
}

func TestServer_ChatRejectsNonceReuse(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())
	token := bootstrap(t, client, srv.URL)

	nonce := uuid.NewString()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	send := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"message":"hi"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(csrf.HeaderName, token)
		req.Header.Set(middleware.HeaderTimestamp, ts)
		req.Header.Set(middleware.HeaderNonce, nonce)
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	first := send()
	_, _ = io.Copy(io.Discard, first.Body)
	require.NoError(t, first.Body.Close())
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := send()
	defer second.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get(middleware.HeaderRequestID))

	body, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestServer_ChatGuards(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())
	token := bootstrap(t, client, srv.URL)

	t.Run("missing freshness headers", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"message":"hi"}`))
		require.NoError(t, err)
		req.Header.Set(csrf.HeaderName, token)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := guardedRequest(t, http.MethodPost, srv.URL+"/api/chat", `{"message":"hi"}`, token)
		req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing token header", func(t *testing.T) {
		req := guardedRequest(t, http.MethodPost, srv.URL+"/api/chat", `{"message":"hi"}`, token)
		req.Header.Del(csrf.HeaderName)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("mismatched token header", func(t *testing.T) {
		req := guardedRequest(t, http.MethodPost, srv.URL+"/api/chat", `{"message":"hi"}`, strings.Repeat("f", len(token)))

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestServer_ChatValidation(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())
	token := bootstrap(t, client, srv.URL)

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"empty body", "", "Request body is required"},
		{"invalid json", "{not json", "Invalid JSON payload"},
		{"missing message", `{"other":"field"}`, "'message' field is required"},
		{"non-string message", `{"message":42}`, "'message' must be a string"},
		{"blank message", `{"message":"   "}`, "'message' must not be empty"},
		{"oversized message", `{"message":"` + strings.Repeat("a", 10241) + `"}`, "'message' exceeds size limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := guardedRequest(t, http.MethodPost, srv.URL+"/api/chat", tt.body, token)

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.detail, body["detail"])
		})
	}
}

func TestServer_CSRFTokenEndpoint(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())

	resp, err := client.Get(srv.URL + "/csrf")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, cookieValue(t, client, srv.URL, csrf.CookieName), body["csrf_token"])
	assert.NotEmpty(t, body["csrf_token"])
}

func TestServer_LoginLogout(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())
	token := bootstrap(t, client, srv.URL)

	me := func() map[string]any {
		resp, err := client.Get(srv.URL + "/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	assert.Equal(t, true, me()["anonymous"])

	userID := uuid.NewString()
	anonSID := cookieValue(t, client, srv.URL, middleware.SessionCookieName)

	req := guardedRequest(t, http.MethodPost, srv.URL+"/api/login", `{"user_id":"`+userID+`"}`, token)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Login must rotate the session identifier.
	authSID := cookieValue(t, client, srv.URL, middleware.SessionCookieName)
	assert.NotEmpty(t, authSID)
	assert.NotEqual(t, anonSID, authSID)

	identity := me()
	assert.Equal(t, false, identity["anonymous"])
	assert.Equal(t, userID, identity["user_id"])

	req = guardedRequest(t, http.MethodPost, srv.URL+"/api/logout", "", token)
	resp, err = client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, me()["anonymous"])
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimitRPS = 2 // burst of 4

	srv, client := startApp(t, cfg)

	statuses := make([]int, 0, 10)
	for _i := 0; _i < 10; _i++ {
		resp, err := client.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		statuses = append(statuses, resp.StatusCode)
	}

	admitted := 0
	for _, s := range statuses {
		switch s {
		case http.StatusOK:
			admitted++
		case http.StatusTooManyRequests:
		default:
			t.Fatalf("unexpected status %d", s)
		}
	}
	// The burst is admitted up front; refill during a slow run may admit a
	// few more, but sustained excess must be rejected.
	assert.GreaterOrEqual(t, admitted, 4)
	assert.Less(t, admitted, 10)
}

func TestServer_RequestIDOnEveryResponse(t *testing.T) {
	t.Parallel()

	srv, client := startApp(t, testConfig())

	// Rejected requests carry the correlation id too.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader("{}"))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))
}
