package web

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_LoginForm(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ts := newTestServer(t, h)

	resp, err := ts.Client().Get(ts.URL + "/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	assert.Contains(t, page, `name="username"`)
	assert.Contains(t, page, `name="password"`)
}

func TestHandler_Login(t *testing.T) {
	h, _, auth := newTestHandler(t)
	ts := newTestServer(t, h)
	client := noRedirectClient(ts)

	t.Run("valid credentials set session cookie", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{
			"username": {"admin"}, "password": {"secret123"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))

		var session *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "conndb-auth" {
				session = c
			}
		}
		require.NotNil(t, session, "session cookie should be set")
		assert.NotEmpty(t, session.Value)
		assert.True(t, session.HttpOnly)

		username, ok := auth.GetSessionUser(context.Background(), session.Value)
		assert.True(t, ok)
		assert.Equal(t, "admin", username)
	})

	t.Run("wrong password rejected with 401", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{
			"username": {"admin"}, "password": {"wrong"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Invalid username or password")
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{"username": {"admin"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Username and password are required")
	})

	t.Run("next param controls redirect target", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{
			"username": {"admin"}, "password": {"secret123"}, "next": {"/add"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/add", resp.Header.Get("Location"))
	})

	t.Run("absolute next param sanitized to root", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{
			"username": {"admin"}, "password": {"secret123"}, "next": {"https://evil.example.com"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "/", resp.Header.Get("Location"), "open redirect rejected")
	})
}

func TestHandler_Logout(t *testing.T) {
	h, _, auth := newTestHandler(t)
	ts := newTestServer(t, h)
	client := noRedirectClient(ts)

	token, err := auth.CreateSession(context.Background(), "admin")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/logout", http.NoBody)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "conndb-auth", Value: token})

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, ok := auth.GetSessionUser(context.Background(), token)
	assert.False(t, ok, "session should be invalidated")

	for _, c := range resp.Cookies() {
		if c.Name == "conndb-auth" {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge, "cookie should be expired")
		}
	}
}

func TestHandler_ChangePassword(t *testing.T) {
	h, _, auth := newTestHandler(t)
	ts := newTestServer(t, h)
	client := noRedirectClient(ts)

	token, err := auth.CreateSession(context.Background(), "admin")
	require.NoError(t, err)

	post := func(t *testing.T, form url.Values, withSession bool) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/change-password",
			strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if withSession {
			req.AddCookie(&http.Cookie{Name: "conndb-auth", Value: token})
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("anonymous is redirected to login", func(t *testing.T) {
		resp := post(t, url.Values{"current": {"secret123"}}, false)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("wrong current password rejected", func(t *testing.T) {
		resp := post(t, url.Values{
			"current": {"wrong"}, "new_password": {"newpass"}, "confirm": {"newpass"}}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Current password incorrect")
	})

	t.Run("mismatched confirmation rejected", func(t *testing.T) {
		resp := post(t, url.Values{
			"current": {"secret123"}, "new_password": {"newpass"}, "confirm": {"other"}}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Passwords do not match")
	})

	t.Run("empty new password rejected", func(t *testing.T) {
		resp := post(t, url.Values{
			"current": {"secret123"}, "new_password": {""}, "confirm": {""}}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("valid change updates password", func(t *testing.T) {
		resp := post(t, url.Values{
			"current": {"secret123"}, "new_password": {"newpass"}, "confirm": {"newpass"}}, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Password updated")

		assert.True(t, auth.IsValidUser("admin", "newpass"))
		assert.False(t, auth.IsValidUser("admin", "secret123"))
	})
}
