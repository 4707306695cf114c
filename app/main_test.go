package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	opts.DB = filepath.Join(tmpDir, "test.db")
	opts.ImportFile = ""
	opts.CacheSize = 100
	opts.Server.Address = "127.0.0.1:18080" // non-standard port to avoid conflicts
	opts.Server.BaseURL = ""
	opts.Server.ReadTimeout = 5
	opts.Server.ShutdownTimeout = 5
	opts.Auth.UsersFile = filepath.Join(tmpDir, "users.json")
	opts.Auth.LoginTTL = 60

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	waitForServer(t, "http://127.0.0.1:18080/ping")

	client := &http.Client{Timeout: 5 * time.Second}
	noRedirect := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	t.Run("index is public and renders default theme", func(t *testing.T) {
		resp, err := client.Get("http://127.0.0.1:18080/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `class="light-mode"`)
	})

	t.Run("theme selection persists across requests", func(t *testing.T) {
		resp, err := noRedirect.PostForm("http://127.0.0.1:18080/web/theme",
			url.Values{"theme": {"astro"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

		var themeCookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "theme" {
				themeCookie = c
			}
		}
		require.NotNil(t, themeCookie)
		assert.Equal(t, "astro", themeCookie.Value)

		req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:18080/", http.NoBody)
		require.NoError(t, err)
		req.AddCookie(themeCookie)
		resp2, err := client.Do(req)
		require.NoError(t, err)
		defer resp2.Body.Close()

		body, err := io.ReadAll(resp2.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `class="astro-mode"`)
	})

	t.Run("add requires login", func(t *testing.T) {
		resp, err := noRedirect.Get("http://127.0.0.1:18080/add")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("default admin can login and add a contact", func(t *testing.T) {
		resp, err := noRedirect.PostForm("http://127.0.0.1:18080/login",
			url.Values{"username": {"admin"}, "password": {"secret123"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)

		var session *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "conndb-auth" {
				session = c
			}
		}
		require.NotNil(t, session, "session cookie should be set")

		form := url.Values{
			"name":    {"Alice Smith"},
			"company": {"Acme"},
			"link":    {"https://example.com/alice"},
			"email":   {"alice@acme.com"},
			"role":    {"CTO"},
		}
		req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:18080/add",
			strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(session)
		resp2, err := noRedirect.Do(req)
		require.NoError(t, err)
		defer resp2.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp2.StatusCode)

		// contact visible on the public index
		resp3, err := client.Get("http://127.0.0.1:18080/")
		require.NoError(t, err)
		defer resp3.Body.Close()
		body, err := io.ReadAll(resp3.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Alice Smith")
	})

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestRun_WithImport(t *testing.T) {
	tmpDir := t.TempDir()

	// prepare a workbook with one contact
	xlsxPath := filepath.Join(tmpDir, "legacy.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "connections"))
	header := []any{"Name", "Company", "Connection Link", "Email", "Phone No.", "Role"}
	require.NoError(t, f.SetSheetRow("connections", "A1", &header))
	row := []any{"Bob Jones", "Globex", "https://example.com/bob", "bob@globex.io", "", "Engineer"}
	require.NoError(t, f.SetSheetRow("connections", "A2", &row))
	require.NoError(t, f.SaveAs(xlsxPath))
	require.NoError(t, f.Close())

	opts.DB = filepath.Join(tmpDir, "test.db")
	opts.ImportFile = xlsxPath
	opts.CacheSize = 100
	opts.Server.Address = "127.0.0.1:18081"
	opts.Server.BaseURL = ""
	opts.Server.ReadTimeout = 5
	opts.Server.ShutdownTimeout = 5
	opts.Auth.UsersFile = filepath.Join(tmpDir, "users.json")
	opts.Auth.LoginTTL = 60

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	waitForServer(t, "http://127.0.0.1:18081/ping")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://127.0.0.1:18081/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Bob Jones", "imported contact should be listed")

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}

	opts.ImportFile = ""
}

func TestRun_InvalidDB(t *testing.T) {
	opts.DB = "/nonexistent/path/to/db.db"
	opts.ImportFile = ""
	opts.CacheSize = 100
	opts.Server.Address = "127.0.0.1:18082"
	opts.Server.ReadTimeout = 5

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize store")
}

func TestSetupLogs(t *testing.T) {
	t.Run("default mode", func(t *testing.T) {
		opts.Debug = false
		assert.NotNil(t, setupLogs())
	})

	t.Run("debug mode", func(t *testing.T) {
		opts.Debug = true
		defer func() { opts.Debug = false }()
		assert.NotNil(t, setupLogs())
	})
}

func TestSignals(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NotPanics(t, func() {
		signals(cancel)
	})
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	client := &http.Client{Timeout: 100 * time.Millisecond}
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond, "server did not start")
}
