// Package web provides HTTP handlers for the contacts web UI.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-pkgz/routegroup"

	"github.com/arupa444/Connection-That-Grow/app/enum"
	"github.com/arupa444/Connection-That-Grow/app/store"
	"github.com/arupa444/Connection-That-Grow/app/theme"
)

// sessionCookieNames defines cookie names for session authentication.
// __Host- prefix requires HTTPS, secure, path=/ (preferred for production).
// fallback cookie name works on HTTP for development.
var sessionCookieNames = []string{"__Host-conndb-auth", "conndb-auth"}

//go:embed static
var staticFS embed.FS

//go:embed templates
var templatesFS embed.FS

// StaticFS returns the embedded static filesystem for external use.
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static sub-filesystem: %w", err)
	}
	return sub, nil
}

// ContactStore defines the interface for contact storage operations.
type ContactStore interface {
	List(ctx context.Context) ([]store.Contact, error)
	Get(ctx context.Context, id int64) (store.Contact, error)
	Add(ctx context.Context, c store.Contact) (int64, error)
	Update(ctx context.Context, c store.Contact) error
	Delete(ctx context.Context, id int64) error
}

// AuthProvider defines the interface for authentication operations.
type AuthProvider interface {
	IsValidUser(username, password string) bool
	SetPassword(username, password string) error
	CreateSession(ctx context.Context, username string) (string, error)
	GetSessionUser(ctx context.Context, token string) (string, bool)
	InvalidateSession(ctx context.Context, token string)
	LoginTTL() time.Duration
}

// Validator defines the interface for contact validation.
type Validator interface {
	ValidateContact(c store.Contact) error
}

// Config holds web handler configuration.
type Config struct {
	BaseURL string
}

// Handler handles web UI requests.
type Handler struct {
	store     ContactStore
	auth      AuthProvider
	validator Validator
	tmpl      *template.Template
	baseURL   string
}

// New creates a new web handler.
func New(st ContactStore, auth AuthProvider, val Validator, cfg Config) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Handler{
		store:     st,
		auth:      auth,
		validator: val,
		tmpl:      tmpl,
		baseURL:   cfg.BaseURL,
	}, nil
}

// Register registers public web UI routes on the given router.
func (h *Handler) Register(r *routegroup.Bundle) {
	r.HandleFunc("GET /{$}", h.handleIndex)
	r.HandleFunc("POST /web/theme", h.handleThemeSelect)
	r.HandleFunc("POST /web/sort", h.handleSortToggle)
}

// RegisterAuth registers auth routes (login form/logout) on the given router.
func (h *Handler) RegisterAuth(r *routegroup.Bundle) {
	r.HandleFunc("GET /login", h.handleLoginForm)
	r.HandleFunc("POST /logout", h.handleLogout)
}

// RegisterLogin registers the login POST handler with custom middleware.
func (h *Handler) RegisterLogin(r *routegroup.Bundle, middleware func(http.Handler) http.Handler) {
	r.Handle("POST /login", middleware(http.HandlerFunc(h.handleLogin)))
}

// RegisterProtected registers routes requiring a valid session.
func (h *Handler) RegisterProtected(r *routegroup.Bundle) {
	r.HandleFunc("GET /add", h.handleContactNew)
	r.HandleFunc("POST /add", h.handleContactCreate)
	r.HandleFunc("GET /update/{id}", h.handleContactEdit)
	r.HandleFunc("POST /update/{id}", h.handleContactUpdate)
	r.HandleFunc("POST /delete/{id}", h.handleContactDelete)
	r.HandleFunc("GET /download", h.handleDownload)
	r.HandleFunc("GET /change-password", h.handleChangePasswordForm)
	r.HandleFunc("POST /change-password", h.handleChangePassword)
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
	}
}

// parseTemplates parses all templates from embedded filesystem.
func parseTemplates() (*template.Template, error) {
	tmpl := template.New("").Funcs(templateFuncs())

	// parse base template with shared partials first
	baseContent, err := templatesFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("read base.html: %w", err)
	}
	tmpl, err = tmpl.Parse(string(baseContent))
	if err != nil {
		return nil, fmt.Errorf("parse base.html: %w", err)
	}

	pages := []string{"index.html", "login.html", "contact-form.html", "change-password.html"}
	for _, name := range pages {
		content, readErr := templatesFS.ReadFile("templates/" + name)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", name, readErr)
		}
		if _, parseErr := tmpl.New(name).Parse(string(content)); parseErr != nil {
			return nil, fmt.Errorf("parse %s: %w", name, parseErr)
		}
	}

	return tmpl, nil
}

// templateData holds data passed to templates.
type templateData struct {
	Contacts   []store.Contact
	Contact    store.Contact
	Query      string
	Theme      string   // current theme name after coercion
	ThemeClass string   // body class for the current theme
	Themes     []string // selectable theme options
	SortMode   string
	Username   string // current logged-in username, empty for anonymous
	IsNew      bool
	Error      string
	Success    string
	BaseURL    string
}

// cookiePrefs adapts request/response cookies to the theme preference store.
// Get reads from the request, Set writes a long-lived cookie to the response.
type cookiePrefs struct {
	w    http.ResponseWriter
	r    *http.Request
	path string
}

// Get returns the cookie value for the key.
func (c cookiePrefs) Get(key string) (string, bool) {
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes the value as a cookie.
func (c cookiePrefs) Set(key, value string) {
	if c.w == nil {
		return
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     c.path,
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// themeController builds a theme controller over request/response cookies.
func (h *Handler) themeController(w http.ResponseWriter, r *http.Request) *theme.Controller {
	return theme.New(cookiePrefs{w: w, r: r, path: h.cookiePath()})
}

// getTheme returns the current theme from the preference cookie,
// ThemeLight when absent or unrecognized.
func (h *Handler) getTheme(r *http.Request) enum.Theme {
	return h.themeController(nil, r).Current()
}

// getSortMode returns the current sort mode from cookie, defaulting to "updated".
func (h *Handler) getSortMode(r *http.Request) enum.SortMode {
	if cookie, err := r.Cookie("sort_mode"); err == nil {
		if mode, parseErr := enum.ParseSortMode(cookie.Value); parseErr == nil {
			return mode
		}
	}
	return enum.SortModeUpdated
}

// url returns a URL path with the base URL prefix.
func (h *Handler) url(path string) string {
	return h.baseURL + path
}

// cookiePath returns the path for cookies (base URL with trailing slash or "/").
func (h *Handler) cookiePath() string {
	if h.baseURL == "" {
		return "/"
	}
	return h.baseURL + "/"
}

// getCurrentUser returns the username from the session cookie, or empty string if not logged in.
func (h *Handler) getCurrentUser(r *http.Request) string {
	for _, cookieName := range sessionCookieNames {
		if cookie, err := r.Cookie(cookieName); err == nil {
			if username, ok := h.auth.GetSessionUser(r.Context(), cookie.Value); ok {
				return username
			}
		}
	}
	return ""
}

// newTemplateData builds the common template data for a request.
func (h *Handler) newTemplateData(r *http.Request) templateData {
	current := h.getTheme(r)
	themeNames := make([]string, 0, 3)
	for _, t := range enum.Themes() {
		themeNames = append(themeNames, t.String())
	}
	return templateData{
		Theme:      current.String(),
		ThemeClass: current.Class(),
		Themes:     themeNames,
		SortMode:   h.getSortMode(r).String(),
		Username:   h.getCurrentUser(r),
		BaseURL:    h.baseURL,
	}
}

// filterContacts filters by search term, case-insensitive substring match
// across all text fields.
func filterContacts(contacts []store.Contact, search string) []store.Contact {
	if search == "" {
		return contacts
	}
	search = strings.ToLower(search)
	var filtered []store.Contact
	for _, c := range contacts {
		fields := []string{c.Name, c.Company, c.Link, c.Email, c.Phone, c.Role}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), search) {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

// sortContacts sorts contacts by the given mode.
func sortContacts(contacts []store.Contact, mode enum.SortMode) {
	switch mode {
	case enum.SortModeName:
		sort.Slice(contacts, func(i, j int) bool {
			return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
		})
	case enum.SortModeCompany:
		sort.Slice(contacts, func(i, j int) bool {
			return strings.ToLower(contacts[i].Company) < strings.ToLower(contacts[j].Company)
		})
	case enum.SortModeCreated:
		sort.Slice(contacts, func(i, j int) bool {
			return contacts[i].CreatedAt.After(contacts[j].CreatedAt) // newest first
		})
	default: // "updated"
		sort.Slice(contacts, func(i, j int) bool {
			return contacts[i].UpdatedAt.After(contacts[j].UpdatedAt) // newest first
		})
	}
}
