package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// password hashing parameters, matching the original users.json format:
// each entry is "salt_hex$hash_hex" with PBKDF2-HMAC-SHA256.
const (
	pbkdf2Iterations = 200000
	pbkdf2SaltSize   = 16
	pbkdf2KeySize    = 32
)

// default admin account created on first run when the users file is missing.
const (
	defaultAdminUser     = "admin"
	defaultAdminPassword = "secret123"
)

// defaultSessionCleanupInterval is the default interval for background cleanup of expired sessions.
const defaultSessionCleanupInterval = 1 * time.Hour

// sessionCookieNames defines cookie names for session authentication.
// __Host- prefix requires HTTPS, secure, path=/ (preferred for production).
// fallback cookie name works on HTTP for development.
var sessionCookieNames = []string{"__Host-conndb-auth", "conndb-auth"}

// SessionStore is the interface for persistent session storage.
// Defined consumer-side per Go idiom.
type SessionStore interface {
	CreateSession(ctx context.Context, token, username string, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (username string, expiresAt time.Time, err error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsByUsername(ctx context.Context, username string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Auth handles user authentication against the users file and session management.
type Auth struct {
	mu              sync.RWMutex      // protects users
	usersFile       string            // path to users.json for reloading and saving
	users           map[string]string // username -> "salt$hash"
	sessionStore    SessionStore
	loginTTL        time.Duration
	cleanupInterval time.Duration // interval for session cleanup, defaults to 1h
}

// NewAuth creates a new Auth instance from the users file.
// The file is created with a default admin account if it does not exist.
func NewAuth(usersFile string, loginTTL time.Duration, sessionStore SessionStore) (*Auth, error) {
	if usersFile == "" {
		return nil, errors.New("users file path is required")
	}
	if sessionStore == nil {
		return nil, errors.New("session store is required")
	}

	if err := ensureUsersFile(usersFile); err != nil {
		return nil, fmt.Errorf("failed to ensure users file: %w", err)
	}

	users, err := loadUsersFile(usersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load users file: %w", err)
	}

	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}

	return &Auth{
		usersFile:       usersFile,
		users:           users,
		sessionStore:    sessionStore,
		loginTTL:        loginTTL,
		cleanupInterval: defaultSessionCleanupInterval,
	}, nil
}

// ensureUsersFile creates the users file with a default admin account if missing.
func ensureUsersFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat users file: %w", err)
	}

	hashed, err := HashPassword(defaultAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}
	if err := saveUsersFile(path, map[string]string{defaultAdminUser: hashed}); err != nil {
		return err
	}

	log.Printf("[WARN] created %s with default credentials %s/%s, change the password after first login",
		path, defaultAdminUser, defaultAdminPassword)
	return nil
}

// loadUsersFile reads and parses the users JSON file.
func loadUsersFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from CLI flag, controlled by admin
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var users map[string]string
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	for name, stored := range users {
		if name == "" {
			return nil, errors.New("user name cannot be empty")
		}
		if !strings.Contains(stored, "$") {
			return nil, fmt.Errorf("malformed password entry for user %q", name)
		}
	}
	return users, nil
}

// saveUsersFile writes the users map as JSON.
func saveUsersFile(path string, users map[string]string) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}

// HashPassword returns "salt_hex$hash_hex" for the given password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	dk := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeySize, sha256.New)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(dk), nil
}

// VerifyPassword checks a password against a stored "salt$hash" entry.
// Malformed entries verify as false, never as an error.
func VerifyPassword(password, stored string) bool {
	saltHex, hashHex, found := strings.Cut(stored, "$")
	if !found {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	candidate := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(candidate, expected) == 1
}

// IsValidUser checks if username/password are valid credentials.
// Runs the hash comparison even for unknown users to prevent
// timing-based username enumeration.
func (a *Auth) IsValidUser(username, password string) bool {
	// dummy entry for constant-time comparison when the user doesn't exist
	const dummyStored = "00000000000000000000000000000000$" +
		"0000000000000000000000000000000000000000000000000000000000000000"

	a.mu.RLock()
	stored, exists := a.users[username]
	if !exists {
		stored = dummyStored
	}
	a.mu.RUnlock()

	ok := VerifyPassword(password, stored)
	return ok && exists
}

// HasUser reports whether the username exists in the users file.
func (a *Auth) HasUser(username string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.users[username]
	return ok
}

// SetPassword replaces the password for an existing user and persists the users file.
func (a *Auth) SetPassword(username, password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[username]; !ok {
		return fmt.Errorf("unknown user %q", username)
	}
	a.users[username] = hashed

	if err := saveUsersFile(a.usersFile, a.users); err != nil {
		return fmt.Errorf("failed to save users file: %w", err)
	}
	return nil
}

// CreateSession generates a new session token for the given username.
func (a *Auth) CreateSession(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	expiresAt := time.Now().Add(a.loginTTL)

	if err := a.sessionStore.CreateSession(ctx, token, username, expiresAt); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

// GetSessionUser returns the username for a valid session.
// Returns empty string and false if session is invalid or expired.
// Note: expiration is checked in store.GetSession, which returns ErrNotFound for expired sessions.
func (a *Auth) GetSessionUser(ctx context.Context, token string) (string, bool) {
	username, _, err := a.sessionStore.GetSession(ctx, token)
	if err != nil {
		return "", false
	}
	return username, true
}

// ValidateSession checks if a session token is valid and not expired.
func (a *Auth) ValidateSession(ctx context.Context, token string) bool {
	_, _, err := a.sessionStore.GetSession(ctx, token)
	return err == nil
}

// InvalidateSession removes a session.
func (a *Auth) InvalidateSession(ctx context.Context, token string) {
	_ = a.sessionStore.DeleteSession(ctx, token)
}

// LoginTTL returns the session duration.
func (a *Auth) LoginTTL() time.Duration {
	return a.loginTTL
}

// StartCleanup starts background cleanup of expired sessions.
// Runs periodically until context is canceled. Default interval is 1 hour.
func (a *Auth) StartCleanup(ctx context.Context) {
	interval := a.cleanupInterval
	if interval == 0 {
		interval = defaultSessionCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("[INFO] session cleanup stopped")
				return
			case <-ticker.C:
				deleted, err := a.sessionStore.DeleteExpiredSessions(ctx)
				if err != nil {
					log.Printf("[WARN] failed to cleanup expired sessions: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("[INFO] cleaned up %d expired sessions", deleted)
				}
			}
		}
	}()

	log.Printf("[INFO] session cleanup started (interval: %s)", interval)
}

// snapshotUsers returns a copy of the current users map.
func (a *Auth) snapshotUsers() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	users := make(map[string]string, len(a.users))
	for name, stored := range a.users {
		users[name] = stored
	}
	return users
}

// Reload reloads the users file.
// Sessions are invalidated for users removed or with changed passwords.
func (a *Auth) Reload(ctx context.Context) error {
	// capture old users state for selective session invalidation
	oldUsers := a.snapshotUsers()

	users, err := loadUsersFile(a.usersFile)
	if err != nil {
		return fmt.Errorf("failed to load users file: %w", err)
	}
	if len(users) == 0 {
		return errors.New("users file must have at least one user")
	}

	a.mu.Lock()
	a.users = users
	a.mu.Unlock()

	// selective session invalidation: only for users removed or with password changes
	var invalidated []string
	for username, oldStored := range oldUsers {
		newStored, exists := users[username]
		if !exists || newStored != oldStored {
			invalidated = append(invalidated, username)
		}
	}

	// delete sessions outside the lock to avoid holding it during I/O
	for _, username := range invalidated {
		if err := a.sessionStore.DeleteSessionsByUsername(ctx, username); err != nil {
			log.Printf("[WARN] failed to delete sessions for user %q: %v", username, err)
		}
	}

	if len(invalidated) > 0 {
		log.Printf("[INFO] users file reloaded from %s, invalidated sessions for: %v", a.usersFile, invalidated)
	} else {
		log.Printf("[INFO] users file reloaded from %s, no sessions invalidated", a.usersFile)
	}
	return nil
}

// StartWatcher watches the users file for changes and reloads on modification.
// Runs until the context is canceled.
func (a *Auth) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// watch the directory containing the users file (not the file itself)
	// this catches atomic renames used by editors like vim/VSCode
	dir := filepath.Dir(a.usersFile)
	filename := filepath.Base(a.usersFile)

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	log.Printf("[INFO] watching users file %s for changes", a.usersFile)

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounceTimer *time.Timer
		const debounceDelay = 100 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				log.Printf("[INFO] users file watcher stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				// only react to events on our users file
				if filepath.Base(event.Name) != filename {
					continue
				}

				// react to write, create, rename events
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				// debounce rapid changes
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := a.Reload(ctx); err != nil {
						log.Printf("[WARN] failed to reload users file: %v", err)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] users file watcher error: %v", err)
			}
		}
	}()

	return nil
}

// SessionAuth returns middleware that requires a valid session cookie.
// Unauthenticated requests are redirected to the login page.
func (a *Auth) SessionAuth(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// check session cookie
			for _, cookieName := range sessionCookieNames {
				if cookie, err := r.Cookie(cookieName); err == nil && a.ValidateSession(r.Context(), cookie.Value) {
					next.ServeHTTP(w, r)
					return
				}
			}
			// no valid session - handle redirect based on request type
			if r.Header.Get("HX-Request") == "true" {
				// HTMX request: use HX-Redirect header to trigger full page navigation
				// instead of swapping login form into the target element
				w.Header().Set("HX-Redirect", loginURL)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			// regular request: use standard HTTP redirect
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
		})
	}
}
