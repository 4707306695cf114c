package web

import (
	"net/http"

	log "github.com/go-pkgz/lgr"
)

// handleLoginForm renders the login page.
func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	data := h.newTemplateData(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "login.html", data); err != nil {
		log.Printf("[ERROR] failed to execute login template: %v", err)
	}
}

// handleLogin processes the login form submission.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderLoginError(w, r, "Username and password are required")
		return
	}

	if !h.auth.IsValidUser(username, password) {
		h.renderLoginError(w, r, "Invalid username or password")
		return
	}

	token, err := h.auth.CreateSession(r.Context(), username)
	if err != nil {
		log.Printf("[ERROR] failed to create session: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// set cookie - use __Host- prefix for enhanced security over HTTPS (only when no base URL)
	// __Host- prefix requires Path="/" which doesn't work with base URL
	cookieName := "conndb-auth"
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	if secure && h.baseURL == "" {
		cookieName = "__Host-conndb-auth"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     h.cookiePath(),
		MaxAge:   int(h.auth.LoginTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})

	next := r.FormValue("next")
	if next == "" || next[0] != '/' {
		next = "/"
	}
	http.Redirect(w, r, h.url(next), http.StatusSeeOther)
}

// handleLogout logs the user out by clearing the session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// invalidate session
	for _, cookieName := range sessionCookieNames {
		if cookie, err := r.Cookie(cookieName); err == nil {
			h.auth.InvalidateSession(r.Context(), cookie.Value)
		}
	}

	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	// clear both cookies - need both paths for compatibility
	http.SetCookie(w, &http.Cookie{
		Name:     "conndb-auth",
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})

	// clear __Host- cookie if baseURL is empty (it requires Path="/")
	if h.baseURL == "" {
		http.SetCookie(w, &http.Cookie{
			Name:     "__Host-conndb-auth",
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   true,
		})
	}

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// renderLoginError renders the login page with an error message.
func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, errMsg string) {
	data := h.newTemplateData(r)
	data.Error = errMsg
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	if err := h.tmpl.ExecuteTemplate(w, "login.html", data); err != nil {
		log.Printf("[ERROR] failed to execute login template: %v", err)
	}
}

// handleChangePasswordForm renders the change password page.
func (h *Handler) handleChangePasswordForm(w http.ResponseWriter, r *http.Request) {
	data := h.newTemplateData(r)
	if err := h.tmpl.ExecuteTemplate(w, "change-password.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}

// handleChangePassword verifies the current password and replaces it.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	username := h.getCurrentUser(r)
	if username == "" {
		http.Redirect(w, r, h.url("/login"), http.StatusSeeOther)
		return
	}

	current := r.FormValue("current")
	newPassword := r.FormValue("new_password")
	confirm := r.FormValue("confirm")

	renderError := func(msg string) {
		data := h.newTemplateData(r)
		data.Error = msg
		w.WriteHeader(http.StatusUnprocessableEntity)
		if err := h.tmpl.ExecuteTemplate(w, "change-password.html", data); err != nil {
			log.Printf("[ERROR] failed to execute template: %v", err)
		}
	}

	if !h.auth.IsValidUser(username, current) {
		renderError("Current password incorrect")
		return
	}
	if newPassword == "" {
		renderError("New password cannot be empty")
		return
	}
	if newPassword != confirm {
		renderError("Passwords do not match")
		return
	}

	if err := h.auth.SetPassword(username, newPassword); err != nil {
		log.Printf("[ERROR] failed to set password for %q: %v", username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := h.newTemplateData(r)
	data.Success = "Password updated"
	if err := h.tmpl.ExecuteTemplate(w, "change-password.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}
