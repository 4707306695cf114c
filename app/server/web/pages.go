package web

import (
	"errors"
	"net/http"
	"strconv"

	log "github.com/go-pkgz/lgr"

	"github.com/arupa444/Connection-That-Grow/app/store"
)

// handleIndex renders the main listing page. Public, read-only.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.store.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list contacts: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query().Get("q")
	contacts = filterContacts(contacts, query)

	data := h.newTemplateData(r)
	sortContacts(contacts, h.getSortMode(r))
	data.Contacts = contacts
	data.Query = query

	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}

// handleContactNew renders the empty contact form.
func (h *Handler) handleContactNew(w http.ResponseWriter, r *http.Request) {
	data := h.newTemplateData(r)
	data.IsNew = true
	if err := h.tmpl.ExecuteTemplate(w, "contact-form.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}

// handleContactCreate creates a new contact from the submitted form.
func (h *Handler) handleContactCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	contact := contactFromForm(r)
	if err := h.validator.ValidateContact(contact); err != nil {
		h.renderContactForm(w, r, contact, true, err.Error())
		return
	}

	if _, err := h.store.Add(r.Context(), contact); err != nil {
		log.Printf("[ERROR] failed to add contact: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// handleContactEdit renders the contact form pre-filled with an existing record.
func (h *Handler) handleContactEdit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	contact, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to get contact: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.renderContactForm(w, r, contact, false, "")
}

// handleContactUpdate updates an existing contact from the submitted form.
func (h *Handler) handleContactUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	contact := contactFromForm(r)
	contact.ID = id
	if err := h.validator.ValidateContact(contact); err != nil {
		h.renderContactForm(w, r, contact, false, err.Error())
		return
	}

	if err := h.store.Update(r.Context(), contact); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to update contact: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// handleContactDelete removes a contact.
func (h *Handler) handleContactDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to delete contact: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// handleThemeSelect persists the selected theme from a theme option element.
// The value is stored verbatim; unknown values render as the default theme.
func (h *Handler) handleThemeSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	selected := r.FormValue("theme")
	h.themeController(w, r).Apply(selected)

	if r.Header.Get("HX-Request") == "true" {
		// trigger full page refresh so the new body class takes effect
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// handleSortToggle cycles through sort modes: updated -> name -> company -> created -> updated.
func (h *Handler) handleSortToggle(w http.ResponseWriter, r *http.Request) {
	newMode := h.getSortMode(r).Next()
	http.SetCookie(w, &http.Cookie{
		Name:     "sort_mode",
		Value:    newMode.String(),
		Path:     h.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

// renderContactForm renders the contact form with the given state and optional error.
func (h *Handler) renderContactForm(w http.ResponseWriter, r *http.Request, contact store.Contact, isNew bool, errMsg string) {
	data := h.newTemplateData(r)
	data.Contact = contact
	data.IsNew = isNew
	data.Error = errMsg

	if errMsg != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := h.tmpl.ExecuteTemplate(w, "contact-form.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}

// contactFromForm builds a contact from submitted form values.
func contactFromForm(r *http.Request) store.Contact {
	return store.Contact{
		Name:    r.FormValue("name"),
		Company: r.FormValue("company"),
		Link:    r.FormValue("link"),
		Email:   r.FormValue("email"),
		Phone:   r.FormValue("phone"),
		Role:    r.FormValue("role"),
	}
}
