// Package validator provides validation for contact records.
package validator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/arupa444/Connection-That-Grow/app/store"
)

// Service provides contact field validation.
type Service struct{}

// NewService creates a new validation service.
func NewService() *Service {
	return &Service{}
}

// ValidateContact checks required fields and field formats.
// Phone is optional, everything else is required.
func (s *Service) ValidateContact(c store.Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(c.Company) == "" {
		return errors.New("company is required")
	}
	if strings.TrimSpace(c.Role) == "" {
		return errors.New("role is required")
	}
	if strings.TrimSpace(c.Link) == "" {
		return errors.New("connection link is required")
	}
	if err := s.validateEmail(c.Email); err != nil {
		return err
	}
	return s.validateLink(c.Link)
}

// validateEmail requires "@" and "." to be present.
func (s *Service) validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email %q", email)
	}
	if strings.ContainsAny(email, " \t") {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}

// validateLink requires an absolute http(s) URL.
func (s *Service) validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid connection link %q: %w", link, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("connection link %q must be an http(s) URL", link)
	}
	if u.Host == "" {
		return fmt.Errorf("connection link %q has no host", link)
	}
	return nil
}
