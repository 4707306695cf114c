// Package theme implements the visual theme preference: a single persisted
// string entry reflected onto the page as one of three mutually exclusive
// body classes. Persistence is behind the Store interface so the web layer
// can back it with a browser cookie and tests with a plain map.
package theme

import "github.com/arupa444/Connection-That-Grow/app/enum"

// PrefKey is the name of the persisted preference entry.
const PrefKey = "theme"

// Store persists named preference entries.
type Store interface {
	Get(key string) (value string, ok bool)
	Set(key, value string)
}

// Controller applies and persists the theme selection.
type Controller struct {
	prefs Store
}

// New creates a Controller over the given preference store.
func New(prefs Store) *Controller {
	return &Controller{prefs: prefs}
}

// Apply persists the selected value verbatim and returns the theme it
// renders as. Values are not validated on write; unrecognized strings are
// stored as-is and coerce to the default on read.
func (c *Controller) Apply(value string) enum.Theme {
	c.prefs.Set(PrefKey, value)
	return enum.CoerceTheme(value)
}

// Current returns the theme for the persisted preference, ThemeLight when
// the entry is absent or unrecognized.
func (c *Controller) Current() enum.Theme {
	value, ok := c.prefs.Get(PrefKey)
	if !ok {
		return enum.ThemeLight
	}
	return enum.CoerceTheme(value)
}

// Raw returns the persisted preference value without coercion, with ok=false
// when no preference was ever set.
func (c *Controller) Raw() (string, bool) {
	return c.prefs.Get(PrefKey)
}
