// Package enum provides typed enumerations for UI preferences.
package enum

import "fmt"

// Theme is the visual theme selection.
type Theme int

// Theme values. Light is the default and the fall-through branch for
// anything unrecognized.
const (
	ThemeLight Theme = iota
	ThemeDark
	ThemeAstro
)

// themeNames maps Theme values to their string form.
var themeNames = map[Theme]string{
	ThemeLight: "light",
	ThemeDark:  "dark",
	ThemeAstro: "astro",
}

// String returns the string representation of the theme.
func (t Theme) String() string {
	if name, ok := themeNames[t]; ok {
		return name
	}
	return "light"
}

// Class returns the body CSS class for the theme. Exactly one of the three
// theme classes corresponds to each value.
func (t Theme) Class() string {
	switch t {
	case ThemeDark:
		return "dark-mode"
	case ThemeAstro:
		return "astro-mode"
	default:
		return "light-mode"
	}
}

// ParseTheme converts a string to a Theme value.
func ParseTheme(s string) (Theme, error) {
	for t, name := range themeNames {
		if name == s {
			return t, nil
		}
	}
	return ThemeLight, fmt.Errorf("invalid theme %q", s)
}

// CoerceTheme converts a string to a Theme, falling through to ThemeLight
// for anything unrecognized. Persisted values are not validated on write,
// so reads must tolerate arbitrary strings.
func CoerceTheme(s string) Theme {
	t, err := ParseTheme(s)
	if err != nil {
		return ThemeLight
	}
	return t
}

// Themes returns all defined themes in display order.
func Themes() []Theme {
	return []Theme{ThemeLight, ThemeDark, ThemeAstro}
}

// SortMode is the contact list ordering.
type SortMode int

// SortMode values.
const (
	SortModeUpdated SortMode = iota
	SortModeName
	SortModeCompany
	SortModeCreated
)

// sortModeNames maps SortMode values to their string form.
var sortModeNames = map[SortMode]string{
	SortModeUpdated: "updated",
	SortModeName:    "name",
	SortModeCompany: "company",
	SortModeCreated: "created",
}

// String returns the string representation of the sort mode.
func (m SortMode) String() string {
	if name, ok := sortModeNames[m]; ok {
		return name
	}
	return "updated"
}

// ParseSortMode converts a string to a SortMode value.
func ParseSortMode(s string) (SortMode, error) {
	for m, name := range sortModeNames {
		if name == s {
			return m, nil
		}
	}
	return SortModeUpdated, fmt.Errorf("invalid sort mode %q", s)
}

// Next cycles to the following sort mode: updated -> name -> company -> created -> updated.
func (m SortMode) Next() SortMode {
	switch m {
	case SortModeUpdated:
		return SortModeName
	case SortModeName:
		return SortModeCompany
	case SortModeCompany:
		return SortModeCreated
	default:
		return SortModeUpdated
	}
}
