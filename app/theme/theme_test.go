package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arupa444/Connection-That-Grow/app/enum"
)

// mapStore is an in-memory Store for tests.
type mapStore map[string]string

func (m mapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) Set(key, value string) { m[key] = value }

func TestController_Apply(t *testing.T) {
	tests := []struct {
		value    string
		expected enum.Theme
		class    string
	}{
		{value: "light", expected: enum.ThemeLight, class: "light-mode"},
		{value: "dark", expected: enum.ThemeDark, class: "dark-mode"},
		{value: "astro", expected: enum.ThemeAstro, class: "astro-mode"},
		{value: "sepia", expected: enum.ThemeLight, class: "light-mode"},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			prefs := mapStore{}
			c := New(prefs)

			applied := c.Apply(tc.value)
			assert.Equal(t, tc.expected, applied)
			assert.Equal(t, tc.class, applied.Class())

			// persisted verbatim, even when unrecognized
			assert.Equal(t, tc.value, prefs[PrefKey])
		})
	}
}

func TestController_ClassExclusive(t *testing.T) {
	// each theme renders exactly one of the three classes, the other two absent
	all := map[string]bool{"light-mode": true, "dark-mode": true, "astro-mode": true}

	for _, th := range enum.Themes() {
		c := New(mapStore{})
		applied := c.Apply(th.String())

		class := applied.Class()
		require.Contains(t, all, class)
		for other := range all {
			if other != class {
				assert.NotEqual(t, other, class)
			}
		}
	}
}

func TestController_Idempotent(t *testing.T) {
	prefs := mapStore{}
	c := New(prefs)

	first := c.Apply("dark")
	second := c.Apply("dark")

	assert.Equal(t, first, second)
	assert.Equal(t, first.Class(), second.Class())
	assert.Equal(t, "dark", prefs[PrefKey])
}

func TestController_PersistenceRoundTrip(t *testing.T) {
	prefs := mapStore{}

	c := New(prefs)
	c.Apply("astro")

	// a fresh controller over the same store sees the last write
	reloaded := New(prefs)
	assert.Equal(t, enum.ThemeAstro, reloaded.Current())
	assert.Equal(t, "astro-mode", reloaded.Current().Class())
}

func TestController_Current(t *testing.T) {
	t.Run("defaults to light when unset", func(t *testing.T) {
		c := New(mapStore{})
		assert.Equal(t, enum.ThemeLight, c.Current())
		assert.Equal(t, "light-mode", c.Current().Class())
	})

	t.Run("dark preference yields dark-mode only", func(t *testing.T) {
		c := New(mapStore{PrefKey: "dark"})
		assert.Equal(t, enum.ThemeDark, c.Current())
		assert.Equal(t, "dark-mode", c.Current().Class())
	})

	t.Run("unrecognized persisted value falls through to light", func(t *testing.T) {
		c := New(mapStore{PrefKey: "sepia"})
		assert.Equal(t, enum.ThemeLight, c.Current())
		assert.Equal(t, "light-mode", c.Current().Class())
	})
}

func TestController_Raw(t *testing.T) {
	prefs := mapStore{}
	c := New(prefs)

	_, ok := c.Raw()
	assert.False(t, ok)

	c.Apply("sepia")
	raw, ok := c.Raw()
	require.True(t, ok)
	assert.Equal(t, "sepia", raw, "raw value survives coercion")
}
