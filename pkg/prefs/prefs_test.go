package prefs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "prefs.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestThemeDefaultsFollowSystem(t *testing.T) {
	light := openTestStore(t, WithSystemDark(func() bool { return false }))
	theme, err := light.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	dark := openTestStore(t, WithSystemDark(func() bool { return true }))
	theme, err = dark.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestThemeRoundTrip(t *testing.T) {
	s := openTestStore(t, WithSystemDark(func() bool { return true }))

	require.NoError(t, s.SetTheme(ThemeLight))

	// Saved preference wins over the system scheme.
	theme, err := s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestThemePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetTheme(ThemeDark))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	theme, err := s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	s := openTestStore(t)
	err := s.SetTheme("sepia")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestDensityDefaultsToMedium(t *testing.T) {
	s := openTestStore(t)

	density, err := s.Density()
	require.NoError(t, err)
	assert.Equal(t, DensityMedium, density)
}

func TestDensityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	for _, d := range []Density{DensitySmall, DensityMedium, DensityList} {
		require.NoError(t, s.SetDensity(d))
		density, err := s.Density()
		require.NoError(t, err)
		assert.Equal(t, d, density)
	}

	err := s.SetDensity("huge")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}
