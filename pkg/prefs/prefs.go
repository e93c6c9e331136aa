// Package prefs persists local UI preferences in a bbolt file so they
// survive restarts without a round trip to the backend.
package prefs

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

// Theme is the color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Density is the book grid layout preference.
type Density string

const (
	DensitySmall  Density = "small"
	DensityMedium Density = "medium"
	DensityList   Density = "list"
)

var (
	bucketName = []byte("preferences")

	keyTheme   = []byte("theme")
	keyDensity = []byte("density")

	// ErrInvalidValue is returned when a stored or supplied preference
	// value is outside the known set.
	ErrInvalidValue = errors.New("invalid preference value")
)

// Store persists preferences in a single bbolt bucket.
type Store struct {
	db     *bolt.DB
	logger zerolog.Logger

	// systemDark reports whether the host prefers a dark scheme; used
	// only when no theme was saved yet.
	systemDark func() bool
}

// Option configures a Store.
type Option func(*Store)

// WithSystemDark overrides the host dark-scheme probe, mainly for tests.
func WithSystemDark(fn func() bool) Option {
	return func(s *Store) { s.systemDark = fn }
}

// Open opens (creating if needed) the preference database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open preference db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create preference bucket: %w", err)
	}

	s := &Store{
		db:         db,
		logger:     log.With().Str("component", "prefs").Logger(),
		systemDark: func() bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(key); v != nil {
			value = string(v)
		}
		return nil
	})
	return value, err
}

func (s *Store) put(key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, []byte(value))
	})
}

// Theme returns the saved theme, falling back to the host's color
// scheme when nothing was saved yet.
func (s *Store) Theme() (Theme, error) {
	value, err := s.get(keyTheme)
	if err != nil {
		return "", err
	}

	switch Theme(value) {
	case ThemeLight, ThemeDark:
		return Theme(value), nil
	case "":
		if s.systemDark() {
			return ThemeDark, nil
		}
		return ThemeLight, nil
	default:
		s.logger.Warn().Str("value", value).Msg("Ignoring unknown stored theme")
		return ThemeLight, nil
	}
}

// SetTheme saves the theme preference.
func (s *Store) SetTheme(theme Theme) error {
	switch theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidValue, theme)
	}
	return s.put(keyTheme, string(theme))
}

// Density returns the saved grid density, defaulting to medium.
func (s *Store) Density() (Density, error) {
	value, err := s.get(keyDensity)
	if err != nil {
		return "", err
	}

	switch Density(value) {
	case DensitySmall, DensityMedium, DensityList:
		return Density(value), nil
	case "":
		return DensityMedium, nil
	default:
		s.logger.Warn().Str("value", value).Msg("Ignoring unknown stored density")
		return DensityMedium, nil
	}
}

// SetDensity saves the grid density preference.
func (s *Store) SetDensity(density Density) error {
	switch density {
	case DensitySmall, DensityMedium, DensityList:
	default:
		return fmt.Errorf("%w: density %q", ErrInvalidValue, density)
	}
	return s.put(keyDensity, string(density))
}
