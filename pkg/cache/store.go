package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrCacheMiss indicates the requested asset was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrStaleGeneration indicates a write was attempted under a
	// generation that is no longer current.
	ErrStaleGeneration = errors.New("stale cache generation")

	// ErrNotInstalled indicates Activate was called before Install
	// populated the generation.
	ErrNotInstalled = errors.New("generation not installed")
)

// FetchFunc retrieves a shell asset during install. Install aborts on
// the first error.
type FetchFunc func(ctx context.Context, assetPath string) (*Entry, error)

// Store handles asset caching for one generation.
type Store struct {
	redis     *redis.Client
	gen       Generation
	installed bool
	logger    zerolog.Logger
}

// NewStore creates a store bound to the given generation.
func NewStore(redisClient *redis.Client, gen Generation) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if gen == "" {
		panic("generation cannot be empty")
	}
	return &Store{
		redis:  redisClient,
		gen:    gen,
		logger: log.With().Str("component", "asset-cache").Str("generation", string(gen)).Logger(),
	}
}

// Generation returns the generation this store writes under.
func (s *Store) Generation() Generation {
	return s.gen
}

// CurrentGeneration returns the generation currently serving, or empty
// if none has ever been activated.
func (s *Store) CurrentGeneration(ctx context.Context) (Generation, error) {
	cur, err := s.redis.Get(ctx, currentKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get current generation: %w", err)
	}
	return Generation(cur), nil
}

// IsCurrent reports whether this store's generation is the serving one.
func (s *Store) IsCurrent(ctx context.Context) (bool, error) {
	cur, err := s.CurrentGeneration(ctx)
	if err != nil {
		return false, err
	}
	return cur == s.gen, nil
}

// Get retrieves a cached asset by key. Returns ErrCacheMiss if absent.
func (s *Store) Get(ctx context.Context, assetKey string) (*Entry, error) {
	data, err := s.redis.Get(ctx, entryKey(s.gen, NormalizeAssetKey(assetKey))).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := UnmarshalEntry(data)
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	cacheHits.Inc()
	return entry, nil
}

// Put stores an asset under this store's generation. The write is
// refused with ErrStaleGeneration if the generation has been superseded,
// so a demoted store can never corrupt the serving asset set.
func (s *Store) Put(ctx context.Context, assetKey string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	current, err := s.IsCurrent(ctx)
	if err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return err
	}
	if !current {
		return ErrStaleGeneration
	}

	return s.write(ctx, assetKey, entry)
}

// write stores an entry without the current-generation guard. Install
// uses it to populate a generation before promotion.
func (s *Store) write(ctx context.Context, assetKey string, entry *Entry) error {
	data, err := entry.Marshal()
	if err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, entryKey(s.gen, NormalizeAssetKey(assetKey)), data, 0).Err(); err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	cacheSizeBytes.Add(float64(len(data)))
	return nil
}

// Delete removes a cached asset.
func (s *Store) Delete(ctx context.Context, assetKey string) error {
	if err := s.redis.Del(ctx, entryKey(s.gen, NormalizeAssetKey(assetKey))).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Install pre-populates this generation with every asset in the
// manifest, fetching them concurrently. The serving generation is not
// touched. If any asset fails to fetch the whole install is aborted,
// partially written entries are removed, and the previous generation
// remains current.
func (s *Store) Install(ctx context.Context, manifest []string, fetch FetchFunc) error {
	if fetch == nil {
		return fmt.Errorf("fetch func cannot be nil")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, path := range manifest {
		g.Go(func() error {
			entry, err := fetch(gctx, path)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", path, err)
			}
			if err := s.write(gctx, path, entry); err != nil {
				return fmt.Errorf("store %s: %w", path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		installFailures.Inc()
		s.logger.Error().Err(err).Int("manifest_size", len(manifest)).Msg("Install aborted, previous generation stays current")
		if cleanupErr := s.evictGeneration(context.WithoutCancel(ctx), s.gen); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Msg("Failed to clean up aborted install")
		}
		return fmt.Errorf("install generation %s: %w", s.gen, err)
	}

	s.installed = true
	installsTotal.Inc()
	s.logger.Info().Int("assets", len(manifest)).Msg("Generation installed")
	return nil
}

// Activate promotes this generation to current and evicts all others.
// Existing readers see the new generation on their next request, the
// moral equivalent of claiming open clients without a hard refresh.
func (s *Store) Activate(ctx context.Context) error {
	if !s.installed {
		return ErrNotInstalled
	}

	if err := s.redis.Set(ctx, currentKey, string(s.gen), 0).Err(); err != nil {
		cacheErrors.WithLabelValues("activate").Inc()
		return fmt.Errorf("promote generation: %w", err)
	}

	s.logger.Info().Msg("Generation activated")
	return s.EvictNonCurrent(ctx)
}

// EvictNonCurrent deletes every entry that does not belong to the
// current generation. This is the only point old entries are removed.
func (s *Store) EvictNonCurrent(ctx context.Context) error {
	cur, err := s.CurrentGeneration(ctx)
	if err != nil {
		return err
	}

	keepPrefix := KeyPrefix + ":" + string(cur) + ":"
	evicted := 0

	iter := s.redis.Scan(ctx, 0, KeyPrefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == currentKey || strings.HasPrefix(key, keepPrefix) {
			continue
		}
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			cacheErrors.WithLabelValues("evict").Inc()
			return fmt.Errorf("evict %s: %w", key, err)
		}
		evicted++
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("evict").Inc()
		return fmt.Errorf("scan cache keys: %w", err)
	}

	if evicted > 0 {
		evictionsTotal.Add(float64(evicted))
		s.logger.Info().Int("evicted", evicted).Msg("Evicted non-current generations")
	}
	return nil
}

// evictGeneration removes every entry of a single generation.
func (s *Store) evictGeneration(ctx context.Context, gen Generation) error {
	iter := s.redis.Scan(ctx, 0, generationPattern(gen), 200).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
