package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homelib/homelib-client/pkg/books"
)

var (
	queryFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_query_fetches_total",
		Help: "Total list fetches issued by the query sync engine",
	})

	queryStaleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_query_stale_dropped_total",
		Help: "Total list responses discarded by the staleness check",
	})

	queryDebounceFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_query_debounce_fires_total",
		Help: "Total debounced search fetches that actually fired",
	})
)

// DefaultDebounce is the quiet period for search-text updates.
const DefaultDebounce = 300 * time.Millisecond

// Fetcher executes one list query for a given state.
type Fetcher interface {
	FetchList(ctx context.Context, state State) (*books.BookList, error)
}

// ApplyFunc receives a list result that survived the staleness check,
// together with the state it was fetched for.
type ApplyFunc func(state State, list *books.BookList)

// ErrorFunc receives fetch failures for states that are still current.
type ErrorFunc func(state State, err error)

// Config holds the sync engine configuration.
type Config struct {
	// Fetcher executes list queries. Required.
	Fetcher Fetcher

	// Apply is called with every non-stale result. Required.
	Apply ApplyFunc

	// OnError is called with fetch failures for the current state.
	// Optional; failures are logged either way.
	OnError ErrorFunc

	// Debounce is the search quiet period. Defaults to
	// DefaultDebounce.
	Debounce time.Duration
}

// Sync owns the query state. All mutations go through its methods;
// mutations are applied in call order and each one (except debounced
// search keystrokes) issues a refetch. Out-of-order completions are
// handled by discarding any response whose originating state no longer
// matches the current one.
type Sync struct {
	mu        sync.Mutex
	state     State
	overrides map[string]SortOrder

	fetcher  Fetcher
	apply    ApplyFunc
	onError  ErrorFunc
	debounce time.Duration
	timer    *time.Timer

	ctx     context.Context
	logger  zerolog.Logger
	pending sync.WaitGroup
}

// NewSync creates a sync engine starting from DefaultState.
func NewSync(ctx context.Context, cfg Config) (*Sync, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Apply == nil {
		return nil, fmt.Errorf("apply func is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Sync{
		state:     DefaultState(),
		overrides: make(map[string]SortOrder),
		fetcher:   cfg.Fetcher,
		apply:     cfg.Apply,
		onError:   cfg.OnError,
		debounce:  cfg.Debounce,
		ctx:       ctx,
		logger:    log.With().Str("component", "query-sync").Logger(),
	}, nil
}

// Snapshot returns a copy of the current state for rendering.
func (s *Sync) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdateSearch sets the search text and schedules a debounced refetch:
// rapid keystrokes coalesce into a single fetch fired after the quiet
// period, using the last value. Returns the new encoded query.
func (s *Sync) UpdateSearch(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Search = text
	s.state.Page = 1

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		queryDebounceFires.Inc()
		s.mu.Lock()
		snapshot := s.state
		s.mu.Unlock()
		s.dispatch(snapshot)
	})

	return s.state.Encode()
}

// UpdateFilter sets a filter value ("status", "format" or "genre"),
// resets to the first page, and refetches immediately.
func (s *Sync) UpdateFilter(field, value string) string {
	s.mu.Lock()

	switch field {
	case "status":
		s.state.Status = value
	case "format":
		s.state.Format = value
	case "genre":
		s.state.Genre = value
	default:
		s.mu.Unlock()
		s.logger.Warn().Str("field", field).Msg("Unknown filter field ignored")
		return s.Snapshot().Encode()
	}
	s.state.Page = 1

	return s.mutateLocked()
}

// ChangeSort selects the sort field, applying its default direction
// unless the user set an explicit override for that field earlier in
// the session. Resets to the first page and refetches immediately.
func (s *Sync) ChangeSort(field string) string {
	s.mu.Lock()

	s.state.SortBy = field
	if order, ok := s.overrides[field]; ok {
		s.state.Order = order
	} else {
		s.state.Order = DefaultOrderFor(field)
	}
	s.state.Page = 1

	return s.mutateLocked()
}

// SetSortOrder records an explicit direction override for a field. If
// the field is the active sort, the change applies and refetches
// immediately.
func (s *Sync) SetSortOrder(field string, order SortOrder) string {
	s.mu.Lock()

	s.overrides[field] = order
	if s.state.SortBy != field {
		encoded := s.state.Encode()
		s.mu.Unlock()
		return encoded
	}
	s.state.Order = order
	s.state.Page = 1

	return s.mutateLocked()
}

// GotoPage navigates to a page. Unlike every other mutation it leaves
// the rest of the state untouched. Pages below 1 are clamped.
func (s *Sync) GotoPage(n int) string {
	s.mu.Lock()

	if n < 1 {
		n = 1
	}
	s.state.Page = n

	return s.mutateLocked()
}

// SetPerPage changes the page size and resets to the first page.
func (s *Sync) SetPerPage(n int) string {
	s.mu.Lock()

	if n < 1 {
		n = DefaultPerPage
	}
	s.state.PerPage = n
	s.state.Page = 1

	return s.mutateLocked()
}

// Refresh refetches the current state, e.g. after a create or delete.
func (s *Sync) Refresh() {
	s.mu.Lock()
	snapshot := s.state
	s.mu.Unlock()
	s.dispatch(snapshot)
}

// Wait blocks until all in-flight fetches have completed. Intended for
// tests and shutdown.
func (s *Sync) Wait() {
	s.pending.Wait()
}

// mutateLocked finishes a mutation: captures the snapshot, releases the
// lock, dispatches the fetch, and returns the new encoded query.
func (s *Sync) mutateLocked() string {
	snapshot := s.state
	s.mu.Unlock()
	s.dispatch(snapshot)
	return snapshot.Encode()
}

// dispatch issues one fetch for the given snapshot. The result is
// applied only if the state is still current at completion time;
// superseded responses are dropped silently. There is no cancellation:
// an outdated request is allowed to finish and lose the comparison.
func (s *Sync) dispatch(snapshot State) {
	key := snapshot.Encode()
	queryFetchesTotal.Inc()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		list, err := s.fetcher.FetchList(s.ctx, snapshot)

		s.mu.Lock()
		current := s.state.Encode() == key
		s.mu.Unlock()

		if !current {
			queryStaleDropped.Inc()
			s.logger.Debug().Str("query", key).Msg("Dropped stale list response")
			return
		}

		if err != nil {
			s.logger.Warn().Err(err).Str("query", key).Msg("List fetch failed")
			if s.onError != nil {
				s.onError(snapshot, err)
			}
			return
		}

		s.apply(snapshot, list)
	}()
}
