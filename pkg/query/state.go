// Package query keeps the book-list query parameters (search, filters,
// sort, pagination) consistent between what the user manipulates and
// what is requested from the server.
//
// State is a value object; Sync is its single mutation entry point.
// Renderers receive read-only snapshots and never write back.
package query

import (
	"net/url"
	"strconv"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Default pagination and sort values, matching the backend defaults.
const (
	DefaultSortBy  = "created_at"
	DefaultPerPage = 20
)

// State is the canonical set of list-query parameters. Page is always
// >= 1; SortOrder is implied by SortBy unless explicitly overridden.
type State struct {
	Search  string
	Status  string
	Format  string
	Genre   string
	SortBy  string
	Order   SortOrder
	Page    int
	PerPage int
}

// DefaultState returns the initial query: newest first, first page.
func DefaultState() State {
	return State{
		SortBy:  DefaultSortBy,
		Order:   Descending,
		Page:    1,
		PerPage: DefaultPerPage,
	}
}

// DefaultOrderFor returns the natural direction for a sort field:
// alphabetic fields ascending, temporal and quality fields descending.
func DefaultOrderFor(field string) SortOrder {
	switch field {
	case "title", "author":
		return Ascending
	default:
		return Descending
	}
}

// Values converts the state to URL query parameters. Empty filter
// values are omitted entirely, never sent as blank parameters, to keep
// the wire contract canonical and cache-friendly server side.
func (s State) Values() url.Values {
	v := url.Values{}
	if s.Search != "" {
		v.Set("search", s.Search)
	}
	if s.Status != "" {
		v.Set("status", s.Status)
	}
	if s.Format != "" {
		v.Set("format", s.Format)
	}
	if s.Genre != "" {
		v.Set("genre", s.Genre)
	}
	if s.SortBy != "" {
		v.Set("sort_by", s.SortBy)
	}
	if s.Order != "" {
		v.Set("sort_order", string(s.Order))
	}
	if s.Page > 0 {
		v.Set("page", strconv.Itoa(s.Page))
	}
	if s.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(s.PerPage))
	}
	return v
}

// Encode returns the canonical query-string form of the state. Two
// states are interchangeable exactly when their encodings are equal;
// the stale-response check relies on this.
func (s State) Encode() string {
	return s.Values().Encode()
}
