// Package books defines the domain types exchanged with the library
// catalog REST backend.
package books

import "time"

// Status is the reading status of a book.
type Status string

const (
	StatusPlanned  Status = "planned"
	StatusReading  Status = "reading"
	StatusFinished Status = "finished"
	StatusOnHold   Status = "on_hold"
	StatusDropped  Status = "dropped"
	StatusWishlist Status = "wishlist"
)

// Format is the physical format of a book.
type Format string

const (
	FormatPaper     Format = "paper"
	FormatEbook     Format = "ebook"
	FormatAudiobook Format = "audiobook"
)

// Author is a named author record.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Genre is a named genre record.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is a single catalog record as returned by the backend.
type Book struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Description   string   `json:"description,omitempty"`
	Authors       []Author `json:"authors"`
	Genres        []Genre  `json:"genres"`
	Status        Status   `json:"status"`
	Format        Format   `json:"format"`
	Language      string   `json:"language"`
	TotalPages    int      `json:"total_pages,omitempty"`
	CurrentPage   int      `json:"current_page"`
	StartedAt     string   `json:"started_at,omitempty"`
	FinishedAt    string   `json:"finished_at,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	Rating        int      `json:"rating,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Quotes        []string `json:"quotes,omitempty"`
	Location      string   `json:"location,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	ExternalID    string   `json:"external_id,omitempty"`
	Progress      float64  `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressPercent computes reading progress from page counts, clamped
// to [0, 100]. The server sends its own value; this is the client-side
// equivalent for optimistic updates.
func (b *Book) ProgressPercent() float64 {
	if b.TotalPages <= 0 {
		return 0
	}
	p := float64(b.CurrentPage) / float64(b.TotalPages) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// BookList is one page of catalog results.
type BookList struct {
	Items   []Book `json:"items"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// NewBook is the payload for creating a book. Author and genre names
// are plain strings; the backend creates missing records on the fly.
type NewBook struct {
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle,omitempty"`
	Description    string   `json:"description,omitempty"`
	Authors        []string `json:"authors"`
	Genres         []string `json:"genres"`
	Status         Status   `json:"status,omitempty"`
	Format         Format   `json:"format,omitempty"`
	Language       string   `json:"language,omitempty"`
	TotalPages     int      `json:"total_pages,omitempty"`
	CurrentPage    int      `json:"current_page,omitempty"`
	PublishedYear  int      `json:"published_year,omitempty"`
	Rating         int      `json:"rating,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Location       string   `json:"location,omitempty"`
	CoverURL       string   `json:"cover_url,omitempty"`
	ISBN           string   `json:"isbn,omitempty"`
	AutoFetchCover bool     `json:"auto_fetch_cover"`
}

// BookPatch is a partial update. Nil fields are left untouched by the
// backend, so every field is a pointer.
type BookPatch struct {
	Title         *string   `json:"title,omitempty"`
	Subtitle      *string   `json:"subtitle,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Authors       *[]string `json:"authors,omitempty"`
	Genres        *[]string `json:"genres,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Format        *Format   `json:"format,omitempty"`
	Language      *string   `json:"language,omitempty"`
	TotalPages    *int      `json:"total_pages,omitempty"`
	CurrentPage   *int      `json:"current_page,omitempty"`
	PublishedYear *int      `json:"published_year,omitempty"`
	Rating        *int      `json:"rating,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Quotes        *[]string `json:"quotes,omitempty"`
	Location      *string   `json:"location,omitempty"`
	CoverURL      *string   `json:"cover_url,omitempty"`
	ISBN          *string   `json:"isbn,omitempty"`
}

// Metadata is the result of an ISBN lookup against the external
// book-data providers, used to pre-fill the creation form.
type Metadata struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	TotalPages    int      `json:"total_pages,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ISBN          string   `json:"isbn"`
	ExternalID    string   `json:"external_id,omitempty"`
}

// CoverCandidate is one entry from the cover search endpoint.
type CoverCandidate struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// Recommendation is a single AI-generated suggestion.
type Recommendation struct {
	Title  string   `json:"title"`
	Author string   `json:"author"`
	Reason string   `json:"reason"`
	Genres []string `json:"genres"`
}

// Recommendations is the AI recommendation response.
type Recommendations struct {
	Summary string           `json:"summary,omitempty"`
	Items   []Recommendation `json:"recommendations"`
	Error   string           `json:"error,omitempty"`
}
