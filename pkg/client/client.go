// Package client provides the catalog REST client with retry, error
// classification, and offline awareness.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homelib/homelib-client/pkg/books"
	"github.com/homelib/homelib-client/pkg/query"
	"github.com/homelib/homelib-client/pkg/router"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Prometheus metrics for catalog client operations.
var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_client_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelf_client_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	clientErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_client_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// Transport executes one HTTP request, normally the request router.
type Transport interface {
	Handle(req *http.Request) (*http.Response, error)
}

// directTransport sends requests straight through an http.Client,
// bypassing the caching router.
type directTransport struct {
	httpClient *http.Client
}

func (d *directTransport) Handle(req *http.Request) (*http.Response, error) {
	return d.httpClient.Do(req)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog backend, e.g. "http://localhost:8000".
	// Required unless Transport handles absolute routing itself.
	BaseURL string

	// Transport routes requests. Defaults to a plain HTTP client.
	Transport Transport

	// Retry configures the backoff policy.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Retry:   DefaultRetryConfig(),
	}
}

// Client is the catalog REST client. It satisfies query.Fetcher (via
// FetchList) and the scan package's Resolver (via LookupISBN).
type Client struct {
	baseURL   string
	transport Transport
	retry     RetryConfig
	logger    zerolog.Logger
}

// New creates a catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = &directTransport{httpClient: &http.Client{Timeout: 30 * time.Second}}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		transport: cfg.Transport,
		retry:     cfg.Retry,
		logger:    log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// do executes a request with retry and classification, returning the
// response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, queryValues url.Values, payload any) ([]byte, error) {
	endpoint := path

	startTime := time.Now()
	defer func() {
		clientRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	u := c.baseURL + path
	if len(queryValues) > 0 {
		u += "?" + queryValues.Encode()
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var result []byte
	attempt := func() error {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.transport.Handle(req)
		if err != nil {
			clientErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			clientRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{Class: ErrorClassNetwork, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			clientErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{Class: ErrorClassNetwork, Err: err}
		}

		clientRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		// The router's synthesized offline payload: a structured
		// unavailability signal, not a server failure.
		if router.IsOffline(resp) {
			clientErrorsTotal.WithLabelValues(string(ErrorClassOffline)).Inc()
			return &APIError{StatusCode: resp.StatusCode, Class: ErrorClassOffline, Err: ErrOffline}
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Class:      classifyStatus(resp.StatusCode),
				Detail:     extractDetail(data),
			}
			if resp.StatusCode == http.StatusNotFound {
				apiErr.Err = ErrNotFound
			}
			clientErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(apiErr.Class)).
				Msg("Catalog request error")
			return apiErr
		}

		result = data
		return nil
	}

	err := retryWithBackoff(ctx, c.retry, attempt, func(err error) ErrorClass {
		if apiErr, ok := err.(*APIError); ok {
			return apiErr.Class
		}
		return ErrorClassNetwork
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// extractDetail pulls the backend's error detail out of a response
// body, matching FastAPI's {"detail": "..."} convention.
func extractDetail(data []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// FetchList implements query.Fetcher.
func (c *Client) FetchList(ctx context.Context, state query.State) (*books.BookList, error) {
	return c.ListBooks(ctx, state)
}

// ListBooks fetches one page of the catalog for the given query state.
func (c *Client) ListBooks(ctx context.Context, state query.State) (*books.BookList, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/books", state.Values(), nil)
	if err != nil {
		return nil, err
	}

	var list books.BookList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode book list: %w", err)
	}
	return &list, nil
}

// GetBook fetches a single book by ID.
func (c *Client) GetBook(ctx context.Context, id int64) (*books.Book, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/books/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// CreateBook creates a new book record.
func (c *Client) CreateBook(ctx context.Context, book books.NewBook) (*books.Book, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/books", nil, book)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// UpdateBook applies a partial update.
func (c *Client) UpdateBook(ctx context.Context, id int64, patch books.BookPatch) (*books.Book, error) {
	data, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/books/%d", id), nil, patch)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// DeleteBook removes a book.
func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/books/%d", id), nil, nil)
	return err
}

// StartReading marks a book as currently being read.
func (c *Client) StartReading(ctx context.Context, id int64) (*books.Book, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/books/%d/start-reading", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// FinishReading marks a book finished, optionally recording a rating
// (0 leaves the rating unset).
func (c *Client) FinishReading(ctx context.Context, id int64, rating int) (*books.Book, error) {
	v := url.Values{}
	if rating > 0 {
		v.Set("rating", strconv.Itoa(rating))
	}
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/books/%d/finish-reading", id), v, nil)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// UpdateProgress records the current page. The backend flips status to
// reading or finished as thresholds are crossed.
func (c *Client) UpdateProgress(ctx context.Context, id int64, currentPage int) (*books.Book, error) {
	v := url.Values{}
	v.Set("current_page", strconv.Itoa(currentPage))
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/books/%d/update-progress", id), v, nil)
	if err != nil {
		return nil, err
	}
	return decodeBook(data)
}

// LookupISBN fetches book metadata for a scanned or typed identifier.
// Returns ErrNotFound (wrapped) when no provider knows the code.
func (c *Client) LookupISBN(ctx context.Context, code string) (*books.Metadata, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/books/isbn/"+url.PathEscape(code), nil, nil)
	if err != nil {
		return nil, err
	}

	var meta books.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode isbn metadata: %w", err)
	}
	return &meta, nil
}

// SearchCovers returns candidate cover image URLs for a title/author
// pair, in relevance order.
func (c *Client) SearchCovers(ctx context.Context, title, author string) ([]string, error) {
	v := url.Values{}
	v.Set("title", title)
	if author != "" {
		v.Set("author", author)
	}
	data, err := c.do(ctx, http.MethodGet, "/api/books/search/covers", v, nil)
	if err != nil {
		return nil, err
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("decode cover urls: %w", err)
	}
	return urls, nil
}

// Recommendations fetches AI reading suggestions for a book.
func (c *Client) Recommendations(ctx context.Context, id int64) (*books.Recommendations, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/ai/recommendations/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}

	var recs books.Recommendations
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return &recs, nil
}

func decodeBook(data []byte) (*books.Book, error) {
	var book books.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("decode book: %w", err)
	}
	return &book, nil
}
