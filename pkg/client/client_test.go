package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/homelib/homelib-client/pkg/books"
	"github.com/homelib/homelib-client/pkg/query"
	"github.com/homelib/homelib-client/pkg/router"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig(server.URL)
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty base url should fail")
	}
}

func TestListBooks(t *testing.T) {
	var gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/books" {
			t.Errorf("path = %q, want /api/books", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{"items":[{"id":1,"title":"Dune"}],"total":1,"page":1,"per_page":20}`)
	}))

	list, err := c.ListBooks(context.Background(), query.DefaultState())
	if err != nil {
		t.Fatalf("ListBooks() error = %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 {
		t.Errorf("ListBooks() = %+v, want 1 item", list)
	}
	if list.Items[0].Title != "Dune" {
		t.Errorf("title = %q, want Dune", list.Items[0].Title)
	}
	if gotQuery != "page=1&per_page=20&sort_by=created_at&sort_order=desc" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestGetBookNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail":"Book not found"}`)
	}))

	_, err := c.GetBook(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBook() error = %v, want ErrNotFound", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetBook() error = %T, want *APIError", err)
	}
	if apiErr.Message() != "Book not found" {
		t.Errorf("Message() = %q, want server detail verbatim", apiErr.Message())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail":"title is required"}`)
	}))

	_, err := c.CreateBook(context.Background(), books.NewBook{})
	if err == nil {
		t.Fatal("CreateBook() should fail on 422")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not be retried)", calls)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassClient {
		t.Errorf("class = %q, want client", apiErr.Class)
	}
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			writeJSON(w, http.StatusInternalServerError, `{"detail":"boom"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":7,"title":"Solaris"}`)
	}))

	book, err := c.GetBook(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if book.Title != "Solaris" {
		t.Errorf("title = %q, want Solaris", book.Title)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusBadGateway, `{"detail":"upstream down"}`)
	}))

	_, err := c.GetBook(context.Background(), 7)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestOfflineResponseNotRetried(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set(router.OfflineHeader, "1")
		writeJSON(w, http.StatusServiceUnavailable, `{"error":"offline","detail":"network unavailable"}`)
	}))

	_, err := c.ListBooks(context.Background(), query.DefaultState())
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("error = %v, want ErrOffline", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (offline must not be retried)", calls)
	}
}

func TestUpdateBookSendsPatch(t *testing.T) {
	var gotMethod, gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, `{"id":3,"title":"Renamed","rating":5}`)
	}))

	title := "Renamed"
	book, err := c.UpdateBook(context.Background(), 3, books.BookPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateBook() error = %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/books/3" {
		t.Errorf("request = %s %s, want PATCH /api/books/3", gotMethod, gotPath)
	}
	if book.Rating != 5 {
		t.Errorf("rating = %d, want 5", book.Rating)
	}
}

func TestDeleteBook(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.DeleteBook(context.Background(), 9); err != nil {
		t.Fatalf("DeleteBook() error = %v", err)
	}
}

func TestReadingLifecycleEndpoints(t *testing.T) {
	var gotPaths []string
	var gotQueries []string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		gotQueries = append(gotQueries, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, `{"id":4,"title":"Foundation","status":"reading"}`)
	}))

	ctx := context.Background()
	if _, err := c.StartReading(ctx, 4); err != nil {
		t.Fatalf("StartReading() error = %v", err)
	}
	if _, err := c.UpdateProgress(ctx, 4, 120); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if _, err := c.FinishReading(ctx, 4, 5); err != nil {
		t.Fatalf("FinishReading() error = %v", err)
	}

	wantPaths := []string{
		"/api/books/4/start-reading",
		"/api/books/4/update-progress",
		"/api/books/4/finish-reading",
	}
	for i, want := range wantPaths {
		if gotPaths[i] != want {
			t.Errorf("path[%d] = %q, want %q", i, gotPaths[i], want)
		}
	}
	if gotQueries[1] != "current_page=120" {
		t.Errorf("progress query = %q, want current_page=120", gotQueries[1])
	}
	if gotQueries[2] != "rating=5" {
		t.Errorf("finish query = %q, want rating=5", gotQueries[2])
	}
}

func TestLookupISBN(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/books/isbn/9780131103627" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"title":"The C Programming Language","authors":["Kernighan","Ritchie"],"isbn":"9780131103627"}`)
	}))

	meta, err := c.LookupISBN(context.Background(), "9780131103627")
	if err != nil {
		t.Fatalf("LookupISBN() error = %v", err)
	}
	if meta.Title != "The C Programming Language" {
		t.Errorf("title = %q", meta.Title)
	}
	if len(meta.Authors) != 2 {
		t.Errorf("authors = %v, want 2", meta.Authors)
	}
}

func TestSearchCovers(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") != "Dune" || r.URL.Query().Get("author") != "Herbert" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, `["https://covers.example/1.jpg","https://covers.example/2.jpg"]`)
	}))

	urls, err := c.SearchCovers(context.Background(), "Dune", "Herbert")
	if err != nil {
		t.Fatalf("SearchCovers() error = %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("urls = %v, want 2", urls)
	}
}

func TestRecommendations(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/recommendations/11" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"recommendations":[{"title":"Hyperion","author":"Dan Simmons","reason":"same scope"}]}`)
	}))

	recs, err := c.Recommendations(context.Background(), 11)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if len(recs.Items) != 1 || recs.Items[0].Title != "Hyperion" {
		t.Errorf("recommendations = %+v", recs)
	}
}

func TestNetworkErrorRetriedThenExhausted(t *testing.T) {
	// Server that is immediately closed: every dial fails.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.Retry = RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.GetBook(context.Background(), 1)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"detail":"boom"}`)
	}))
	c.retry = RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetBook(ctx, 1)
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("error = %v, want ErrContextCancelled", err)
	}
}
