package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResponseToEntry converts an HTTP response to an Entry. The response
// body is consumed and restored so the caller can still read it.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header.Clone(),
		StatusCode:  resp.StatusCode,
		CachedAt:    time.Now(),
	}, nil
}

// EntryToResponse converts a cached entry back to an HTTP response.
func EntryToResponse(entry *Entry) *http.Response {
	headers := entry.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	if entry.ContentType != "" && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", entry.ContentType)
	}

	return &http.Response{
		StatusCode:    entry.StatusCode,
		Status:        http.StatusText(entry.StatusCode),
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
	}
}
