package cache

import (
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is a cached copy of a static asset response.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// ContentType is the Content-Type header of the original response.
	ContentType string `json:"content_type"`

	// Headers are the response headers at cache time.
	Headers http.Header `json:"headers"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// Size returns the body size in bytes.
func (e *Entry) Size() int {
	return len(e.Data)
}

// Marshal serializes the entry for storage.
func (e *Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEntry deserializes a stored entry.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
