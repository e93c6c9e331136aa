// Package router classifies outgoing requests and applies one of two
// fetch strategies: network-only with a structured offline fallback for
// API calls, cache-first with refresh for static assets.
//
// The dual policy is deliberate. API data must never be served stale
// (correctness over availability), while shell assets must stay
// available offline (availability over freshness).
package router

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homelib/homelib-client/pkg/cache"
)

var (
	routerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_router_requests_total",
		Help: "Total routed requests by class and outcome",
	}, []string{"class", "outcome"})

	routerOfflineTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_router_offline_responses_total",
		Help: "Total synthesized offline responses for API requests",
	})
)

// OfflineHeader marks a synthesized offline response so callers can
// distinguish it from a genuine upstream 503.
const OfflineHeader = "X-Shelf-Offline"

// offlineBody is the structured payload returned when an API request
// cannot reach the network.
const offlineBody = `{"error":"offline","detail":"network unavailable"}`

// Config holds router configuration.
type Config struct {
	// Upstream is the base URL requests are forwarded to.
	Upstream string

	// APIPrefix separates network-only API calls from cacheable
	// assets. Defaults to "/api/".
	APIPrefix string

	// Store is the generational asset cache.
	Store *cache.Store

	// HTTPClient is the transport used for network fetches.
	HTTPClient *http.Client
}

// Router applies the fetch policy for every outgoing request.
type Router struct {
	upstream   string
	apiPrefix  string
	store      *cache.Store
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a router. Upstream and Store are required.
func New(cfg Config) (*Router, error) {
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("upstream is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Router{
		upstream:   strings.TrimRight(cfg.Upstream, "/"),
		apiPrefix:  cfg.APIPrefix,
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		logger:     log.With().Str("component", "request-router").Logger(),
	}, nil
}

// IsAPIRequest reports whether a path falls under the API namespace.
func (r *Router) IsAPIRequest(path string) bool {
	return strings.HasPrefix(path, r.apiPrefix)
}

// Handle routes one request through the appropriate fetch strategy.
func (r *Router) Handle(req *http.Request) (*http.Response, error) {
	if r.IsAPIRequest(req.URL.Path) {
		return r.handleAPI(req)
	}
	return r.handleAsset(req)
}

// handleAPI is network-only. Cache is never consulted, even if an
// identical URL was previously stored as an asset. Transport failures
// become a structured offline payload instead of a raw error so the
// caller can render a consistent offline state.
func (r *Router) handleAPI(req *http.Request) (*http.Response, error) {
	reqID := uuid.NewString()

	resp, err := r.forward(req)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("request_id", reqID).
			Str("path", req.URL.Path).
			Msg("API request failed, synthesizing offline response")
		routerRequestsTotal.WithLabelValues("api", "offline").Inc()
		routerOfflineTotal.Inc()
		return offlineResponse(req), nil
	}

	r.logger.Debug().
		Str("request_id", reqID).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Msg("API request forwarded")
	routerRequestsTotal.WithLabelValues("api", "network").Inc()
	return resp, nil
}

// handleAsset is cache-first with refresh. A hit is returned
// immediately; a miss goes to the network and successful responses are
// stored under the current generation before being returned. A failed
// fetch for an uncached asset propagates to the caller.
func (r *Router) handleAsset(req *http.Request) (*http.Response, error) {
	assetKey := req.URL.RequestURI()

	entry, err := r.store.Get(req.Context(), assetKey)
	if err == nil {
		routerRequestsTotal.WithLabelValues("asset", "cache_hit").Inc()
		return cache.EntryToResponse(entry), nil
	}
	if err != cache.ErrCacheMiss {
		// Cache trouble is not fatal; fall through to the network.
		r.logger.Warn().Err(err).Str("asset", assetKey).Msg("Asset cache read failed")
	}

	resp, err := r.forward(req)
	if err != nil {
		routerRequestsTotal.WithLabelValues("asset", "error").Inc()
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if entry, entryErr := cache.ResponseToEntry(resp); entryErr == nil {
			if putErr := r.store.Put(req.Context(), assetKey, entry); putErr != nil {
				// A superseded generation must not block serving.
				r.logger.Warn().Err(putErr).Str("asset", assetKey).Msg("Asset cache write skipped")
			}
		}
	}

	routerRequestsTotal.WithLabelValues("asset", "network").Inc()
	return resp, nil
}

// forward replays the request against the upstream.
func (r *Router) forward(req *http.Request) (*http.Response, error) {
	out, err := http.NewRequestWithContext(req.Context(), req.Method, r.upstream+req.URL.RequestURI(), req.Body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			out.Header.Add(key, v)
		}
	}
	return r.httpClient.Do(out)
}

// offlineResponse synthesizes the structured offline payload.
func offlineResponse(req *http.Request) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(OfflineHeader, "1")

	return &http.Response{
		StatusCode:    http.StatusServiceUnavailable,
		Status:        http.StatusText(http.StatusServiceUnavailable),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader([]byte(offlineBody))),
		ContentLength: int64(len(offlineBody)),
		Request:       req,
	}
}

// IsOffline reports whether a response is a synthesized offline payload.
func IsOffline(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(OfflineHeader) == "1"
}

// ServeHTTP exposes the router as an http.Handler for the proxy binary.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp, err := r.Handle(req)
	if err != nil {
		http.Error(w, "upstream fetch failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write response body")
	}
}
