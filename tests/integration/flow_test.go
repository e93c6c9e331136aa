package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/homelib/homelib-client/internal/testutil"
	"github.com/homelib/homelib-client/pkg/cache"
	"github.com/homelib/homelib-client/pkg/client"
	"github.com/homelib/homelib-client/pkg/query"
	"github.com/homelib/homelib-client/pkg/router"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// activeStore installs and activates an empty generation so writes are
// accepted.
func activeStore(t *testing.T, redisClient *redis.Client, gen string) *cache.Store {
	t.Helper()

	store := cache.NewStore(redisClient, cache.Generation(gen))
	fetch := func(ctx context.Context, assetPath string) (*cache.Entry, error) {
		return nil, errors.New("unexpected fetch")
	}
	if err := store.Install(context.Background(), nil, fetch); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := store.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	return store
}

// TestFullRequestFlow exercises the whole stack: router policy, asset
// caching, API forwarding, and the typed client on top.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.SetAsset("/app.js", "application/javascript", "console.log('shelf')")
	mock.SetResponse("/api/books", testutil.NewBookListResponse(
		`[{"id":1,"title":"Dune","status":"reading"}]`, 1))

	store := activeStore(t, redisClient, "integration-v1")

	r, err := router.New(router.Config{
		Upstream: mock.URL(),
		Store:    store,
	})
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}

	catalog, err := client.New(client.Config{
		BaseURL:   mock.URL(),
		Transport: r,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	// API call goes through the router to the backend.
	list, err := catalog.ListBooks(ctx, query.DefaultState())
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if list.Total != 1 || list.Items[0].Title != "Dune" {
		t.Errorf("ListBooks = %+v", list)
	}

	// First asset fetch hits the network and caches the body.
	assetReq, _ := http.NewRequestWithContext(ctx, "GET", mock.URL()+"/app.js", nil)
	resp, err := r.Handle(assetReq)
	if err != nil {
		t.Fatalf("Asset request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "console.log('shelf')" {
		t.Errorf("asset body = %q", body)
	}

	// Second fetch is served from Redis; the upstream sees no new hit.
	before := mock.PathCount("/app.js")
	resp, err = r.Handle(assetReq)
	if err != nil {
		t.Fatalf("Cached asset request failed: %v", err)
	}
	resp.Body.Close()
	if got := mock.PathCount("/app.js"); got != before {
		t.Errorf("upstream asset hits = %d, want %d (cache should serve)", got, before)
	}
}

// TestOfflineFlow verifies both halves of the fetch policy when the
// backend is unreachable: assets keep serving, API calls degrade to the
// structured offline error.
func TestOfflineFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	mock.SetAsset("/index.html", "text/html", "<html></html>")

	store := activeStore(t, redisClient, "offline-v1")

	r, err := router.New(router.Config{
		Upstream:   mock.URL(),
		Store:      store,
		HTTPClient: &http.Client{Timeout: time.Second},
	})
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}

	ctx := context.Background()

	// Warm the cache while online.
	assetReq, _ := http.NewRequestWithContext(ctx, "GET", mock.URL()+"/index.html", nil)
	resp, err := r.Handle(assetReq)
	if err != nil {
		t.Fatalf("Asset warmup failed: %v", err)
	}
	resp.Body.Close()

	// Take the backend down.
	mock.Close()

	// Asset still serves from cache.
	resp, err = r.Handle(assetReq)
	if err != nil {
		t.Fatalf("Cached asset failed while offline: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "<html></html>" {
		t.Errorf("offline asset body = %q", body)
	}

	// API degrades to the offline payload, surfaced as ErrOffline.
	catalog, err := client.New(client.Config{BaseURL: mock.URL(), Transport: r})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	_, err = catalog.ListBooks(ctx, query.DefaultState())
	if !errors.Is(err, client.ErrOffline) {
		t.Fatalf("ListBooks error = %v, want ErrOffline", err)
	}
}

// TestGenerationRollover verifies that activating a new generation
// atomically replaces the old one.
func TestGenerationRollover(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	v1 := cache.NewStore(redisClient, cache.Generation("rollover-v1"))
	fetchV1 := func(ctx context.Context, assetPath string) (*cache.Entry, error) {
		return &cache.Entry{Data: []byte("v1 " + assetPath), StatusCode: 200, CachedAt: time.Now()}, nil
	}
	if err := v1.Install(ctx, []string{"/app.js"}, fetchV1); err != nil {
		t.Fatalf("v1 install failed: %v", err)
	}
	if err := v1.Activate(ctx); err != nil {
		t.Fatalf("v1 activate failed: %v", err)
	}

	v2 := cache.NewStore(redisClient, cache.Generation("rollover-v2"))
	fetchV2 := func(ctx context.Context, assetPath string) (*cache.Entry, error) {
		return &cache.Entry{Data: []byte("v2 " + assetPath), StatusCode: 200, CachedAt: time.Now()}, nil
	}
	if err := v2.Install(ctx, []string{"/app.js"}, fetchV2); err != nil {
		t.Fatalf("v2 install failed: %v", err)
	}

	// v1 is still current until activation.
	entry, err := v1.Get(ctx, "/app.js")
	if err != nil {
		t.Fatalf("v1 Get failed: %v", err)
	}
	if string(entry.Data) != "v1 /app.js" {
		t.Errorf("pre-rollover data = %q", entry.Data)
	}

	if err := v2.Activate(ctx); err != nil {
		t.Fatalf("v2 activate failed: %v", err)
	}

	// New generation serves; the old one is evicted and refuses writes.
	entry, err = v2.Get(ctx, "/app.js")
	if err != nil {
		t.Fatalf("v2 Get failed: %v", err)
	}
	if string(entry.Data) != "v2 /app.js" {
		t.Errorf("post-rollover data = %q", entry.Data)
	}

	err = v1.Put(ctx, "/late.js", &cache.Entry{Data: []byte("late"), StatusCode: 200, CachedAt: time.Now()})
	if !errors.Is(err, cache.ErrStaleGeneration) {
		t.Errorf("stale Put error = %v, want ErrStaleGeneration", err)
	}
}
