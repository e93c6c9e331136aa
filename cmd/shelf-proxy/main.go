// Command shelf-proxy runs the caching proxy between the library UI and
// the catalog backend. API calls pass straight through with an offline
// fallback; shell assets are served from a generational Redis cache
// that is reinstalled atomically whenever the asset directory changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/homelib/homelib-client/pkg/cache"
	"github.com/homelib/homelib-client/pkg/logging"
	"github.com/homelib/homelib-client/pkg/router"
)

// watchDebounce coalesces bursts of filesystem events (editor saves,
// build outputs) into a single generation rollover.
const watchDebounce = 2 * time.Second

type proxyConfig struct {
	Upstream   string
	ListenAddr string
	RedisAddr  string
	AssetDir   string
	LogLevel   string
	LogPretty  bool
}

func loadConfig() (proxyConfig, error) {
	v := viper.New()
	v.SetDefault("upstream", "http://localhost:8000")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("asset_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetConfigName("shelf-proxy")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/shelf-proxy")
	v.SetEnvPrefix("SHELF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return proxyConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	return proxyConfig{
		Upstream:   v.GetString("upstream"),
		ListenAddr: v.GetString("listen_addr"),
		RedisAddr:  v.GetString("redis_addr"),
		AssetDir:   v.GetString("asset_dir"),
		LogLevel:   v.GetString("log_level"),
		LogPretty:  v.GetBool("log_pretty"),
	}, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", cfg.RedisAddr).Msg("Connected to Redis")

	var current atomic.Pointer[router.Router]

	rollover := func() error {
		r, err := installGeneration(ctx, redisClient, cfg, logger)
		if err != nil {
			return err
		}
		current.Store(r)
		return nil
	}

	if err := rollover(); err != nil {
		logger.Fatal().Err(err).Msg("Initial asset install failed")
	}

	if cfg.AssetDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create asset watcher")
		}
		defer watcher.Close()

		if err := watchAssetDir(watcher, cfg.AssetDir); err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.AssetDir).Msg("Failed to watch asset directory")
		}
		go watchLoop(ctx, watcher, logger, rollover)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", readyzHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		current.Load().ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("upstream", cfg.Upstream).Msg("Starting shelf proxy")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// installGeneration builds a fresh cache generation from the asset
// directory and activates it. With no asset directory configured the
// generation starts empty and fills lazily from upstream fetches.
func installGeneration(ctx context.Context, redisClient *redis.Client, cfg proxyConfig, logger zerolog.Logger) (*router.Router, error) {
	gen := cache.Generation(uuid.NewString())
	store := cache.NewStore(redisClient, gen)

	var manifest []string
	if cfg.AssetDir != "" {
		var err error
		manifest, err = buildManifest(cfg.AssetDir)
		if err != nil {
			return nil, fmt.Errorf("scan asset dir: %w", err)
		}
	}

	if err := store.Install(ctx, manifest, diskFetcher(cfg.AssetDir)); err != nil {
		return nil, err
	}
	if err := store.Activate(ctx); err != nil {
		return nil, fmt.Errorf("activate generation %s: %w", gen, err)
	}

	logger.Info().
		Str("generation", string(gen)).
		Int("assets", len(manifest)).
		Msg("Asset generation activated")

	return router.New(router.Config{
		Upstream: cfg.Upstream,
		Store:    store,
	})
}

// buildManifest walks the asset directory and returns the URL paths of
// every regular file, relative to the directory root.
func buildManifest(dir string) ([]string, error) {
	var manifest []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		manifest = append(manifest, "/"+filepath.ToSlash(rel))
		return nil
	})
	return manifest, err
}

// diskFetcher reads assets from the local directory during install.
func diskFetcher(dir string) cache.FetchFunc {
	return func(ctx context.Context, assetPath string) (*cache.Entry, error) {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(assetPath, "/"))))
		if err != nil {
			return nil, err
		}

		contentType := mime.TypeByExtension(filepath.Ext(assetPath))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		return &cache.Entry{
			Data:        data,
			ContentType: contentType,
			StatusCode:  http.StatusOK,
			CachedAt:    time.Now().UTC(),
		}, nil
	}
}

// watchAssetDir registers the directory and all subdirectories.
func watchAssetDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// watchLoop debounces filesystem events and triggers a generation
// rollover after the directory settles.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, logger zerolog.Logger, rollover func() error) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug().Str("event", event.String()).Msg("Asset change detected")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("Asset watcher error")
		case <-fire:
			if err := rollover(); err != nil {
				logger.Error().Err(err).Msg("Asset reinstall failed, keeping previous generation")
			}
		}
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyzHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
