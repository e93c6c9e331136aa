// Package cache implements a generational, Redis-backed store for the
// application's static shell assets.
//
// Assets are cached under a named Generation. Exactly one generation is
// current at any time; a new generation is populated during Install
// without displacing the serving one, promoted by Activate, and every
// non-current generation is evicted at activation. A failed install
// leaves the previous generation fully authoritative, so the offline
// shell never ends up half-updated.
//
// Layout in Redis:
//
//	shelf:current              -> name of the current generation
//	shelf:<generation>:<key>   -> serialized Entry
//
// Usage:
//
//	store := cache.NewStore(rdb, cache.Generation("shell-v3"))
//	if err := store.Install(ctx, manifest, fetch); err != nil {
//		// previous generation keeps serving
//	}
//	if err := store.Activate(ctx); err != nil { ... }
//
// Runtime writes (cache-first refresh misses) go through Put, which
// refuses to write unless the store's generation is still current.
package cache
