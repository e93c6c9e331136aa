package cache

import "strings"

// KeyPrefix is the namespace for all asset cache keys in Redis.
const KeyPrefix = "shelf"

// currentKey holds the name of the current generation.
const currentKey = KeyPrefix + ":current"

// Generation is a named version of the cached asset set. Generation
// names must change whenever the asset manifest or shell assets change
// so activation rolls every client over to the new set.
type Generation string

// NormalizeAssetKey canonicalizes an asset path for use as a cache key.
// Query strings are preserved (an asset URL with a cache-busting query
// is a distinct asset); leading slashes are collapsed and the empty
// path maps to the document root.
func NormalizeAssetKey(path string) string {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "/"
	}
	return "/" + key
}

// entryKey builds the Redis key for an asset under a generation.
func entryKey(gen Generation, assetKey string) string {
	return KeyPrefix + ":" + string(gen) + ":" + assetKey
}

// generationPattern matches every entry key of a generation.
func generationPattern(gen Generation) string {
	return KeyPrefix + ":" + string(gen) + ":*"
}
