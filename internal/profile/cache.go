package profile

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ManifestCache memoizes built manifests keyed by checkpoint file digest,
// avoiding re-parsing identical GGUF headers across repeated profiling runs
// within one process.
type ManifestCache struct {
	cache *lru.Cache[string, *ModelManifest]
}

// NewManifestCache builds a cache holding up to size entries.
func NewManifestCache(size int) (*ManifestCache, error) {
	c, err := lru.New[string, *ModelManifest](size)
	if err != nil {
		return nil, err
	}
	return &ManifestCache{cache: c}, nil
}

// Get returns the cached manifest for digest, if present.
func (mc *ManifestCache) Get(digest string) (*ModelManifest, bool) {
	return mc.cache.Get(digest)
}

// Put stores m under digest, evicting the least-recently-used entry if the
// cache is full.
func (mc *ManifestCache) Put(digest string, m *ModelManifest) {
	mc.cache.Add(digest, m)
}
