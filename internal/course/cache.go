package course

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allegro/bigcache/v3"
)

const (
	catalogListKey   = "catalog:list"
	catalogCourseKey = "catalog:course:"
)

// CatalogCache はコースカタログの読み取りキャッシュ。
// エントリはJSONで保持し、TTL経過後に破棄される。
type CatalogCache struct {
	cache *bigcache.BigCache
}

// NewCatalogCache はttlを寿命とするCatalogCacheを生成する。
// バックグラウンドのクリーンアップはCloseで停止する。
func NewCatalogCache(ttl time.Duration) (*CatalogCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 4096
	cfg.HardMaxCacheSize = 16 // MB
	cfg.Verbose = false

	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &CatalogCache{cache: cache}, nil
}

// get はkeyのエントリをvへデコードする。見つからない場合はfalseを返す。
func (c *CatalogCache) get(key string, v any) bool {
	data, err := c.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			slog.Warn("catalog cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("catalog cache entry is corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c *CatalogCache) set(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(key, data); err != nil {
		slog.Warn("catalog cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Invalidate はすべてのエントリを破棄する。
func (c *CatalogCache) Invalidate() {
	if err := c.cache.Reset(); err != nil {
		slog.Warn("catalog cache reset failed", slog.String("error", err.Error()))
	}
}

// Close はキャッシュを解放する。
func (c *CatalogCache) Close() error {
	return c.cache.Close()
}
