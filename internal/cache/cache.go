package cache

import (
	"AkhilTG/tvsb/internal/types"
	"bytes"
	"encoding/gob"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"go.uber.org/zap"
)

const (
	// Decoded handles are small; 10MB covers tens of thousands of entries.
	cacheSize = 10 * 1024 * 1024

	// Per-entry TTL. file_reference values last roughly an hour, so an
	// hour-long entry at worst costs one refetch mid-stream.
	entryTTLSeconds = 3600

	// The whole map is dropped periodically regardless of per-entry TTLs.
	sweepInterval = 30 * time.Minute
)

// Cache maps (chat, message) keys to decoded file handles. Eviction is
// coarse: entries expire individually after an hour and the entire map is
// cleared every 30 minutes by a background sweeper.
type Cache struct {
	cache  *freecache.Cache
	mu     sync.RWMutex
	log    *zap.Logger
	stopCh chan struct{}
}

func New(log *zap.Logger) *Cache {
	log = log.Named("HandleCache")
	gob.Register(types.FileHandle{})
	c := &Cache{
		cache:  freecache.NewCache(cacheSize),
		log:    log,
		stopCh: make(chan struct{}),
	}
	go c.sweep()
	log.Sugar().Info("Initialized")
	return c
}

func (c *Cache) Get(key types.Key, value *types.FileHandle) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := c.cache.Get([]byte(key.String()))
	if err != nil {
		return err
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(value)
}

func (c *Cache) Set(key types.Key, value *types.FileHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return err
	}
	return c.cache.Set([]byte(key.String()), buf.Bytes(), entryTTLSeconds)
}

func (c *Cache) Delete(key types.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Del([]byte(key.String()))
}

// EntryCount reports how many handles are currently cached.
func (c *Cache) EntryCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.EntryCount()
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	close(c.stopCh)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.cache.Clear()
			c.mu.Unlock()
			c.log.Debug("Cleared file handle cache")
		case <-c.stopCh:
			return
		}
	}
}
