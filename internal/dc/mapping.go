package dc

import (
	"AkhilTG/tvsb/internal/types"
	"sync"

	"go.uber.org/zap"
)

// FileMap memoises which DC each file lives on, so repeat requests skip the
// home-DC → FILE_MIGRATE dance. Entries are set on the first successful
// block fetch and overwritten whenever a migration is observed.
type FileMap struct {
	log *zap.Logger
	mu  sync.RWMutex
	m   map[types.Key]int
}

func NewFileMap(log *zap.Logger) *FileMap {
	return &FileMap{
		log: log.Named("FileDCMap"),
		m:   make(map[types.Key]int),
	}
}

func (f *FileMap) Get(key types.Key) (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	dcID, ok := f.m[key]
	return dcID, ok
}

func (f *FileMap) Set(key types.Key, dcID int) {
	f.mu.Lock()
	f.m[key] = dcID
	f.mu.Unlock()
	f.log.Debug("Saved file DC mapping", zap.String("key", key.String()), zap.Int("dc", dcID))
}

func (f *FileMap) Clear(key types.Key) {
	f.mu.Lock()
	delete(f.m, key)
	f.mu.Unlock()
}

// Stats reports how many files are mapped and their per-DC distribution.
type MapStats struct {
	TotalFiles     int         `json:"total_files"`
	DCDistribution map[int]int `json:"dc_distribution"`
}

func (f *FileMap) Stats() MapStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	dist := make(map[int]int)
	for _, dcID := range f.m {
		dist[dcID]++
	}
	return MapStats{TotalFiles: len(f.m), DCDistribution: dist}
}
