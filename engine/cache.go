package engine

import (
	"fmt"
	"sync"
	"time"
)

// CacheItem is one parsed template held in memory.
type CacheItem struct {
	Template   *Template
	CreatedAt  time.Time
	LastUsedAt time.Time
	Size       int // source size in bytes, used as the cache weight
}

// CacheManager holds parsed templates with a byte budget and a TTL. A
// background routine sweeps expired entries until Stop is called.
type CacheManager struct {
	items           map[string]*CacheItem
	mutex           sync.RWMutex
	maxSize         int
	currentSize     int
	ttl             time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan bool
}

func NewCacheManager(maxSizeMB, ttlMinutes, cleanupMinutes int) *CacheManager {
	cm := &CacheManager{
		items:           make(map[string]*CacheItem),
		maxSize:         maxSizeMB * 1024 * 1024,
		ttl:             time.Duration(ttlMinutes) * time.Minute,
		cleanupInterval: time.Duration(cleanupMinutes) * time.Minute,
		stopCleanup:     make(chan bool),
	}

	go cm.startCleanupRoutine()

	return cm
}

func (cm *CacheManager) Get(key string) (*Template, bool) {
	// write lock: Get touches LastUsedAt, and render passes share the cache
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if item, exists := cm.items[key]; exists {
		item.LastUsedAt = time.Now()
		return item.Template, true
	}

	return nil, false
}

func (cm *CacheManager) Set(key string, tmpl *Template, size int) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.currentSize+size > cm.maxSize {
		cm.evictOldItems()
	}

	// still full after eviction means the item simply does not fit
	if cm.currentSize+size > cm.maxSize {
		return fmt.Errorf("cache is full, cannot add item")
	}

	if old, exists := cm.items[key]; exists {
		cm.currentSize -= old.Size
	}
	cm.items[key] = &CacheItem{
		Template:   tmpl,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		Size:       size,
	}
	cm.currentSize += size
	return nil
}

func (cm *CacheManager) Remove(key string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if item, exists := cm.items[key]; exists {
		cm.currentSize -= item.Size
		delete(cm.items, key)
	}
}

func (cm *CacheManager) Clear() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.items = make(map[string]*CacheItem)
	cm.currentSize = 0
}

// evictOldItems drops expired entries and entries idle for two TTL periods.
// Called with the write lock held.
func (cm *CacheManager) evictOldItems() {
	var keysToRemove []string

	for key, item := range cm.items {
		if time.Since(item.CreatedAt) > cm.ttl {
			keysToRemove = append(keysToRemove, key)
			continue
		}
		if time.Since(item.LastUsedAt) > cm.ttl*2 {
			keysToRemove = append(keysToRemove, key)
		}
	}

	for _, key := range keysToRemove {
		cm.currentSize -= cm.items[key].Size
		delete(cm.items, key)
	}
}

func (cm *CacheManager) startCleanupRoutine() {
	ticker := time.NewTicker(cm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.cleanupExpiredItems()
		case <-cm.stopCleanup:
			return
		}
	}
}

func (cm *CacheManager) cleanupExpiredItems() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	now := time.Now()
	for key, item := range cm.items {
		if now.Sub(item.CreatedAt) > cm.ttl {
			cm.currentSize -= item.Size
			delete(cm.items, key)
		}
	}
}

// Stop ends the cleanup routine.
func (cm *CacheManager) Stop() {
	close(cm.stopCleanup)
}

// Stats reports cache occupancy for the diagnostics endpoints.
func (cm *CacheManager) Stats() map[string]interface{} {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	usage := 0.0
	if cm.maxSize > 0 {
		usage = float64(cm.currentSize) / float64(cm.maxSize) * 100
	}
	return map[string]interface{}{
		"total_items":     len(cm.items),
		"current_size_mb": cm.currentSize / (1024 * 1024),
		"max_size_mb":     cm.maxSize / (1024 * 1024),
		"memory_usage":    fmt.Sprintf("%.1f%%", usage),
	}
}

func (cm *CacheManager) GetKeys() []string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	keys := make([]string, 0, len(cm.items))
	for key := range cm.items {
		keys = append(keys, key)
	}
	return keys
}
