package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Cache é um cache em memória com TTL, seguro para uso concorrente
type Cache[V any] struct {
	mu       sync.RWMutex
	items    map[string]cacheItem[V]
	ttl      time.Duration
	hits     atomic.Int64
	misses   atomic.Int64
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// New cria um cache com o TTL padrão informado e inicia a limpeza periódica
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:    make(map[string]cacheItem[V]),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go c.cleanup(cleanupInterval(ttl))

	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Get retorna o valor se existir e não estiver expirado
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(item.expiration) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	return item.value, true
}

// Set armazena o valor com o TTL padrão
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL armazena o valor com um TTL específico
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem[V]{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
}

// Delete remove uma chave
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear remove todas as chaves
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem[V])
}

// InvalidatePrefix remove todas as chaves com o prefixo informado
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Stats contém as estatísticas do cache
type Stats struct {
	ItemCount int   `json:"item_count"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// Stats retorna as estatísticas atuais
func (c *Cache[V]) Stats() Stats {
	return Stats{
		ItemCount: c.Size(),
		HitCount:  c.hits.Load(),
		MissCount: c.misses.Load(),
	}
}

// cleanup remove periodicamente os itens expirados
func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
}

// Stop encerra a goroutine de limpeza. Pode ser chamado mais de uma vez.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// Size retorna a quantidade de itens armazenados, incluindo expirados ainda não removidos
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
