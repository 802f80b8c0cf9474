package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache implementa Cache sobre patrickmn/go-cache.
// Útil para desarrollo, testing y despliegues de un solo nodo.
type memoryCache struct {
	prefix string
	c      *gocache.Cache

	// mu serializa Take: go-cache no tiene get+delete atómico.
	mu sync.Mutex
}

// NewMemory crea un cache en memoria con limpieza periódica.
func NewMemory(prefix string, defaultTTL time.Duration) Cache {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	return &memoryCache{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (m *memoryCache) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return m.prefix + ":" + k
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	return b, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryCache) Take(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(key)
	v, ok := m.c.Get(k)
	if !ok {
		return nil, ErrNotFound
	}
	m.c.Delete(k)
	b, _ := v.([]byte)
	return b, nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryCache) Close() error { return nil }
