package embeddings

import (
	"container/list"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the vector cache consulted before the embedding provider.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, v []float32, ttl time.Duration)
}

// MakeKey derives the cache key for a model+text pair. The model is part of
// the key: the same text embeds differently under different models.
func MakeKey(model, text string) string {
	sum := md5.Sum([]byte(model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

// LocalLRU is an in-process LRU with per-entry expiry. Entries are promoted
// on read; the coldest entry is dropped when the capacity is exceeded.
type LocalLRU struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
}

type lruEntry struct {
	key       string
	vec       []float32
	expiresAt time.Time
}

func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LocalLRU{
		maxSize: capacity,
		order:   list.New(),
		index:   make(map[string]*list.Element, capacity),
	}
}

func (l *LocalLRU) Get(_ context.Context, key string) ([]float32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.index[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(lruEntry)
	if !ent.expiresAt.After(time.Now()) {
		l.remove(el, key)
		return nil, false
	}
	l.order.MoveToFront(el)
	return ent.vec, true
}

func (l *LocalLRU) Set(_ context.Context, key string, v []float32, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent := lruEntry{key: key, vec: v, expiresAt: time.Now().Add(ttl)}
	if el, ok := l.index[key]; ok {
		el.Value = ent
		l.order.MoveToFront(el)
		return
	}
	l.index[key] = l.order.PushFront(ent)
	if l.order.Len() > l.maxSize {
		if coldest := l.order.Back(); coldest != nil {
			l.remove(coldest, coldest.Value.(lruEntry).key)
		}
	}
}

// remove must be called with the mutex held.
func (l *LocalLRU) remove(el *list.Element, key string) {
	l.order.Remove(el)
	delete(l.index, key)
}

// RedisCache shares vectors across processes. Values are stored as packed
// little-endian float32 bytes; a malformed value reads as a miss.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, true
}

func (r *RedisCache) Set(ctx context.Context, key string, v []float32, ttl time.Duration) {
	raw := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	// cache writes are best effort
	_ = r.client.Set(ctx, key, raw, ttl).Err()
}
