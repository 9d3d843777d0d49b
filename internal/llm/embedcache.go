package llm

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/pkg/logger"
	"github.com/research-agent/backend/pkg/utils"
)

// sharedCallTimeout bounds an upstream call once it no longer follows the
// context of the caller that started it.
const sharedCallTimeout = 30 * time.Second

// EmbeddingCache is a remote, shared cache such as redis.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

// CachedEmbedder embeds each distinct text once: local LRU first, then the
// optional remote cache, then the wrapped service. Concurrent requests for
// the same text share one upstream call, which outlives any single caller
// giving up; each caller still returns as soon as its own context is done.
type CachedEmbedder struct {
	next      Embedder
	namespace string
	local     *lru.Cache[string, []float32]
	remote    EmbeddingCache
	ttl       time.Duration
	group     singleflight.Group
}

func NewCachedEmbedder(next Embedder, namespace string, size int, remote EmbeddingCache, ttl time.Duration) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{
		next:      next,
		namespace: namespace,
		local:     local,
		remote:    remote,
		ttl:       ttl,
	}, nil
}

func (c *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := utils.CacheKey("embedding", c.namespace, text)

	if v, ok := c.local.Get(key); ok {
		metrics.EmbeddingCacheHits.WithLabelValues("local").Inc()
		return v, nil
	}
	metrics.EmbeddingCacheMisses.WithLabelValues("local").Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return c.fetch(callCtx, key, text)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

func (c *CachedEmbedder) fetch(ctx context.Context, key, text string) ([]float32, error) {
	if c.remote != nil {
		cached, found, err := c.remote.GetEmbedding(ctx, key)
		if err != nil {
			logger.Warn("Remote embedding cache read failed", zap.Error(err))
		} else if found {
			metrics.EmbeddingCacheHits.WithLabelValues("remote").Inc()
			c.local.Add(key, cached)
			return cached, nil
		}
		metrics.EmbeddingCacheMisses.WithLabelValues("remote").Inc()
	}

	embedding, err := c.next.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	c.local.Add(key, embedding)
	if c.remote != nil {
		if err := c.remote.SetEmbedding(ctx, key, embedding, c.ttl); err != nil {
			logger.Warn("Remote embedding cache write failed", zap.Error(err))
		}
	}
	return embedding, nil
}

func (c *CachedEmbedder) Len() int {
	return c.local.Len()
}
