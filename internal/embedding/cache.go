package embedding

import (
	"context"
	"time"

	"studyrag/internal/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// CachedEmbedder memoizes query embeddings. Degraded results are not cached
// when the gateway runs in real mode, so recovery is picked up immediately.
type CachedEmbedder struct {
	next  *Gateway
	cache *expirable.LRU[string, []byte]
}

func NewCachedEmbedder(next *Gateway, size int, ttl time.Duration) Embedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &CachedEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]byte, error) {
	key := util.TextKey(text)
	if cached, ok := c.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit")
		return cloneBytes(cached), nil
	}
	b, mode, err := c.next.EmbedWithMode(ctx, text)
	if err != nil {
		return nil, err
	}
	if mode == c.next.Mode() {
		c.cache.Add(key, cloneBytes(b))
	} else {
		logutil.GetLogger(ctx).Debug("skip caching degraded embedding", zap.String("mode", string(mode)))
	}
	return b, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
