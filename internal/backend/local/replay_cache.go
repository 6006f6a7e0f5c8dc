package local

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webitel/im-thread-gateway/internal/domain/instance"
)

// ReplayCache is a cache-aside wrapper avoiding a repeated read through the
// agent runtime's thread store when the same tab reconnects in quick
// succession. An LRU cache-aside pattern keyed by ThreadId.
type ReplayCache struct {
	cache *lru.Cache[string, []*instance.StoredMessage]
}

func NewReplayCache(size int) *ReplayCache {
	c, _ := lru.New[string, []*instance.StoredMessage](size)
	return &ReplayCache{cache: c}
}

func (r *ReplayCache) Get(threadID string) ([]*instance.StoredMessage, bool) {
	if r == nil || r.cache == nil {
		return nil, false
	}
	return r.cache.Get(threadID)
}

func (r *ReplayCache) Put(threadID string, msgs []*instance.StoredMessage) {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Add(threadID, msgs)
}

func (r *ReplayCache) Invalidate(threadID string) {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Remove(threadID)
}
