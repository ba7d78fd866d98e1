package reviews

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Registry maps (session, scope) to live pages. Pages idle past the TTL are
// evicted and closed, which cancels their in-flight annotations and vote
// reconciliations - the server-side equivalent of navigating away.
type Registry struct {
	mu    sync.Mutex
	pages *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	pages := cache.New(ttl, ttl/2)
	pages.OnEvicted(func(_ string, value interface{}) {
		go value.(*Page).Close()
	})
	return &Registry{pages: pages}
}

func registryKey(sessionKey string, scope Scope) string {
	return sessionKey + "|" + scope.Key()
}

// Get returns the live page for the key, building one through build on a
// miss. Each hit renews the TTL.
func (r *Registry) Get(sessionKey string, scope Scope, build func() *Page) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(sessionKey, scope)
	if value, ok := r.pages.Get(key); ok {
		page := value.(*Page)
		r.pages.SetDefault(key, page)
		return page
	}
	page := build()
	r.pages.SetDefault(key, page)
	return page
}

// Drop closes and removes one page, forcing the next request to rebuild it.
func (r *Registry) Drop(sessionKey string, scope Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages.Delete(registryKey(sessionKey, scope))
}

// ForSession returns every live page belonging to a session, so callers can
// invalidate them after a mutation that went around the page (review edits
// and deletes are plain proxy calls).
func (r *Registry) ForSession(sessionKey string) []*Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionKey + "|"
	var out []*Page
	for key, item := range r.pages.Items() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, item.Object.(*Page))
		}
	}
	return out
}

// DropSession removes every page belonging to a session (logout).
func (r *Registry) DropSession(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := sessionKey + "|"
	for key := range r.pages.Items() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			r.pages.Delete(key)
		}
	}
}
