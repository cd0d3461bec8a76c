package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uttgeorge/textcut/internal/edl"
)

const (
	suggestionTTL     = 30 * time.Minute
	maxSuggestions    = 256
	suggestionIDChars = 8
)

type suggestion struct {
	projectID string
	clips     []edl.Clip
	expiresAt time.Time
}

// suggestionCache holds agent-proposed timelines awaiting acceptance.
// Entries expire after a TTL; the cache is also hard-capped so an
// abandoned client cannot grow it without bound (oldest evicted first).
type suggestionCache struct {
	mu      sync.Mutex
	entries map[string]suggestion
	now     func() time.Time
}

func newSuggestionCache() *suggestionCache {
	return &suggestionCache{
		entries: make(map[string]suggestion),
		now:     time.Now,
	}
}

func (c *suggestionCache) Put(projectID string, clips []edl.Clip) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked()
	if len(c.entries) >= maxSuggestions {
		var oldestID string
		var oldest time.Time
		for id, s := range c.entries {
			if oldestID == "" || s.expiresAt.Before(oldest) {
				oldestID, oldest = id, s.expiresAt
			}
		}
		delete(c.entries, oldestID)
	}

	id := uuid.NewString()[:suggestionIDChars]
	c.entries[id] = suggestion{
		projectID: projectID,
		clips:     clips,
		expiresAt: c.now().Add(suggestionTTL),
	}
	return id
}

// Take removes and returns the suggestion when it exists, belongs to
// the project, and has not expired.
func (c *suggestionCache) Take(projectID, id string) ([]edl.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked()
	s, ok := c.entries[id]
	if !ok || s.projectID != projectID {
		return nil, false
	}
	delete(c.entries, id)
	return s.clips, true
}

func (c *suggestionCache) evictLocked() {
	now := c.now()
	for id, s := range c.entries {
		if s.expiresAt.Before(now) {
			delete(c.entries, id)
		}
	}
}
