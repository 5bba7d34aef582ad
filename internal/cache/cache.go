// Package cache holds computed views (availability, eligibility) keyed by
// string and tagged with the entities they were derived from, so that a
// change to an entity drops every view built from it.
package cache

import (
	"log"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

const (
	DefaultExpiration      = time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

type entry[V any] struct {
	value V
	tags  []string
}

// Token marks the moment a view started being computed. Set discards the
// view if any of its tags was invalidated after that moment.
type Token struct {
	epoch uint64
}

// Projections is a tag-invalidated in-memory cache of V values.
type Projections[V any] struct {
	name  string
	cache *gocache.Cache

	mu          sync.Mutex
	epoch       uint64
	invalidated map[string]uint64 // tag -> epoch of its last invalidation
}

// New returns a cache whose items expire after ttl.
func New[V any](name string, ttl, cleanupInterval time.Duration) *Projections[V] {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Projections[V]{
		name:        name,
		cache:       gocache.New(ttl, cleanupInterval),
		invalidated: make(map[string]uint64),
	}
}

// Get returns the cached value for key.
func (p *Projections[V]) Get(key string) (V, bool) {
	var zero V
	raw, found := p.cache.Get(key)
	if !found {
		return zero, false
	}
	e, ok := raw.(entry[V])
	if !ok {
		log.Printf("cache %s: wrong type for key=%s", p.name, key)
		p.cache.Delete(key)
		return zero, false
	}
	return e.value, true
}

// Begin returns a Token to pass to Set once the view is computed. Call it
// before reading any of the state the view is derived from.
func (p *Projections[V]) Begin() Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Token{epoch: p.epoch}
}

// Set stores value under key, tagged with the entities it depends on. It
// stores nothing and returns false when any of refs was invalidated since
// tok was taken, because value may predate that write.
func (p *Projections[V]) Set(tok Token, key string, value V, refs ...model.EntityRef) bool {
	tags := make([]string, len(refs))
	for i, r := range refs {
		tags[i] = r.String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tag := range tags {
		if p.invalidated[tag] > tok.epoch {
			return false
		}
	}
	p.cache.SetDefault(key, entry[V]{value: value, tags: tags})
	return true
}

// Invalidate drops every item tagged with any of refs and returns how many
// were removed. Views computed concurrently from the old state are refused
// by Set afterwards.
func (p *Projections[V]) Invalidate(refs ...model.EntityRef) int {
	if len(refs) == 0 {
		return 0
	}
	stale := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		stale[r.String()] = struct{}{}
	}

	p.mu.Lock()
	p.epoch++
	for tag := range stale {
		p.invalidated[tag] = p.epoch
	}
	p.mu.Unlock()

	removed := 0
	for key, item := range p.cache.Items() {
		e, ok := item.Object.(entry[V])
		if !ok {
			continue
		}
		for _, tag := range e.tags {
			if _, hit := stale[tag]; hit {
				p.cache.Delete(key)
				removed++
				break
			}
		}
	}
	return removed
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
