// Package cache provides week entry caches for mealplan.Store.
package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"meal-planner/internal/mealplan"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultSize = 256
	DefaultTTL  = 5 * time.Minute
)

type weekEntry struct {
	entries  []mealplan.Entry
	storedAt time.Time
}

// Memory is an in-process LRU of week entry sets keyed by "userID|weekKey".
type Memory struct {
	cache *lru.Cache[string, weekEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemory creates a Memory cache. Non-positive size or ttl fall back to the defaults.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// lru.New only fails on a non-positive size.
	c, _ := lru.New[string, weekEntry](size)
	return &Memory{cache: c, ttl: ttl, now: time.Now}
}

func memoryKey(userID, weekKey string) string {
	return userID + "|" + weekKey
}

func (m *Memory) Get(_ context.Context, userID, weekKey string) ([]mealplan.Entry, bool, error) {
	key := memoryKey(userID, weekKey)
	entry, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.now().Sub(entry.storedAt) >= m.ttl {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return cloneEntries(entry.entries), true, nil
}

func (m *Memory) Set(_ context.Context, userID, weekKey string, entries []mealplan.Entry) error {
	m.cache.Add(memoryKey(userID, weekKey), weekEntry{
		entries:  cloneEntries(entries),
		storedAt: m.now(),
	})
	return nil
}

// InvalidateUser drops every cached week of userID.
func (m *Memory) InvalidateUser(_ context.Context, userID string) error {
	prefix := userID + "|"
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
		}
	}
	return nil
}

// Len returns the number of cached weeks, expired ones included.
func (m *Memory) Len() int {
	return m.cache.Len()
}

// cloneEntries copies entries including the recipe slices, so cached weeks share no
// memory with callers.
func cloneEntries(entries []mealplan.Entry) []mealplan.Entry {
	out := make([]mealplan.Entry, len(entries))
	copy(out, entries)
	for i := range out {
		out[i].Recipe.Ingredients = slices.Clone(out[i].Recipe.Ingredients)
		out[i].Recipe.IngredientLines = slices.Clone(out[i].Recipe.IngredientLines)
	}
	return out
}
