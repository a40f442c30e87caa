// Package mealplantest provides an in-memory mealplan.Backend for tests.
package mealplantest

import (
	"context"
	"fmt"
	"sync"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
)

// Backend is an in-memory backend of record with call counters and failure injection.
type Backend struct {
	mu      sync.Mutex
	nextID  int64
	entries map[string][]mealplan.Entry
	saved   map[string][]mealplan.Recipe

	// Gate, when set, blocks every mutation until a value is received or the channel is closed.
	Gate chan struct{}
	// Err, when set, is returned by every call.
	Err error

	Calls map[string]int
}

// NewBackend creates an empty Backend.
func NewBackend() *Backend {
	return &Backend{
		nextID:  1,
		entries: make(map[string][]mealplan.Entry),
		saved:   make(map[string][]mealplan.Recipe),
		Calls:   make(map[string]int),
	}
}

// SaveRecipe adds r to the user's saved pool.
func (b *Backend) SaveRecipe(userID string, r mealplan.Recipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved[userID] = append(b.saved[userID], r)
}

// SetNextID forces the identity assigned to the next added entry.
func (b *Backend) SetNextID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID = id
}

// CallCount returns how many times op was invoked.
func (b *Backend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Calls[op]
}

// Entries returns a copy of the user's entries in insertion order.
func (b *Backend) Entries(userID string) []mealplan.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]mealplan.Entry(nil), b.entries[userID]...)
}

func (b *Backend) begin(op string, mutation bool) error {
	b.mu.Lock()
	b.Calls[op]++
	gate := b.Gate
	err := b.Err
	b.mu.Unlock()

	if mutation && gate != nil {
		<-gate
	}
	return err
}

func (b *Backend) FetchWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]mealplan.Entry, error) {
	if err := b.begin("FetchWeek", false); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	week := calendar.WeekOf(weekStart)
	var out []mealplan.Entry
	for _, e := range b.entries[userID] {
		if week.Contains(e.MealDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) FetchSavedRecipes(ctx context.Context, userID string) ([]mealplan.Recipe, error) {
	if err := b.begin("FetchSavedRecipes", false); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]mealplan.Recipe(nil), b.saved[userID]...), nil
}

func (b *Backend) AddEntry(ctx context.Context, userID string, req mealplan.AddEntryRequest) error {
	if err := b.begin("AddEntry", true); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.saved[userID] {
		if r.RecipeID == req.RecipeID {
			b.entries[userID] = append(b.entries[userID], mealplan.Entry{
				EntryID:  b.nextID,
				UserID:   userID,
				Recipe:   r,
				MealDate: req.MealDate,
				MealType: req.MealType,
				Status:   mealplan.StatusPlanned,
			})
			b.nextID++
			return nil
		}
	}
	return fmt.Errorf("%w: recipe %d is not saved", mealplan.ErrNotFound, req.RecipeID)
}

func (b *Backend) RemoveEntry(ctx context.Context, userID string, entryID int64) error {
	if err := b.begin("RemoveEntry", true); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries[userID]
	for i, e := range entries {
		if e.EntryID == entryID {
			b.entries[userID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: entry %d", mealplan.ErrNotFound, entryID)
}

func (b *Backend) UpdateStatus(ctx context.Context, userID string, entryID int64, status mealplan.Status) error {
	if err := b.begin("UpdateStatus", true); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.entries[userID] {
		if e.EntryID == entryID {
			b.entries[userID][i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%w: entry %d", mealplan.ErrNotFound, entryID)
}
