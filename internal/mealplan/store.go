// Package mealplan holds the meal calendar domain and the store that keeps a user's
// calendar in sync with the backend of record.
package mealplan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"meal-planner/internal/calendar"
)

// Backend is the backend of record. Implementations return ErrNotFound, ErrInvalidArgument
// or a *RemoteError on failure.
type Backend interface {
	FetchWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]Entry, error)
	FetchSavedRecipes(ctx context.Context, userID string) ([]Recipe, error)
	AddEntry(ctx context.Context, userID string, req AddEntryRequest) error
	RemoveEntry(ctx context.Context, userID string, entryID int64) error
	UpdateStatus(ctx context.Context, userID string, entryID int64, status Status) error
}

// WeekCache stores fetched week entry sets keyed by (userID, weekKey).
type WeekCache interface {
	Get(ctx context.Context, userID, weekKey string) ([]Entry, bool, error)
	Set(ctx context.Context, userID, weekKey string, entries []Entry) error
	InvalidateUser(ctx context.Context, userID string) error
}

// Store reads weeks through a cache and writes straight to the backend. Every successful
// mutation drops all cached weeks of the user, so the next read always refetches.
type Store struct {
	backend Backend
	cache   WeekCache
	logger  *slog.Logger

	mu    sync.Mutex
	users map[string]*userState
}

// userState serializes cache bookkeeping for one user. Cache calls for different users
// never wait on each other.
type userState struct {
	mu sync.Mutex
	// generation is bumped on every invalidation; a fetch only populates the cache
	// if the generation it started with is still current.
	generation uint64
	// dirty is set when an invalidation failed; reads bypass the cache until one succeeds.
	dirty bool
}

// NewStore creates a Store. A nil cache disables caching.
func NewStore(backend Backend, cache WeekCache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = noCache{}
	}
	return &Store{
		backend: backend,
		cache:   cache,
		logger:  logger,
		users:   make(map[string]*userState),
	}
}

func (s *Store) user(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &userState{}
		s.users[userID] = u
	}
	return u
}

// FetchWeek returns every entry of the user whose meal date falls in the week starting at weekStart.
func (s *Store) FetchWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]Entry, error) {
	weekStart = calendar.WeekStart(weekStart)
	weekKey := weekStart.String()

	u := s.user(userID)
	u.mu.Lock()
	gen := u.generation
	dirty := u.dirty
	u.mu.Unlock()

	if dirty {
		s.retryInvalidation(ctx, userID, u)
	} else {
		entries, ok, err := s.cache.Get(ctx, userID, weekKey)
		if err != nil {
			s.logger.Warn("week cache read failed", "user_id", userID, "week", weekKey, "error", err)
		} else if ok {
			return entries, nil
		}
	}

	entries, err := s.backend.FetchWeek(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.generation == gen && !u.dirty {
		if err := s.cache.Set(ctx, userID, weekKey, entries); err != nil {
			s.logger.Warn("week cache write failed", "user_id", userID, "week", weekKey, "error", err)
		}
	}
	return entries, nil
}

// WeekView fetches a week and groups it into calendar days.
func (s *Store) WeekView(ctx context.Context, userID string, week calendar.Week) (WeekView, error) {
	entries, err := s.FetchWeek(ctx, userID, week.Start)
	if err != nil {
		return WeekView{}, err
	}
	return BuildWeekView(week, entries), nil
}

// FetchSavedRecipes returns the user's saved recipe pool.
func (s *Store) FetchSavedRecipes(ctx context.Context, userID string) ([]Recipe, error) {
	recipes, err := s.backend.FetchSavedRecipes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []Recipe{}
	}
	return recipes, nil
}

// AddEntry schedules a saved recipe. The new entry only becomes visible through a refetch,
// since its identity is assigned by the backend.
func (s *Store) AddEntry(ctx context.Context, userID string, recipeID int64, mealDate calendar.Date, mealType MealType) error {
	req := AddEntryRequest{RecipeID: recipeID, MealDate: mealDate, MealType: mealType}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.backend.AddEntry(ctx, userID, req); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RemoveEntry deletes an entry. Removing a missing entry fails with ErrNotFound.
func (s *Store) RemoveEntry(ctx context.Context, userID string, entryID int64) error {
	if entryID <= 0 {
		return fmt.Errorf("%w: entry id must be positive", ErrInvalidArgument)
	}
	if err := s.backend.RemoveEntry(ctx, userID, entryID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// UpdateStatus moves an entry to status. Unknown statuses fail with ErrInvalidArgument
// without reaching the backend.
func (s *Store) UpdateStatus(ctx context.Context, userID string, entryID int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}
	if entryID <= 0 {
		return fmt.Errorf("%w: entry id must be positive", ErrInvalidArgument)
	}
	if err := s.backend.UpdateStatus(ctx, userID, entryID, status); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// invalidate drops every cached week of the user. A mutation may move an entry across
// weeks, so no attempt is made to pick the affected week.
func (s *Store) invalidate(ctx context.Context, userID string) {
	u := s.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	u.generation++
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Error("week cache invalidation failed, bypassing cache", "user_id", userID, "error", err)
		u.dirty = true
		return
	}
	u.dirty = false
}

func (s *Store) retryInvalidation(ctx context.Context, userID string, u *userState) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.dirty {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("week cache still unavailable", "user_id", userID, "error", err)
		return
	}
	u.generation++
	u.dirty = false
}

type noCache struct{}

func (noCache) Get(context.Context, string, string) ([]Entry, bool, error) { return nil, false, nil }
func (noCache) Set(context.Context, string, string, []Entry) error         { return nil }
func (noCache) InvalidateUser(context.Context, string) error               { return nil }
