package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/mealplan/mealplantest"
	"meal-planner/internal/scheduling"
	"meal-planner/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	saved   []mealplan.Recipe
	failIDs map[int64]bool
	err     error
}

func (p *fakePool) FetchSavedRecipes(context.Context, string) ([]mealplan.Recipe, error) {
	return p.saved, p.err
}

func (p *fakePool) SaveRecipe(_ context.Context, _ string, r mealplan.Recipe) error {
	if p.failIDs[r.RecipeID] {
		return &mealplan.RemoteError{Op: "save recipe", StatusCode: 500, Err: errors.New("boom")}
	}
	p.saved = append(p.saved, r)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:        "development",
		DatabasePath:  filepath.Join(t.TempDir(), "app.db"),
		APISigningKey: "test-secret",
		APIKeyID:      "meal-planner",
		APITokenTTL:   time.Minute,
		CacheBackend:  "memory",
		CacheSize:     16,
		CacheTTL:      time.Minute,
	}
}

func TestImportRecipes(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewRecipeStore(dir)
	require.NoError(t, err)
	require.NoError(t, files.Save(mealplan.Recipe{RecipeID: 1, Title: "Soup"}))
	require.NoError(t, files.Save(mealplan.Recipe{RecipeID: 2, Title: "Salad"}))
	require.NoError(t, files.Save(mealplan.Recipe{RecipeID: 3, Title: "Stew"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))

	pool := &fakePool{
		saved:   []mealplan.Recipe{{RecipeID: 2, Title: "Salad"}},
		failIDs: map[int64]bool{3: true},
	}
	a := &App{logger: slog.Default(), pool: pool}

	result, err := a.ImportRecipes(context.Background(), dir, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Existing)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"broken"}, result.Skipped)
	require.Len(t, pool.saved, 2)
	assert.Equal(t, "Soup", pool.saved[1].Title)
}

func TestImportRecipes_PoolUnavailable(t *testing.T) {
	a := &App{logger: slog.Default(), pool: &fakePool{err: &mealplan.RemoteError{Op: "fetch saved recipes", Err: errors.New("down")}}}

	_, err := a.ImportRecipes(context.Background(), t.TempDir(), "1")
	assert.ErrorIs(t, err, mealplan.ErrRemote)
}

func TestExportRecipes(t *testing.T) {
	pool := &fakePool{saved: []mealplan.Recipe{{RecipeID: 4, Title: "Tacos"}, {RecipeID: 9, Title: "Curry"}}}
	a := &App{logger: slog.Default(), pool: pool}
	dir := filepath.Join(t.TempDir(), "export")

	n, err := a.ExportRecipes(context.Background(), dir, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	files, err := storage.NewRecipeStore(dir)
	require.NoError(t, err)
	rec, err := files.Load(9)
	require.NoError(t, err)
	assert.Equal(t, "Curry", rec.Title)
}

func TestControllerPrintsOutcomes(t *testing.T) {
	backend := mealplantest.NewBackend()
	backend.SaveRecipe("1", mealplan.Recipe{RecipeID: 42, Title: "Pasta",
		Ingredients: []mealplan.Ingredient{{Name: "Penne", Quantity: 200, Unit: "g"}}})
	a := &App{logger: slog.Default(), store: mealplan.NewStore(backend, nil, nil)}
	ctx := context.Background()
	var out bytes.Buffer

	ctrl := a.Controller("1", &out)
	require.NoError(t, a.SelectSaved(ctx, ctrl, 42))
	require.NoError(t, ctrl.Add(ctx, calendar.NewDate(2024, time.June, 12), mealplan.MealDinner))
	assert.Contains(t, out.String(), "Added recipe #42 to 2024-06-12 (Dinner).")

	err := ctrl.Remove(ctx, 77)
	assert.ErrorIs(t, err, mealplan.ErrNotFound)
	assert.Contains(t, out.String(), "Failed to remove entry #77")

	assert.ErrorIs(t, a.SelectSaved(ctx, ctrl, 5), errNotSaved)

	var week bytes.Buffer
	require.NoError(t, a.PrintWeek(ctx, &week, "1", calendar.WeekOf(calendar.NewDate(2024, time.June, 12))))
	assert.Contains(t, week.String(), "=== Jun 10 - 16, 2024 ===")
	assert.Contains(t, week.String(), "Wednesday, Jun 12")
	assert.Contains(t, week.String(), "Pasta [planned]")

	var list bytes.Buffer
	require.NoError(t, a.PrintShoppingList(ctx, &list, "1", calendar.WeekOf(calendar.NewDate(2024, time.June, 12))))
	assert.Contains(t, list.String(), "=== SHOPPING LIST Jun 10 - 16, 2024 ===")
	assert.Contains(t, list.String(), "- 200 g Penne")

	var recipes bytes.Buffer
	require.NoError(t, a.PrintSavedRecipes(ctx, &recipes, "1"))
	assert.Contains(t, recipes.String(), "Pasta")
}

func TestFormatOutcome(t *testing.T) {
	tests := []struct {
		outcome scheduling.Outcome
		want    string
	}{
		{scheduling.Outcome{Operation: scheduling.OpUpdateStatus, EntryID: 7, Status: mealplan.StatusCompleted}, "Entry #7 is now completed."},
		{scheduling.Outcome{Operation: scheduling.OpRemove, EntryID: 7}, "Removed entry #7."},
		{scheduling.Outcome{Operation: scheduling.OpUpdateStatus, EntryID: 7, Err: mealplan.ErrNotFound}, "Failed to update entry #7: not found"},
	}
	for _, tt := range tests {
		if got := formatOutcome(tt.outcome); got != tt.want {
			t.Errorf("formatOutcome() = %q, want %q", got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIBaseURL = "http://127.0.0.1:1"

	a, err := New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "closed", a.Client().BreakerState())
	assert.NotNil(t, a.Store())

	cfg.CacheBackend = "memcached"
	_, err = New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)

	cfg.CacheBackend = "memory"
	cfg.APISigningKey = ""
	_, err = New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewServerAndCleanup(t *testing.T) {
	cfg := testConfig(t)

	srv, closeDB, err := NewServer(cfg, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"status":"ok"`))
	require.NoError(t, closeDB())

	removed, err := CleanupMetrics(context.Background(), cfg, 30)
	require.NoError(t, err)
	assert.Zero(t, removed, "a fresh request is younger than the retention window")

	_, err = CleanupMetrics(context.Background(), cfg, 0)
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServerAddr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
