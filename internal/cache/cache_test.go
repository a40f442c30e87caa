package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ mealplan.WeekCache = (*Memory)(nil)
var _ mealplan.WeekCache = (*Redis)(nil)

func sampleWeek() []mealplan.Entry {
	return []mealplan.Entry{{
		EntryID:  7,
		UserID:   "1",
		Recipe:   mealplan.Recipe{RecipeID: 42, Title: "Pasta"},
		MealDate: calendar.NewDate(2024, time.June, 12),
		MealType: mealplan.MealDinner,
		Status:   mealplan.StatusPlanned,
	}}
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 0)

	_, ok, err := m.Get(ctx, "1", "2024-06-10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "1", "2024-06-10", sampleWeek()))

	got, ok, err := m.Get(ctx, "1", "2024-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleWeek(), got)

	got[0].Status = mealplan.StatusCompleted
	again, _, _ := m.Get(ctx, "1", "2024-06-10")
	assert.Equal(t, mealplan.StatusPlanned, again[0].Status, "callers must not mutate the cached slice")
}

func TestMemory_IsolatesRecipeSlices(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, time.Minute)

	input := sampleWeek()
	input[0].Recipe.Ingredients = []mealplan.Ingredient{{Name: "Penne", Quantity: 200, Unit: "g"}}
	input[0].Recipe.IngredientLines = []string{"200 g penne"}
	require.NoError(t, m.Set(ctx, "1", "2024-06-10", input))

	input[0].Recipe.Ingredients[0].Quantity = 1
	input[0].Recipe.IngredientLines[0] = "changed"

	got, ok, err := m.Get(ctx, "1", "2024-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200.0, got[0].Recipe.Ingredients[0].Quantity, "writes to the stored slice must not reach the cache")
	assert.Equal(t, "200 g penne", got[0].Recipe.IngredientLines[0])

	got[0].Recipe.Ingredients[0].Quantity = 999
	got[0].Recipe.IngredientLines[0] = "changed"

	again, _, _ := m.Get(ctx, "1", "2024-06-10")
	assert.Equal(t, 200.0, again[0].Recipe.Ingredients[0].Quantity, "writes to a returned week must not reach the cache")
	assert.Equal(t, "200 g penne", again[0].Recipe.IngredientLines[0])
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, time.Minute)
	now := time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "1", "2024-06-10", sampleWeek()))

	now = now.Add(59 * time.Second)
	_, ok, _ := m.Get(ctx, "1", "2024-06-10")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "1", "2024-06-10")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemory_Eviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	require.NoError(t, m.Set(ctx, "1", "2024-06-03", nil))
	require.NoError(t, m.Set(ctx, "1", "2024-06-10", nil))
	require.NoError(t, m.Set(ctx, "1", "2024-06-17", nil))

	_, ok, _ := m.Get(ctx, "1", "2024-06-03")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMemory_InvalidateUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute)

	require.NoError(t, m.Set(ctx, "1", "2024-06-10", sampleWeek()))
	require.NoError(t, m.Set(ctx, "1", "2024-06-17", nil))
	require.NoError(t, m.Set(ctx, "12", "2024-06-10", nil))

	require.NoError(t, m.InvalidateUser(ctx, "1"))

	_, ok, _ := m.Get(ctx, "1", "2024-06-10")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "1", "2024-06-17")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "12", "2024-06-10")
	assert.True(t, ok, "user 12 shares a prefix with user 1 but must survive")
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis cache test")
	}
	ctx := context.Background()

	r, err := Connect(ctx, url, time.Minute)
	require.NoError(t, err)
	defer r.Close()

	user := "cache-test-" + time.Now().Format("150405.000000")
	defer r.InvalidateUser(ctx, user)

	_, ok, err := r.Get(ctx, user, "2024-06-10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, user, "2024-06-10", sampleWeek()))
	require.NoError(t, r.Set(ctx, user, "2024-06-17", nil))

	got, ok, err := r.Get(ctx, user, "2024-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleWeek(), got)

	empty, ok, err := r.Get(ctx, user, "2024-06-17")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)

	require.NoError(t, r.InvalidateUser(ctx, user))
	_, ok, err = r.Get(ctx, user, "2024-06-10")
	require.NoError(t, err)
	assert.False(t, ok)
}
