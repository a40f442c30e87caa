package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/database"
	"meal-planner/internal/mealplan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEntryRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewEntryRepository(db.SQL)
	pasta := mealplan.Recipe{RecipeID: 42, Title: "Pasta", Ingredients: []mealplan.Ingredient{{Name: "penne", Quantity: 200, Unit: "g"}}}

	monday := calendar.NewDate(2024, time.June, 10)
	dates := []calendar.Date{
		calendar.NewDate(2024, time.June, 9),  // previous Sunday
		calendar.NewDate(2024, time.June, 12), // inside
		monday,                                // inside, inserted later
		calendar.NewDate(2024, time.June, 16), // last day
		calendar.NewDate(2024, time.June, 17), // next Monday
	}
	var ids []int64
	for _, d := range dates {
		e, err := repo.Insert(ctx, "1", pasta, d, mealplan.MealDinner)
		require.NoError(t, err)
		assert.Equal(t, mealplan.StatusPlanned, e.Status)
		ids = append(ids, e.EntryID)
	}
	_, err := repo.Insert(ctx, "2", pasta, monday, mealplan.MealLunch)
	require.NoError(t, err)

	t.Run("ListWeek covers seven days in insertion order", func(t *testing.T) {
		entries, err := repo.ListWeek(ctx, "1", monday)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []int64{ids[1], ids[2], ids[3]}, []int64{entries[0].EntryID, entries[1].EntryID, entries[2].EntryID})
		assert.Equal(t, calendar.NewDate(2024, time.June, 12), entries[0].MealDate)
		assert.Equal(t, "penne", entries[0].Recipe.Ingredients[0].Name)
		assert.Equal(t, "1", entries[0].UserID)
	})

	t.Run("empty week", func(t *testing.T) {
		entries, err := repo.ListWeek(ctx, "1", calendar.NewDate(2030, time.January, 7))
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, "1", ids[1], mealplan.StatusInProgress))
		entries, err := repo.ListWeek(ctx, "1", monday)
		require.NoError(t, err)
		assert.Equal(t, mealplan.StatusInProgress, entries[0].Status)

		assert.ErrorIs(t, repo.UpdateStatus(ctx, "1", 9999, mealplan.StatusCompleted), ErrNotFound)
		assert.ErrorIs(t, repo.UpdateStatus(ctx, "2", ids[1], mealplan.StatusCompleted), ErrNotFound, "other users' entries are invisible")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "1", ids[2]))
		assert.ErrorIs(t, repo.Delete(ctx, "1", ids[2]), ErrNotFound)

		entries, err := repo.ListWeek(ctx, "1", monday)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestSavedRecipeRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSavedRecipeRepository(db.SQL, nil)

	require.NoError(t, repo.Save(ctx, "1", mealplan.Recipe{RecipeID: 42, Title: "Pasta"}))
	require.NoError(t, repo.Save(ctx, "1", mealplan.Recipe{RecipeID: 7, Title: "Soup"}))
	require.NoError(t, repo.Save(ctx, "1", mealplan.Recipe{RecipeID: 42, Title: "Pasta v2"}))
	require.NoError(t, repo.Save(ctx, "2", mealplan.Recipe{RecipeID: 42, Title: "Other user"}))

	t.Run("List keeps first save order and latest snapshot", func(t *testing.T) {
		recipes, err := repo.List(ctx, "1")
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		assert.Equal(t, "Pasta v2", recipes[0].Title)
		assert.Equal(t, "Soup", recipes[1].Title)
	})

	t.Run("Get", func(t *testing.T) {
		rec, err := repo.Get(ctx, "2", 42)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Other user", rec.Title)

		missing, err := repo.Get(ctx, "2", 7)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, repo.Remove(ctx, "1", 7))
		assert.ErrorIs(t, repo.Remove(ctx, "1", 7), ErrNotFound)

		recipes, err := repo.List(ctx, "1")
		require.NoError(t, err)
		assert.Len(t, recipes, 1)
	})

	t.Run("List for unknown user", func(t *testing.T) {
		recipes, err := repo.List(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, recipes)
		assert.Empty(t, recipes)
	})
}
