package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"meal-planner/internal/database"
	"meal-planner/internal/mealplan"
)

// SavedRecipeRepository stores each user's bookmarked recipes.
type SavedRecipeRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSavedRecipeRepository creates a new SavedRecipeRepository.
func NewSavedRecipeRepository(db *sql.DB, logger *slog.Logger) *SavedRecipeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SavedRecipeRepository{db: db, logger: logger, now: time.Now}
}

// Save bookmarks rec for the user, replacing any earlier snapshot of the same recipe.
func (r *SavedRecipeRepository) Save(ctx context.Context, userID string, rec mealplan.Recipe) error {
	recipeJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO saved_recipes (user_id, recipe_id, recipe_json, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, recipe_id) DO UPDATE SET recipe_json = excluded.recipe_json, saved_at = excluded.saved_at`,
		userID, rec.RecipeID, string(recipeJSON), r.now().UTC().Format(database.TimestampLayout))
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

// Remove drops a bookmark. A recipe that is not saved is ErrNotFound.
func (r *SavedRecipeRepository) Remove(ctx context.Context, userID string, recipeID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM saved_recipes WHERE user_id = ? AND recipe_id = ?", userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to remove saved recipe: %w", err)
	}
	return requireAffected(res, "saved recipe", recipeID)
}

// Get retrieves a saved recipe. It returns nil, nil when the recipe is not saved.
func (r *SavedRecipeRepository) Get(ctx context.Context, userID string, recipeID int64) (*mealplan.Recipe, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT recipe_json FROM saved_recipes WHERE user_id = ? AND recipe_id = ?", userID, recipeID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get saved recipe: %w", err)
	}

	var rec mealplan.Recipe
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	return &rec, nil
}

// List returns the user's saved pool in the order it was first saved.
func (r *SavedRecipeRepository) List(ctx context.Context, userID string) ([]mealplan.Recipe, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT recipe_id, recipe_json FROM saved_recipes WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved recipes: %w", err)
	}
	defer rows.Close()

	recipes := []mealplan.Recipe{}
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan saved recipe: %w", err)
		}
		var rec mealplan.Recipe
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			r.logger.Warn("skipping unreadable saved recipe", "user_id", userID, "recipe_id", id, "error", err)
			continue
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved recipes: %w", err)
	}
	return recipes, nil
}
