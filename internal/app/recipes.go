package app

import (
	"context"
	"fmt"

	"meal-planner/internal/storage"
)

// ImportResult summarizes an ImportRecipes run.
type ImportResult struct {
	Imported int
	Existing int
	Failed   int
	// Skipped lists files that were not valid recipes.
	Skipped []string
}

// ImportRecipes saves every recipe file in dir into the saved pool of userID. Recipes the
// user already saved are left untouched.
func (a *App) ImportRecipes(ctx context.Context, dir, userID string) (ImportResult, error) {
	var result ImportResult

	files, err := storage.NewRecipeStore(dir)
	if err != nil {
		return result, err
	}
	recipes, skipped, err := files.ListAll()
	if err != nil {
		return result, fmt.Errorf("failed to list recipes from %s: %w", dir, err)
	}
	result.Skipped = skipped
	for _, name := range skipped {
		a.logger.Warn("skipping invalid recipe file", "file", name)
	}

	existing, err := a.pool.FetchSavedRecipes(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to list saved recipes: %w", err)
	}
	saved := make(map[int64]struct{}, len(existing))
	for _, r := range existing {
		saved[r.RecipeID] = struct{}{}
	}

	a.logger.Info("importing recipes", "dir", dir, "user_id", userID, "files", len(recipes), "already_saved", len(saved))
	for _, r := range recipes {
		if _, ok := saved[r.RecipeID]; ok {
			a.logger.Debug("recipe already saved", "recipe_id", r.RecipeID, "title", r.Title)
			result.Existing++
			continue
		}
		if err := a.pool.SaveRecipe(ctx, userID, r); err != nil {
			a.logger.Error("failed to save recipe", "recipe_id", r.RecipeID, "title", r.Title, "error", err)
			result.Failed++
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ExportRecipes writes the saved pool of userID to dir, one file per recipe, and returns
// how many were written.
func (a *App) ExportRecipes(ctx context.Context, dir, userID string) (int, error) {
	files, err := storage.NewRecipeStore(dir)
	if err != nil {
		return 0, err
	}
	recipes, err := a.pool.FetchSavedRecipes(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list saved recipes: %w", err)
	}
	for i, r := range recipes {
		if files.Exists(r.RecipeID) {
			a.logger.Debug("overwriting exported recipe", "recipe_id", r.RecipeID, "dir", dir)
		}
		if err := files.Save(r); err != nil {
			return i, fmt.Errorf("failed to export recipe %d: %w", r.RecipeID, err)
		}
	}
	return len(recipes), nil
}
