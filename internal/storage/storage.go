package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"meal-planner/internal/mealplan"
)

// RecipeStore provides a file-based storage for recipe snapshots, one JSON file per recipe.
type RecipeStore struct {
	basePath string
}

// NewRecipeStore creates a new RecipeStore and ensures the base directory exists.
func NewRecipeStore(basePath string) (*RecipeStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &RecipeStore{basePath: basePath}, nil
}

func (s *RecipeStore) path(recipeID int64) string {
	return filepath.Join(s.basePath, strconv.FormatInt(recipeID, 10)+".json")
}

// Save writes rec to <recipeId>.json, replacing any earlier file.
func (s *RecipeStore) Save(rec mealplan.Recipe) error {
	if rec.RecipeID <= 0 {
		return fmt.Errorf("recipe id must be positive, got %d", rec.RecipeID)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}

	if err := os.WriteFile(s.path(rec.RecipeID), data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}
	return nil
}

// Load retrieves a recipe by ID.
func (s *RecipeStore) Load(recipeID int64) (*mealplan.Recipe, error) {
	return readRecipe(s.path(recipeID))
}

// Exists checks if a recipe file exists.
func (s *RecipeStore) Exists(recipeID int64) bool {
	_, err := os.Stat(s.path(recipeID))
	return !os.IsNotExist(err)
}

// ListAll reads every *.json file in the store, sorted by file name. Files without a
// positive recipe ID are skipped and reported in skipped.
func (s *RecipeStore) ListAll() (recipes []mealplan.Recipe, skipped []string, err error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to glob recipe files: %w", err)
	}
	sort.Strings(matches)

	for _, match := range matches {
		rec, err := readRecipe(match)
		if err != nil || rec.RecipeID <= 0 {
			skipped = append(skipped, strings.TrimSuffix(filepath.Base(match), ".json"))
			continue
		}
		recipes = append(recipes, *rec)
	}
	return recipes, skipped, nil
}

func readRecipe(path string) (*mealplan.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var rec mealplan.Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	return &rec, nil
}
