package mealplan

import (
	"fmt"
	"strings"

	"meal-planner/internal/calendar"
)

// MealType is the slot of the day an entry is planned for.
type MealType string

const (
	MealBreakfast MealType = "Breakfast"
	MealLunch     MealType = "Lunch"
	MealDinner    MealType = "Dinner"
	MealSnack     MealType = "Snack"
)

// MealTypes lists the slots in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

// ParseMealType matches s case-insensitively against the fixed slots.
func ParseMealType(s string) (MealType, error) {
	for _, mt := range MealTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(mt)) {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown meal type %q", ErrInvalidArgument, s)
}

// Valid reports whether mt is one of the fixed slots.
func (mt MealType) Valid() bool {
	for _, known := range MealTypes {
		if mt == known {
			return true
		}
	}
	return false
}

// Status is the cooking progress of an entry. Any status may move to any other.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPlanned, StatusInProgress, StatusCompleted}

// ParseStatus accepts the wire values plus the hyphen and underscore spellings of "in progress".
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", " ", "_", " ").Replace(normalized)
	for _, st := range Statuses {
		if normalized == string(st) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

// Valid reports whether s is one of the fixed statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Ingredient is a single measured ingredient of a recipe.
type Ingredient struct {
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

// Nutrition summarizes a recipe's nutrients. All values are non-negative.
type Nutrition struct {
	Calories      float64 `json:"calories"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fiber         float64 `json:"fiber"`
	Sugar         float64 `json:"sugar"`
}

// Recipe is owned by the recipe subsystem; the meal plan only keeps snapshots of it.
type Recipe struct {
	RecipeID        int64        `json:"recipeId"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Instructions    string       `json:"instructions"`
	Servings        int          `json:"servings"`
	Ingredients     []Ingredient `json:"ingredients"`
	IngredientLines []string     `json:"ingredientLines"`
	Nutrition       Nutrition    `json:"nutrition"`
}

// Entry assigns a recipe to a day and meal slot.
type Entry struct {
	EntryID  int64         `json:"entryId"`
	UserID   string        `json:"userId"`
	Recipe   Recipe        `json:"recipe"`
	MealDate calendar.Date `json:"mealDate"`
	MealType MealType      `json:"mealType"`
	Status   Status        `json:"status"`
}

// AddEntryRequest is the payload for scheduling a saved recipe.
type AddEntryRequest struct {
	RecipeID int64         `json:"recipeId"`
	MealDate calendar.Date `json:"mealDate"`
	MealType MealType      `json:"mealType"`
}

// Validate checks the request before it is sent anywhere.
func (r AddEntryRequest) Validate() error {
	if r.RecipeID <= 0 {
		return fmt.Errorf("%w: recipe id must be positive", ErrInvalidArgument)
	}
	if r.MealDate.IsZero() {
		return fmt.Errorf("%w: meal date is required", ErrInvalidArgument)
	}
	if !r.MealType.Valid() {
		return fmt.Errorf("%w: unknown meal type %q", ErrInvalidArgument, r.MealType)
	}
	return nil
}

// UpdateStatusRequest is the payload for changing an entry's status.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// DayPlan is one column of the calendar grid.
type DayPlan struct {
	Date    calendar.Date
	Entries []Entry
}

// WeekView is the grouped, render-ready calendar for one week.
type WeekView struct {
	Week  calendar.Week
	Label string
	Days  []DayPlan
}

// Len returns the number of entries shown in the view.
func (v WeekView) Len() int {
	n := 0
	for _, d := range v.Days {
		n += len(d.Entries)
	}
	return n
}

// Find returns the entry with the given id if it is shown in the view.
func (v WeekView) Find(entryID int64) (Entry, bool) {
	for _, d := range v.Days {
		for _, e := range d.Entries {
			if e.EntryID == entryID {
				return e, true
			}
		}
	}
	return Entry{}, false
}
