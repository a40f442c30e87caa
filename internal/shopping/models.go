// Package shopping derives a shopping list from a week of the meal plan.
package shopping

import "meal-planner/internal/calendar"

// Item is one line of the shopping list. Quantities of the same ingredient and unit are summed.
type Item struct {
	Name     string   `json:"name"`
	Quantity float64  `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Recipes  []string `json:"recipes"`
}

// List represents the shopping list for one week.
type List struct {
	WeekStart calendar.Date `json:"weekStart"`
	Items     []Item        `json:"items"`
}
