package app

import (
	"fmt"
	"strings"

	"meal-planner/internal/mealplan"
	"meal-planner/internal/scheduling"
)

func formatWeek(view mealplan.WeekView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s ===\n", view.Label))
	for _, day := range view.Days {
		sb.WriteString(fmt.Sprintf("\n%s\n", day.Date.Time(nil).Format("Monday, Jan 2")))
		if len(day.Entries) == 0 {
			sb.WriteString("  -\n")
			continue
		}
		for _, e := range day.Entries {
			sb.WriteString(fmt.Sprintf("  %-9s #%-5d %s [%s]\n", e.MealType, e.EntryID, e.Recipe.Title, e.Status))
		}
	}
	return sb.String()
}

func formatOutcome(o scheduling.Outcome) string {
	if o.Succeeded() {
		switch o.Operation {
		case scheduling.OpAdd:
			return fmt.Sprintf("Added recipe #%d to %s (%s).", o.RecipeID, o.Date, o.MealType)
		case scheduling.OpUpdateStatus:
			return fmt.Sprintf("Entry #%d is now %s.", o.EntryID, o.Status)
		default:
			return fmt.Sprintf("Removed entry #%d.", o.EntryID)
		}
	}
	switch o.Operation {
	case scheduling.OpAdd:
		return fmt.Sprintf("Failed to add recipe #%d: %v", o.RecipeID, o.Err)
	case scheduling.OpUpdateStatus:
		return fmt.Sprintf("Failed to update entry #%d: %v", o.EntryID, o.Err)
	default:
		return fmt.Sprintf("Failed to remove entry #%d: %v", o.EntryID, o.Err)
	}
}
