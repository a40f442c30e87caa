package shopping

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"meal-planner/internal/mealplan"
)

// ForWeek collects the ingredients of every entry in view that is not completed yet.
// Recipes without structured ingredients contribute their raw ingredient lines.
func ForWeek(view mealplan.WeekView) List {
	type key struct{ name, unit string }
	index := make(map[key]int)
	var items []Item

	add := func(k key, display string, qty float64, recipe string) {
		i, ok := index[k]
		if !ok {
			index[k] = len(items)
			items = append(items, Item{Name: display, Unit: k.unit, Quantity: qty, Recipes: []string{recipe}})
			return
		}
		items[i].Quantity += qty
		if !slices.Contains(items[i].Recipes, recipe) {
			items[i].Recipes = append(items[i].Recipes, recipe)
		}
	}

	for _, day := range view.Days {
		for _, e := range day.Entries {
			if e.Status == mealplan.StatusCompleted {
				continue
			}
			if len(e.Recipe.Ingredients) == 0 {
				for _, line := range e.Recipe.IngredientLines {
					line = strings.TrimSpace(line)
					if line == "" {
						continue
					}
					add(key{name: strings.ToLower(line)}, line, 0, e.Recipe.Title)
				}
				continue
			}
			for _, ing := range e.Recipe.Ingredients {
				name := strings.TrimSpace(ing.Name)
				if name == "" {
					continue
				}
				unit := strings.ToLower(strings.TrimSpace(ing.Unit))
				add(key{name: strings.ToLower(name), unit: unit}, name, ing.Quantity, e.Recipe.Title)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	if items == nil {
		items = []Item{}
	}
	return List{WeekStart: view.Week.Start, Items: items}
}

// String renders an item as "200 g Penne".
func (it Item) String() string {
	if it.Quantity == 0 {
		return it.Name
	}
	qty := strconv.FormatFloat(it.Quantity, 'f', -1, 64)
	if it.Unit == "" {
		return fmt.Sprintf("%s %s", qty, it.Name)
	}
	return fmt.Sprintf("%s %s %s", qty, it.Unit, it.Name)
}
