package telegram

import (
	"errors"
	"fmt"
	"strings"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/scheduling"
	"meal-planner/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func formatDay(d calendar.Date) string {
	return d.Time(nil).Format("Mon Jan 2")
}

func statusIcon(s mealplan.Status) string {
	switch s {
	case mealplan.StatusInProgress:
		return "🍳"
	case mealplan.StatusCompleted:
		return "✅"
	default:
		return "🗓"
	}
}

func formatWeekMarkdown(view mealplan.WeekView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *%s*\n", view.Label))

	for _, day := range view.Days {
		sb.WriteString(fmt.Sprintf("\n*%s*\n", formatDay(day.Date)))
		if len(day.Entries) == 0 {
			sb.WriteString("_nothing planned_\n")
			continue
		}
		for _, e := range day.Entries {
			sb.WriteString(fmt.Sprintf("%s %s: %s `#%d` _%s_\n",
				statusIcon(e.Status), e.MealType, escapeMarkdown(e.Recipe.Title), e.EntryID, e.Status))
		}
	}
	return sb.String()
}

func formatRecipesMarkdown(recipes []mealplan.Recipe) string {
	var sb strings.Builder
	sb.WriteString("📖 *Saved Recipes*\n\n")
	for _, r := range recipes {
		sb.WriteString(fmt.Sprintf("• `#%d` %s", r.RecipeID, escapeMarkdown(r.Title)))
		if r.Servings > 0 {
			sb.WriteString(fmt.Sprintf(" (%d servings)", r.Servings))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nTap a recipe to schedule it.")
	return sb.String()
}

func formatShoppingMarkdown(label string, list shopping.List) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🛒 *Shopping List* (%s)\n\n", label))
	if len(list.Items) == 0 {
		sb.WriteString("_Nothing to buy._")
		return sb.String()
	}
	for _, it := range list.Items {
		sb.WriteString(fmt.Sprintf("• %s\n", escapeMarkdown(it.String())))
	}
	return sb.String()
}

func formatOutcome(o scheduling.Outcome) string {
	if o.Succeeded() {
		switch o.Operation {
		case scheduling.OpAdd:
			return fmt.Sprintf("✅ Recipe #%d added to %s (%s).", o.RecipeID, formatDay(o.Date), o.MealType)
		case scheduling.OpUpdateStatus:
			return fmt.Sprintf("✅ Entry #%d is now *%s*.", o.EntryID, o.Status)
		case scheduling.OpRemove:
			return fmt.Sprintf("🗑 Entry #%d removed.", o.EntryID)
		}
	}

	var subject string
	switch o.Operation {
	case scheduling.OpAdd:
		subject = fmt.Sprintf("add recipe #%d", o.RecipeID)
	case scheduling.OpUpdateStatus:
		subject = fmt.Sprintf("update entry #%d", o.EntryID)
	default:
		subject = fmt.Sprintf("remove entry #%d", o.EntryID)
	}
	return fmt.Sprintf("Could not %s.\n%s", subject, formatError(o.Err))
}

func formatError(err error) string {
	switch {
	case errors.Is(err, mealplan.ErrNotFound):
		return "❌ It no longer exists. Refresh with /week."
	case errors.Is(err, mealplan.ErrInvalidArgument):
		return "❌ " + escapeMarkdown(err.Error())
	case errors.Is(err, mealplan.ErrRemote):
		return "⚠️ The meal plan service is unavailable. Please try again later."
	default:
		return "❌ Something went wrong."
	}
}

func formatMetricsMarkdown(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent API Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d requests (%d 4xx, %d 5xx, avg %.0fms)\n",
			d.Date, d.Requests, d.ClientErrors, d.ServerErrors, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}

func weekKeyboard(view mealplan.WeekView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, day := range view.Days {
		for _, e := range day.Entries {
			id := fmt.Sprint(e.EntryID)
			row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
			for _, st := range mealplan.Statuses {
				if st == e.Status {
					continue
				}
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("%s #%s", statusIcon(st), id), "st|"+id+"|"+string(st)))
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑 #"+id, "rm|"+id))
			rows = append(rows, row)
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Prev", "nav|prev"),
		tgbotapi.NewInlineKeyboardButtonData("Today", "nav|today"),
		tgbotapi.NewInlineKeyboardButtonData("Next ▶️", "nav|next"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func recipeKeyboard(recipes []mealplan.Recipe) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(recipes))
	for _, r := range recipes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(r.Title, 40), fmt.Sprintf("pick|%d", r.RecipeID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dayKeyboard(week calendar.Week) tgbotapi.InlineKeyboardMarkup {
	days := week.Days()
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(days); i += 4 {
		end := min(i+4, len(days))
		row := make([]tgbotapi.InlineKeyboardButton, 0, end-i)
		for _, d := range days[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				d.Time(nil).Format("Mon 2"), "day|"+d.String()))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(mealplan.MealTypes))
	for _, mt := range mealplan.MealTypes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(string(mt), "slot|"+string(mt)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
