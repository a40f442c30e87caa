package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/scheduling"
	"meal-planner/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const requestTimeout = 30 * time.Second

const helpText = `🍽 *Meal Plan*

/week [YYYY-MM-DD] - show the week
/today - jump to the current week
/next, /prev - move one week
/shopping - ingredients still needed this week
/recipes - pick a saved recipe to schedule
/add <recipeId> <YYYY-MM-DD> <meal> - schedule a recipe
/status <entryId> <planned|in progress|completed> - change an entry
/remove <entryId> - delete an entry`

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	chatID := msg.Chat.ID
	cmd, args := parseCommand(msg.Text)

	// Admin commands
	if cmd == "metrics" {
		if msg.From.ID != b.cfg.TelegramAdminID {
			b.sendMarkdown(chatID, "⛔ This command is reserved for the admin.")
			return
		}
		b.handleMetricsCommand(ctx, chatID)
		return
	}

	s := b.session(msg.From.ID, chatID)
	switch cmd {
	case "week":
		if len(args) > 0 {
			d, err := calendar.ParseDate(args[0])
			if err != nil {
				b.sendMarkdown(chatID, "❌ Dates look like `2024-06-12`.")
				return
			}
			s.setCursor(calendar.WeekOf(d))
		}
		b.sendWeek(ctx, s, chatID, 0)
	case "today":
		s.setCursor(calendar.CurrentWeek(b.now()))
		b.sendWeek(ctx, s, chatID, 0)
	case "next":
		s.setCursor(s.cursor().Next())
		b.sendWeek(ctx, s, chatID, 0)
	case "prev":
		s.setCursor(s.cursor().Previous())
		b.sendWeek(ctx, s, chatID, 0)
	case "shopping":
		b.sendShoppingList(ctx, s, chatID)
	case "recipes":
		b.sendRecipePicker(ctx, s, chatID)
	case "add":
		b.handleAddCommand(ctx, s, chatID, args)
	case "status":
		b.handleStatusCommand(ctx, s, chatID, args)
	case "remove":
		b.handleRemoveCommand(ctx, s, chatID, args)
	default:
		b.sendMarkdown(chatID, helpText)
	}
}

func (b *Bot) handleAddCommand(ctx context.Context, s *session, chatID int64, args []string) {
	if len(args) < 3 {
		b.sendMarkdown(chatID, "Usage: `/add <recipeId> <YYYY-MM-DD> <meal>`")
		return
	}
	recipeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || recipeID <= 0 {
		b.sendMarkdown(chatID, "❌ Recipe ids are positive numbers.")
		return
	}
	date, err := calendar.ParseDate(args[1])
	if err != nil {
		b.sendMarkdown(chatID, "❌ Dates look like `2024-06-12`.")
		return
	}
	mealType, err := mealplan.ParseMealType(args[2])
	if err != nil {
		b.sendMarkdown(chatID, "❌ Meals are Breakfast, Lunch, Dinner or Snack.")
		return
	}

	rec, ok, err := b.findSaved(ctx, s, recipeID)
	if err != nil {
		b.sendMarkdown(chatID, formatError(err))
		return
	}
	if !ok {
		b.sendMarkdown(chatID, fmt.Sprintf("❌ Recipe #%d is not in your saved recipes.", recipeID))
		return
	}
	s.controller.Select(rec)
	b.submitAdd(ctx, s, chatID, date, mealType)
}

func (b *Bot) handleStatusCommand(ctx context.Context, s *session, chatID int64, args []string) {
	if len(args) < 2 {
		b.sendMarkdown(chatID, "Usage: `/status <entryId> <planned|in progress|completed>`")
		return
	}
	entryID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMarkdown(chatID, "❌ Entry ids are numbers.")
		return
	}
	status, err := mealplan.ParseStatus(strings.Join(args[1:], " "))
	if err != nil {
		b.sendMarkdown(chatID, "❌ Status must be planned, in progress or completed.")
		return
	}
	b.submitStatus(ctx, s, chatID, entryID, status)
}

func (b *Bot) handleRemoveCommand(ctx context.Context, s *session, chatID int64, args []string) {
	if len(args) < 1 {
		b.sendMarkdown(chatID, "Usage: `/remove <entryId>`")
		return
	}
	entryID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMarkdown(chatID, "❌ Entry ids are numbers.")
		return
	}
	b.submitRemove(ctx, s, chatID, entryID)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// Answer first to stop the button spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	s := b.session(query.From.ID, chatID)

	action, payload, _ := strings.Cut(query.Data, "|")
	switch action {
	case "nav":
		switch payload {
		case "prev":
			s.setCursor(s.cursor().Previous())
		case "next":
			s.setCursor(s.cursor().Next())
		default:
			s.setCursor(calendar.CurrentWeek(b.now()))
		}
		b.sendWeek(ctx, s, chatID, messageID)
	case "pick":
		recipeID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return
		}
		rec, ok, err := b.findSaved(ctx, s, recipeID)
		if err != nil {
			b.sendMarkdown(chatID, formatError(err))
			return
		}
		if !ok {
			b.sendMarkdown(chatID, fmt.Sprintf("❌ Recipe #%d is no longer saved.", recipeID))
			return
		}
		s.controller.Select(rec)
		week := s.cursor()
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			fmt.Sprintf("📌 *%s*\nWhich day of %s?", escapeMarkdown(rec.Title), week.Label()),
			dayKeyboard(week))
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.send(edit)
	case "day":
		date, err := calendar.ParseDate(payload)
		if err != nil {
			return
		}
		rec, ok := s.controller.Selection()
		if !ok {
			b.sendMarkdown(chatID, "Pick a recipe first with /recipes.")
			return
		}
		s.mu.Lock()
		s.pickDay = date
		s.mu.Unlock()
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			fmt.Sprintf("📌 *%s* on %s\nWhich meal?", escapeMarkdown(rec.Title), formatDay(date)),
			slotKeyboard())
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.send(edit)
	case "slot":
		mealType, err := mealplan.ParseMealType(payload)
		if err != nil {
			return
		}
		s.mu.Lock()
		date := s.pickDay
		s.mu.Unlock()
		if date.IsZero() {
			b.sendMarkdown(chatID, "Pick a day first with /recipes.")
			return
		}
		b.submitAdd(ctx, s, chatID, date, mealType)
	case "st":
		rawID, rawStatus, _ := strings.Cut(payload, "|")
		entryID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return
		}
		status, err := mealplan.ParseStatus(rawStatus)
		if err != nil {
			return
		}
		b.submitStatus(ctx, s, chatID, entryID, status)
	case "rm":
		entryID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return
		}
		b.submitRemove(ctx, s, chatID, entryID)
	default:
		b.logger.Debug("unknown callback", "data", query.Data)
	}
}

// submitAdd runs the add flow. The outcome message comes from the notifier; on success
// the week holding the new entry is shown.
func (b *Bot) submitAdd(ctx context.Context, s *session, chatID int64, date calendar.Date, mealType mealplan.MealType) {
	err := s.controller.Add(ctx, date, mealType)
	switch {
	case errors.Is(err, scheduling.ErrInFlight):
		b.sendMarkdown(chatID, "⏳ Still adding the previous recipe.")
	case errors.Is(err, scheduling.ErrNoSelection):
		b.sendMarkdown(chatID, "Pick a recipe first with /recipes.")
	case err == nil:
		s.mu.Lock()
		s.pickDay = calendar.Date{}
		s.mu.Unlock()
		s.setCursor(calendar.WeekOf(date))
		b.sendWeek(ctx, s, chatID, 0)
	}
}

func (b *Bot) submitStatus(ctx context.Context, s *session, chatID int64, entryID int64, status mealplan.Status) {
	err := s.controller.UpdateStatus(ctx, entryID, status)
	switch {
	case errors.Is(err, scheduling.ErrInFlight):
		b.sendMarkdown(chatID, fmt.Sprintf("⏳ Entry #%d is already being updated.", entryID))
	case err == nil:
		b.sendWeek(ctx, s, chatID, 0)
	}
}

func (b *Bot) submitRemove(ctx context.Context, s *session, chatID int64, entryID int64) {
	err := s.controller.Remove(ctx, entryID)
	switch {
	case errors.Is(err, scheduling.ErrInFlight):
		b.sendMarkdown(chatID, fmt.Sprintf("⏳ Entry #%d is already being removed.", entryID))
	case err == nil:
		b.sendWeek(ctx, s, chatID, 0)
	}
}

// sendWeek renders the cursor week. A non-zero messageID edits that message in place.
func (b *Bot) sendWeek(ctx context.Context, s *session, chatID int64, messageID int) {
	view, err := s.controller.View(ctx, s.cursor())
	if err != nil {
		b.logger.Error("failed to load week", "user_id", s.controller.UserID(), "error", err)
		b.sendMarkdown(chatID, formatError(err))
		return
	}

	text := formatWeekMarkdown(view)
	keyboard := weekKeyboard(view)
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.send(edit)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *Bot) sendShoppingList(ctx context.Context, s *session, chatID int64) {
	view, err := s.controller.View(ctx, s.cursor())
	if err != nil {
		b.sendMarkdown(chatID, formatError(err))
		return
	}
	b.sendMarkdown(chatID, formatShoppingMarkdown(view.Label, shopping.ForWeek(view)))
}

func (b *Bot) sendRecipePicker(ctx context.Context, s *session, chatID int64) {
	recipes, err := s.controller.SavedRecipes(ctx)
	if err != nil {
		b.sendMarkdown(chatID, formatError(err))
		return
	}
	if len(recipes) == 0 {
		b.sendMarkdown(chatID, "📭 You have no saved recipes yet.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatRecipesMarkdown(recipes))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = recipeKeyboard(recipes)
	b.send(msg)
}

func (b *Bot) findSaved(ctx context.Context, s *session, recipeID int64) (mealplan.Recipe, bool, error) {
	recipes, err := s.controller.SavedRecipes(ctx)
	if err != nil {
		return mealplan.Recipe{}, false, err
	}
	for _, r := range recipes {
		if r.RecipeID == recipeID {
			return r, true, nil
		}
	}
	return mealplan.Recipe{}, false, nil
}

func (b *Bot) handleMetricsCommand(ctx context.Context, chatID int64) {
	if b.reporter == nil {
		b.sendMarkdown(chatID, "❌ Metrics are not available.")
		return
	}
	usage, err := b.reporter.DailyUsage(ctx, 7)
	if err != nil {
		b.logger.Error("failed to fetch metrics", "error", err)
		b.sendMarkdown(chatID, "❌ Error fetching metrics.")
		return
	}
	health, err := b.reporter.Health(ctx)
	if err != nil {
		b.logger.Error("failed to fetch health", "error", err)
		b.sendMarkdown(chatID, "❌ Error fetching health.")
		return
	}
	b.sendMarkdown(chatID, formatMetricsMarkdown(usage, health))
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments. Plain text yields an
// empty command.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), fields[1:]
}
