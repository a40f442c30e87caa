package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/mealplan/mealplantest"
	"meal-planner/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	telegramUser = int64(5)
	chat         = int64(100)
	admin        = int64(99)
)

type sent struct {
	chatID int64
	text   string
	edit   bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sent
	answered int
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.sent = append(f.sent, sent{chatID: m.ChatID, text: m.Text})
	case tgbotapi.EditMessageTextConfig:
		f.sent = append(f.sent, sent{chatID: m.ChatID, text: m.Text, edit: true})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered++
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

func (f *fakeMessenger) contains(chatID int64, sub string) bool {
	for _, text := range f.texts(chatID) {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

type fakeReporter struct{}

func (fakeReporter) DailyUsage(context.Context, int) ([]metrics.DailyUsage, error) {
	return []metrics.DailyUsage{{Date: "2024-06-12", Requests: 5, ServerErrors: 1, AvgLatencyMS: 12}}, nil
}

func (fakeReporter) Health(context.Context) (metrics.SysHealth, error) {
	return metrics.SysHealth{Status: "ok", Uptime: "1h0m0s", Goroutines: 8, DataDiskSize: "2.0 KB"}, nil
}

func newTestBot(t *testing.T, cfg *config.Config) (*Bot, *fakeMessenger, *mealplantest.Backend) {
	t.Helper()
	backend := mealplantest.NewBackend()
	backend.SaveRecipe("5", mealplan.Recipe{RecipeID: 42, Title: "Pasta", Servings: 2,
		Ingredients: []mealplan.Ingredient{{Name: "Penne", Quantity: 200, Unit: "g"}}})
	if cfg == nil {
		cfg = &config.Config{TelegramAdminID: admin}
	}
	api := &fakeMessenger{}
	b := newBot(api, mealplan.NewStore(backend, nil, nil), fakeReporter{}, cfg, nil)
	b.now = func() time.Time { return time.Date(2024, time.June, 12, 9, 0, 0, 0, time.UTC) }
	return b, api, backend
}

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: telegramUser},
		Chat: &tgbotapi.Chat{ID: chat},
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    &tgbotapi.User{ID: telegramUser},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: chat}},
		Data:    data,
	}
}

func TestFormatWeekMarkdown(t *testing.T) {
	june12 := calendar.NewDate(2024, time.June, 12)
	view := mealplan.BuildWeekView(calendar.WeekOf(june12), []mealplan.Entry{
		{EntryID: 7, Recipe: mealplan.Recipe{Title: "Pasta"}, MealDate: june12, MealType: mealplan.MealDinner, Status: mealplan.StatusPlanned},
		{EntryID: 8, Recipe: mealplan.Recipe{Title: "Mac_and*Cheese"}, MealDate: june12, MealType: mealplan.MealLunch, Status: mealplan.StatusCompleted},
	})

	output := formatWeekMarkdown(view)

	if !strings.Contains(output, "📅 *Jun 10 - 16, 2024*") {
		t.Error("Missing week header")
	}
	if !strings.Contains(output, "*Wed Jun 12*") {
		t.Error("Missing day heading")
	}
	if !strings.Contains(output, "Dinner: Pasta `#7` _planned_") {
		t.Errorf("Missing dinner entry:\n%s", output)
	}
	if !strings.Contains(output, `✅ Lunch: Mac\_and\*Cheese`) {
		t.Errorf("Recipe title must be escaped:\n%s", output)
	}
	if strings.Count(output, "_nothing planned_") != 6 {
		t.Errorf("Expected six empty days:\n%s", output)
	}
}

func TestWeekKeyboard(t *testing.T) {
	june12 := calendar.NewDate(2024, time.June, 12)
	view := mealplan.BuildWeekView(calendar.WeekOf(june12), []mealplan.Entry{
		{EntryID: 7, MealDate: june12, MealType: mealplan.MealDinner, Status: mealplan.StatusPlanned},
	})

	kb := weekKeyboard(view)
	require.Len(t, kb.InlineKeyboard, 2)

	var data []string
	for _, btn := range kb.InlineKeyboard[0] {
		data = append(data, *btn.CallbackData)
	}
	assert.Equal(t, []string{"st|7|in progress", "st|7|completed", "rm|7"}, data)
	assert.Equal(t, "nav|prev", *kb.InlineKeyboard[1][0].CallbackData)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args []string
	}{
		{"/week", "week", []string{}},
		{"/add@MealBot 42 2024-06-12 dinner", "add", []string{"42", "2024-06-12", "dinner"}},
		{"  /STATUS 7 in progress", "status", []string{"7", "in", "progress"}},
		{"hello there", "", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		if cmd != tt.cmd {
			t.Errorf("parseCommand(%q) cmd = %q, want %q", tt.text, cmd, tt.cmd)
		}
		if len(args) != len(tt.args) {
			t.Errorf("parseCommand(%q) args = %v, want %v", tt.text, args, tt.args)
		}
	}
}

func TestAddCommand(t *testing.T) {
	b, api, backend := newTestBot(t, nil)

	b.processMessage(message("/add 42 2024-06-12 dinner"))

	entries := backend.Entries("5")
	require.Len(t, entries, 1)
	assert.Equal(t, mealplan.MealDinner, entries[0].MealType)
	assert.True(t, api.contains(chat, "✅ Recipe #42 added to Wed Jun 12 (Dinner)."))
	assert.True(t, api.contains(chat, "Dinner: Pasta `#1`"), "week is re-rendered after the add")

	b.processMessage(message("/add 99 2024-06-12 dinner"))
	assert.True(t, api.contains(chat, "Recipe #99 is not in your saved recipes"))
	assert.Len(t, backend.Entries("5"), 1)

	b.processMessage(message("/add 42 2024-06-12 brunch"))
	assert.True(t, api.contains(chat, "Meals are Breakfast, Lunch, Dinner or Snack"))
}

func TestCallbackAddFlow(t *testing.T) {
	b, api, backend := newTestBot(t, nil)

	b.processMessage(message("/recipes"))
	assert.True(t, api.contains(chat, "`#42` Pasta (2 servings)"))

	b.handleCallbackQuery(callback("slot|Dinner"))
	assert.True(t, api.contains(chat, "Pick a day first"))

	b.handleCallbackQuery(callback("pick|42"))
	assert.True(t, api.contains(chat, "Which day of Jun 10 - 16, 2024?"))

	b.handleCallbackQuery(callback("day|2024-06-14"))
	assert.True(t, api.contains(chat, "on Fri Jun 14"))

	b.handleCallbackQuery(callback("slot|Lunch"))
	entries := backend.Entries("5")
	require.Len(t, entries, 1)
	assert.Equal(t, calendar.NewDate(2024, time.June, 14), entries[0].MealDate)
	assert.Equal(t, mealplan.MealLunch, entries[0].MealType)
	assert.Equal(t, 4, api.answered)

	_, selected := b.session(telegramUser, chat).controller.Selection()
	assert.False(t, selected, "selection is cleared by a successful add")
}

func TestStatusAndRemove(t *testing.T) {
	b, api, backend := newTestBot(t, nil)
	b.processMessage(message("/add 42 2024-06-12 dinner"))

	b.handleCallbackQuery(callback("st|1|completed"))
	assert.Equal(t, mealplan.StatusCompleted, backend.Entries("5")[0].Status)
	assert.True(t, api.contains(chat, "Entry #1 is now *completed*"))

	b.processMessage(message("/status 1 in progress"))
	assert.Equal(t, mealplan.StatusInProgress, backend.Entries("5")[0].Status)

	b.handleCallbackQuery(callback("rm|1"))
	assert.Empty(t, backend.Entries("5"))
	assert.True(t, api.contains(chat, "🗑 Entry #1 removed."))

	b.processMessage(message("/remove 1"))
	assert.True(t, api.contains(chat, "Could not remove entry #1"))
	assert.True(t, api.contains(chat, "no longer exists"))
	assert.Empty(t, api.texts(admin), "a missing entry is not an outage")
}

func TestShoppingCommand(t *testing.T) {
	b, api, _ := newTestBot(t, nil)

	b.processMessage(message("/shopping"))
	assert.True(t, api.contains(chat, "_Nothing to buy._"))

	b.processMessage(message("/add 42 2024-06-12 dinner"))
	b.processMessage(message("/add 42 2024-06-13 lunch"))
	b.processMessage(message("/shopping"))
	assert.True(t, api.contains(chat, "🛒 *Shopping List* (Jun 10 - 16, 2024)"))
	assert.True(t, api.contains(chat, "• 400 g Penne"))
}

func TestWeekNavigation(t *testing.T) {
	b, api, _ := newTestBot(t, nil)

	b.processMessage(message("/next"))
	assert.True(t, api.contains(chat, "Jun 17 - 23, 2024"))

	b.handleCallbackQuery(callback("nav|prev"))
	b.handleCallbackQuery(callback("nav|prev"))
	assert.True(t, api.contains(chat, "Jun 3 - 9, 2024"))

	b.processMessage(message("/week 2024-07-01"))
	assert.True(t, api.contains(chat, "Jul 1 - 7, 2024"))

	b.processMessage(message("/today"))
	assert.Equal(t, "2024-06-10", b.session(telegramUser, chat).cursor().Key())
}

func TestRemoteFailureAlertsAdmin(t *testing.T) {
	b, api, backend := newTestBot(t, nil)
	backend.Err = &mealplan.RemoteError{Op: "remove entry", StatusCode: 502, Err: errors.New("bad gateway")}

	b.processMessage(message("/remove 3"))

	assert.True(t, api.contains(chat, "service is unavailable"))
	assert.True(t, api.contains(admin, "Meal plan API failure"))

	b.AlertBreakerChange("closed", "open")
	assert.True(t, api.contains(admin, "moved from *closed* to *open*"))
}

func TestMetricsCommand(t *testing.T) {
	b, api, _ := newTestBot(t, nil)

	b.processMessage(message("/metrics"))
	assert.True(t, api.contains(chat, "reserved for the admin"))

	b.processMessage(&tgbotapi.Message{Text: "/metrics", From: &tgbotapi.User{ID: admin}, Chat: &tgbotapi.Chat{ID: admin}})
	texts := api.texts(admin)
	require.Len(t, texts, 1)
	if !strings.Contains(texts[0], "📊 *Usage & Health Report*") {
		t.Error("Missing report header")
	}
	if !strings.Contains(texts[0], "*2024-06-12*: 5 requests (0 4xx, 1 5xx, avg 12ms)") {
		t.Errorf("Missing usage line:\n%s", texts[0])
	}
	if !strings.Contains(texts[0], "Goroutines: 8") {
		t.Error("Missing health section")
	}
}

func TestWebhookAllowedUsers(t *testing.T) {
	b, api, _ := newTestBot(t, &config.Config{TelegramAllowUserIDs: []int64{telegramUser}})
	mux := http.NewServeMux()
	b.RegisterHandlers(mux)

	post := func(from int64) {
		body := `{"update_id":1,"message":{"message_id":1,"from":{"id":` + strconv.FormatInt(from, 10) +
			`,"is_bot":false,"first_name":"x"},"chat":{"id":100,"type":"private"},"date":0,"text":"/help"}}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	post(6)
	post(telegramUser)

	require.Eventually(t, func() bool { return api.contains(chat, "🍽 *Meal Plan*") }, time.Second, 10*time.Millisecond)
	assert.Len(t, api.texts(chat), 1, "unknown users get no reply")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rec.Body.String())
}
