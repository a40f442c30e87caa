package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/scheduling"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messenger is the part of tgbotapi.BotAPI the bot talks through.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Reporter supplies the /metrics report.
type Reporter interface {
	DailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
	Health(ctx context.Context) (metrics.SysHealth, error)
}

// session is the per-user chat state: a controller and the week being looked at.
type session struct {
	controller *scheduling.Controller

	mu      sync.Mutex
	chatID  int64
	week    calendar.Week
	pickDay calendar.Date
}

func (s *session) cursor() calendar.Week {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.week
}

func (s *session) setCursor(w calendar.Week) {
	s.mu.Lock()
	s.week = w
	s.mu.Unlock()
}

// Bot wraps the Telegram API and the meal plan scheduling flows.
type Bot struct {
	api      messenger
	parse    func(*http.Request) (*tgbotapi.Update, error)
	planner  scheduling.Planner
	reporter Reporter
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, planner scheduling.Planner, reporter Reporter, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	b := newBot(api, planner, reporter, cfg, logger)
	b.parse = api.HandleUpdate
	b.logger.Info("authorized on account", "username", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	b.logger.Info("webhook set", "description", resp.Description)
	return b, nil
}

func newBot(api messenger, planner scheduling.Planner, reporter Reporter, cfg *config.Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:      api,
		parse:    parseUpdate,
		planner:  planner,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.parse(r)
	if err != nil {
		b.logger.Warn("failed to parse update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case update.CallbackQuery != nil:
		if !b.allowed(update.CallbackQuery.From) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil:
		if !b.allowed(update.Message.From) {
			return
		}
		go b.processMessage(update.Message)
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if !b.cfg.IsTelegramUserAllowed(from.ID) {
		b.logger.Warn("unauthorized access attempt", "telegram_id", from.ID, "username", from.UserName)
		return false
	}
	return true
}

// session returns the chat state of a Telegram user, creating it on first contact.
func (b *Bot) session(telegramID, chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[telegramID]; ok {
		s.mu.Lock()
		s.chatID = chatID
		s.mu.Unlock()
		return s
	}

	s := &session{
		chatID: chatID,
		week:   calendar.CurrentWeek(b.now()),
	}
	userID := strconv.FormatInt(telegramID, 10)
	notifier := scheduling.NotifierFunc(func(_ context.Context, o scheduling.Outcome) {
		s.mu.Lock()
		chat := s.chatID
		s.mu.Unlock()
		b.sendMarkdown(chat, formatOutcome(o))
		if errors.Is(o.Err, mealplan.ErrRemote) {
			b.sendAdminAlert(fmt.Sprintf("⚠️ *Meal plan API failure*\nUser: `%s`\nOperation: %s\nError: %s",
				userID, o.Operation, escapeMarkdown(o.Err.Error())))
		}
	})
	s.controller = scheduling.NewController(b.planner, userID, notifier, b.logger)
	b.sessions[telegramID] = s
	return s
}

// AlertBreakerChange forwards circuit breaker transitions to the admin.
func (b *Bot) AlertBreakerChange(from, to string) {
	b.sendAdminAlert(fmt.Sprintf("🔌 *Circuit breaker* for the meal plan API moved from *%s* to *%s*", from, to))
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.TelegramAdminID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.TelegramAdminID, text)
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("failed to send telegram message", "error", err)
	}
}

func parseUpdate(r *http.Request) (*tgbotapi.Update, error) {
	if r.Method != http.MethodPost {
		return nil, fmt.Errorf("wrong http method, got %s", r.Method)
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, fmt.Errorf("failed to decode update: %w", err)
	}
	return &update, nil
}
