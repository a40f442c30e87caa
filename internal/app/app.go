// Package app wires configuration, the API client, the week cache and the store into the
// pieces the command line and the bot run on.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"meal-planner/internal/auth"
	"meal-planner/internal/cache"
	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/remote"
	"meal-planner/internal/scheduling"
	"meal-planner/internal/shopping"
)

// SavedPool is the saved recipe half of the API used by import and export.
type SavedPool interface {
	FetchSavedRecipes(ctx context.Context, userID string) ([]mealplan.Recipe, error)
	SaveRecipe(ctx context.Context, userID string, recipe mealplan.Recipe) error
}

// App holds the client side dependencies.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	client remote.Client
	pool   SavedPool
	store  *mealplan.Store
	cache  mealplan.WeekCache
}

// NewLogger builds the process logger from the configured level.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// NewSigner builds the token signer shared by the API client and server.
func NewSigner(cfg *config.Config) (*auth.Signer, error) {
	signer, err := auth.NewSigner(cfg.APIKeyID, cfg.APISigningKey, cfg.APITokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return signer, nil
}

// New creates an App talking to the API at cfg.APIBaseURL. onBreakerChange may be nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, onBreakerChange func(from, to string)) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(remote.Options{
		BaseURL:          cfg.APIBaseURL,
		Signer:           signer,
		RequestTimeout:   cfg.RequestTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		BreakerTimeout:   cfg.BreakerTimeout,
		Logger:           logger,
		OnBreakerChange:  onBreakerChange,
	})

	weekCache, err := newWeekCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("week cache ready", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)

	return &App{
		cfg:    cfg,
		logger: logger,
		client: client,
		pool:   client,
		store:  mealplan.NewStore(client, weekCache, logger),
		cache:  weekCache,
	}, nil
}

func newWeekCache(ctx context.Context, cfg *config.Config) (mealplan.WeekCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.Connect(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect week cache: %w", err)
		}
		return rc, nil
	case "", "memory":
		return cache.NewMemory(cfg.CacheSize, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Client returns the API client.
func (a *App) Client() remote.Client {
	return a.client
}

// Store returns the meal plan store.
func (a *App) Store() *mealplan.Store {
	return a.store
}

// Close releases the week cache connection, if any.
func (a *App) Close() error {
	if c, ok := a.cache.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Controller creates a scheduling controller for userID that prints outcomes to out.
func (a *App) Controller(userID string, out io.Writer) *scheduling.Controller {
	notifier := scheduling.NotifierFunc(func(_ context.Context, o scheduling.Outcome) {
		fmt.Fprintln(out, formatOutcome(o))
	})
	return scheduling.NewController(a.store, userID, notifier, a.logger)
}

// PrintWeek writes the week of userID to w.
func (a *App) PrintWeek(ctx context.Context, w io.Writer, userID string, week calendar.Week) error {
	view, err := a.store.WeekView(ctx, userID, week)
	if err != nil {
		return fmt.Errorf("failed to load week %s: %w", week.Key(), err)
	}
	io.WriteString(w, formatWeek(view))
	return nil
}

// PrintSavedRecipes writes the saved recipe pool of userID to w.
func (a *App) PrintSavedRecipes(ctx context.Context, w io.Writer, userID string) error {
	recipes, err := a.store.FetchSavedRecipes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load saved recipes: %w", err)
	}
	if len(recipes) == 0 {
		fmt.Fprintln(w, "No saved recipes.")
		return nil
	}
	for _, r := range recipes {
		fmt.Fprintf(w, "#%-6d %s\n", r.RecipeID, r.Title)
	}
	return nil
}

// PrintShoppingList writes the shopping list for the open entries of week to w.
func (a *App) PrintShoppingList(ctx context.Context, w io.Writer, userID string, week calendar.Week) error {
	view, err := a.store.WeekView(ctx, userID, week)
	if err != nil {
		return fmt.Errorf("failed to load week %s: %w", week.Key(), err)
	}
	list := shopping.ForWeek(view)
	fmt.Fprintf(w, "=== SHOPPING LIST %s ===\n", view.Label)
	if len(list.Items) == 0 {
		fmt.Fprintln(w, "Nothing to buy.")
		return nil
	}
	for _, it := range list.Items {
		fmt.Fprintf(w, "- %s\n", it)
	}
	return nil
}

// SelectSaved selects recipeID on ctrl if it is in the user's saved pool.
func (a *App) SelectSaved(ctx context.Context, ctrl *scheduling.Controller, recipeID int64) error {
	recipes, err := ctrl.SavedRecipes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load saved recipes: %w", err)
	}
	for _, r := range recipes {
		if r.RecipeID == recipeID {
			ctrl.Select(r)
			return nil
		}
	}
	return fmt.Errorf("recipe %d: %w", recipeID, errNotSaved)
}

var errNotSaved = errors.New("not in the saved recipes")
