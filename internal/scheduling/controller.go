// Package scheduling turns user intents into meal plan mutations and tracks which of them
// are in flight.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
)

var (
	// ErrInFlight is returned when the same mutation is triggered again before the first resolves.
	ErrInFlight = errors.New("mutation already in flight")
	// ErrNoSelection is returned by Add when no recipe has been selected.
	ErrNoSelection = fmt.Errorf("%w: no recipe selected", mealplan.ErrInvalidArgument)
)

// Planner is the slice of mealplan.Store the controller needs.
type Planner interface {
	WeekView(ctx context.Context, userID string, week calendar.Week) (mealplan.WeekView, error)
	FetchSavedRecipes(ctx context.Context, userID string) ([]mealplan.Recipe, error)
	AddEntry(ctx context.Context, userID string, recipeID int64, mealDate calendar.Date, mealType mealplan.MealType) error
	RemoveEntry(ctx context.Context, userID string, entryID int64) error
	UpdateStatus(ctx context.Context, userID string, entryID int64, status mealplan.Status) error
}

// State of a single flow.
type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "idle"
}

// Operation names a mutation flow.
type Operation string

const (
	OpAdd          Operation = "add"
	OpUpdateStatus Operation = "update-status"
	OpRemove       Operation = "remove"
)

// Outcome describes a resolved flow. Err is nil on success.
type Outcome struct {
	Operation Operation
	EntryID   int64
	RecipeID  int64
	Date      calendar.Date
	MealType  mealplan.MealType
	Status    mealplan.Status
	Err       error
}

// Succeeded reports whether the flow resolved without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Notifier receives every resolved flow.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, outcome Outcome)

func (f NotifierFunc) Notify(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Controller drives the add, status-update and remove flows of one user.
type Controller struct {
	planner  Planner
	userID   string
	notifier Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	selection *mealplan.Recipe
	adding    bool
	updating  map[int64]bool
	removing  map[int64]bool
}

// NewController creates a Controller for userID. A nil notifier discards outcomes.
func NewController(planner Planner, userID string, notifier Notifier, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Outcome) {})
	}
	return &Controller{
		planner:  planner,
		userID:   userID,
		notifier: notifier,
		logger:   logger.With("user_id", userID),
		updating: make(map[int64]bool),
		removing: make(map[int64]bool),
	}
}

// UserID returns the user this controller acts for.
func (c *Controller) UserID() string {
	return c.userID
}

// View returns the grouped entries of week.
func (c *Controller) View(ctx context.Context, week calendar.Week) (mealplan.WeekView, error) {
	return c.planner.WeekView(ctx, c.userID, week)
}

// SavedRecipes returns the user's saved recipe pool.
func (c *Controller) SavedRecipes(ctx context.Context) ([]mealplan.Recipe, error) {
	return c.planner.FetchSavedRecipes(ctx, c.userID)
}

// Select marks recipe as the one the next Add schedules.
func (c *Controller) Select(recipe mealplan.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := recipe
	c.selection = &r
}

// Selection returns the selected recipe, if any.
func (c *Controller) Selection() (mealplan.Recipe, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return mealplan.Recipe{}, false
	}
	return *c.selection, true
}

// ClearSelection drops the selected recipe.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = nil
}

// Add schedules the selected recipe on date in the mealType slot. The selection is cleared
// on success and kept on failure.
func (c *Controller) Add(ctx context.Context, date calendar.Date, mealType mealplan.MealType) error {
	c.mu.Lock()
	if c.adding {
		c.mu.Unlock()
		return ErrInFlight
	}
	if c.selection == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	recipe := *c.selection
	c.adding = true
	c.mu.Unlock()

	err := c.planner.AddEntry(ctx, c.userID, recipe.RecipeID, date, mealType)

	c.mu.Lock()
	c.adding = false
	if err == nil && c.selection != nil && c.selection.RecipeID == recipe.RecipeID {
		c.selection = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("add entry failed", "recipe_id", recipe.RecipeID, "date", date, "meal_type", mealType, "error", err)
	}
	c.notifier.Notify(ctx, Outcome{
		Operation: OpAdd,
		RecipeID:  recipe.RecipeID,
		Date:      date,
		MealType:  mealType,
		Err:       err,
	})
	return err
}

// UpdateStatus moves entryID to status. Only one update per entry runs at a time.
func (c *Controller) UpdateStatus(ctx context.Context, entryID int64, status mealplan.Status) error {
	if !c.begin(c.updating, entryID) {
		return ErrInFlight
	}
	err := c.planner.UpdateStatus(ctx, c.userID, entryID, status)
	c.end(c.updating, entryID)

	if err != nil {
		c.logger.Warn("update status failed", "entry_id", entryID, "status", status, "error", err)
	}
	c.notifier.Notify(ctx, Outcome{
		Operation: OpUpdateStatus,
		EntryID:   entryID,
		Status:    status,
		Err:       err,
	})
	return err
}

// Remove deletes entryID. Only one removal per entry runs at a time.
func (c *Controller) Remove(ctx context.Context, entryID int64) error {
	if !c.begin(c.removing, entryID) {
		return ErrInFlight
	}
	err := c.planner.RemoveEntry(ctx, c.userID, entryID)
	c.end(c.removing, entryID)

	if err != nil {
		c.logger.Warn("remove entry failed", "entry_id", entryID, "error", err)
	}
	c.notifier.Notify(ctx, Outcome{
		Operation: OpRemove,
		EntryID:   entryID,
		Err:       err,
	})
	return err
}

// AddState reports whether an add is submitting.
func (c *Controller) AddState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adding {
		return Submitting
	}
	return Idle
}

// StatusState reports whether a status update of entryID is submitting.
func (c *Controller) StatusState(entryID int64) State {
	return c.state(c.updating, entryID)
}

// RemoveState reports whether a removal of entryID is submitting.
func (c *Controller) RemoveState(entryID int64) State {
	return c.state(c.removing, entryID)
}

func (c *Controller) begin(inFlight map[int64]bool, entryID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inFlight[entryID] {
		return false
	}
	inFlight[entryID] = true
	return true
}

func (c *Controller) end(inFlight map[int64]bool, entryID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(inFlight, entryID)
}

func (c *Controller) state(inFlight map[int64]bool, entryID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inFlight[entryID] {
		return Submitting
	}
	return Idle
}
