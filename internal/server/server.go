// Package server is the meal plan API: the backend of record for entries and saved recipes.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"meal-planner/internal/auth"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"

	"github.com/gin-gonic/gin"
)

// EntryRepository persists meal plan entries.
type EntryRepository interface {
	ListWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]mealplan.Entry, error)
	Insert(ctx context.Context, userID string, rec mealplan.Recipe, mealDate calendar.Date, mealType mealplan.MealType) (mealplan.Entry, error)
	Delete(ctx context.Context, userID string, entryID int64) error
	UpdateStatus(ctx context.Context, userID string, entryID int64, status mealplan.Status) error
}

// SavedRecipeRepository persists each user's saved recipe pool.
type SavedRecipeRepository interface {
	Save(ctx context.Context, userID string, rec mealplan.Recipe) error
	Remove(ctx context.Context, userID string, recipeID int64) error
	Get(ctx context.Context, userID string, recipeID int64) (*mealplan.Recipe, error)
	List(ctx context.Context, userID string) ([]mealplan.Recipe, error)
}

// MetricsStore records and summarizes requests.
type MetricsStore interface {
	Record(ctx context.Context, m metrics.RequestMetric) error
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Options configures New.
type Options struct {
	Addr     string
	Signer   *auth.Signer
	Entries  EntryRepository
	Saved    SavedRecipeRepository
	Metrics  MetricsStore
	DataPath string
	Logger   *slog.Logger
	Debug    bool
}

// Server serves the meal plan API over HTTP.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	signer     *auth.Signer
	entries    EntryRepository
	saved      SavedRecipeRepository
	metrics    MetricsStore
	dataPath   string
	logger     *slog.Logger
}

// New builds the router. Metrics may be nil.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:   gin.New(),
		signer:   opts.Signer,
		entries:  opts.Entries,
		saved:    opts.Saved,
		metrics:  opts.Metrics,
		dataPath: opts.DataPath,
		logger:   opts.Logger,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog())

	s.engine.GET("/health", s.health)

	users := s.engine.Group("/api/users/:userId", s.authenticate(true))
	{
		users.GET("/meal-plan", s.getWeek)
		users.POST("/meal-plan", s.addEntry)
		users.GET("/meal-plan/saved-recipes", s.listSavedRecipes)
		users.DELETE("/meal-plan/:entryId", s.removeEntry)
		users.PATCH("/meal-plan/:entryId", s.updateStatus)

		users.PUT("/saved-recipes/:recipeId", s.saveRecipe)
		users.DELETE("/saved-recipes/:recipeId", s.removeSavedRecipe)
	}

	admin := s.engine.Group("/admin", s.authenticate(false))
	admin.GET("/metrics", s.dailyMetrics)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
