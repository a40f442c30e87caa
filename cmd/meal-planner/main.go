package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"meal-planner/internal/app"
	"meal-planner/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
	userID string
)

var rootCmd = &cobra.Command{
	Use:   "meal-planner",
	Short: "Meal plan calendar: schedule saved recipes into your week",
	Long: `meal-planner runs the meal plan API and talks to it.

Examples:
  meal-planner serve
  meal-planner week --offset 1
  meal-planner add 42 2024-06-12 dinner
  meal-planner status 7 "in progress"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = app.NewLogger(cfg)
		slog.SetDefault(logger)
		if userID == "" {
			userID = cfg.DefaultUserID
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user to act for (default DEFAULT_USER_ID)")

	rootCmd.AddCommand(serveCmd, weekCmd, shoppingCmd, recipesCmd, unsaveCmd, addCmd, statusCmd, removeCmd,
		importRecipesCmd, exportRecipesCmd, metricsCleanupCmd)
}

// newApp builds the API client side of the application.
func newApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return a, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
