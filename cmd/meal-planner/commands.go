package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"

	"github.com/spf13/cobra"
)

var (
	weekDate    string
	weekOffset  int
	cleanupDays int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the meal plan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Serve(cmd.Context(), cfg, logger)
	},
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show a week of the meal plan",
	Long: `Show the meal plan for the week containing --date (default today),
shifted by --offset weeks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		week, err := selectedWeek()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.PrintWeek(cmd.Context(), cmd.OutOrStdout(), userID, week)
	},
}

var shoppingCmd = &cobra.Command{
	Use:   "shopping",
	Short: "Show the shopping list for a week",
	Long:  `Sum the ingredients of every entry of the week that is not completed yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		week, err := selectedWeek()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.PrintShoppingList(cmd.Context(), cmd.OutOrStdout(), userID, week)
	},
}

// selectedWeek resolves the --date and --offset flags.
func selectedWeek() (calendar.Week, error) {
	week := calendar.CurrentWeek(time.Now())
	if weekDate != "" {
		w, err := calendar.ParseWeekKey(weekDate)
		if err != nil {
			return calendar.Week{}, err
		}
		week = w
	}
	return calendar.WeekOf(week.Start.AddDays(weekOffset * calendar.DaysPerWeek)), nil
}

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List saved recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.PrintSavedRecipes(cmd.Context(), cmd.OutOrStdout(), userID)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <recipeId> <YYYY-MM-DD> <mealType>",
	Short: "Schedule a saved recipe",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipeID, err := parseID("recipe", args[0])
		if err != nil {
			return err
		}
		date, err := calendar.ParseDate(args[1])
		if err != nil {
			return err
		}
		mealType, err := mealplan.ParseMealType(args[2])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl := a.Controller(userID, cmd.OutOrStdout())
		if err := a.SelectSaved(cmd.Context(), ctrl, recipeID); err != nil {
			return err
		}
		return ctrl.Add(cmd.Context(), date, mealType)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <entryId> <planned|in progress|completed>",
	Short: "Change the status of an entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryID, err := parseID("entry", args[0])
		if err != nil {
			return err
		}
		status, err := mealplan.ParseStatus(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Controller(userID, cmd.OutOrStdout()).UpdateStatus(cmd.Context(), entryID, status)
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <entryId>",
	Short:   "Delete an entry",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryID, err := parseID("entry", args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Controller(userID, cmd.OutOrStdout()).Remove(cmd.Context(), entryID)
	},
}

var unsaveCmd = &cobra.Command{
	Use:   "unsave <recipeId>",
	Short: "Remove a recipe from the saved pool",
	Long:  `Remove a recipe from the saved pool. Entries already scheduled keep their recipe snapshot.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipeID, err := parseID("recipe", args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Client().RemoveSavedRecipe(cmd.Context(), userID, recipeID); err != nil {
			return fmt.Errorf("failed to remove saved recipe %d: %w", recipeID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed recipe #%d from the saved recipes.\n", recipeID)
		return nil
	},
}

var importRecipesCmd = &cobra.Command{
	Use:   "import-recipes <dir>",
	Short: "Save every recipe JSON file in dir to the saved pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.ImportRecipes(cmd.Context(), args[0], userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes (%d already saved, %d failed, %d invalid files).\n",
			result.Imported, result.Existing, result.Failed, len(result.Skipped))
		return nil
	},
}

var exportRecipesCmd = &cobra.Command{
	Use:   "export-recipes <dir>",
	Short: "Write the saved pool to dir as JSON files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ExportRecipes(cmd.Context(), args[0], userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d recipes to %s.\n", n, args[0])
		return nil
	},
}

var metricsCleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Remove old request metric records",
	RunE: func(cmd *cobra.Command, args []string) error {
		affected, err := app.CleanupMetrics(cmd.Context(), cfg, cleanupDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{weekCmd, shoppingCmd} {
		cmd.Flags().StringVar(&weekDate, "date", "", "any date of the week to show (YYYY-MM-DD)")
		cmd.Flags().IntVar(&weekOffset, "offset", 0, "weeks to move from --date, negative for the past")
	}
	metricsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "keep records for the last N days")
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}
