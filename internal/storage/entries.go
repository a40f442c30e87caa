package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/database"
	"meal-planner/internal/mealplan"
)

// ErrNotFound is returned when a mutation targets a row that does not exist.
var ErrNotFound = errors.New("record not found")

// EntryRepository is the SQLite table of record for meal plan entries.
type EntryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db, now: time.Now}
}

// ListWeek returns the user's entries dated in [weekStart, weekStart+7) in insertion order.
func (r *EntryRepository) ListWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]mealplan.Entry, error) {
	end := weekStart.AddDays(calendar.DaysPerWeek)
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, user_id, recipe_json, meal_date, meal_type, status
		FROM meal_plan_entries
		WHERE user_id = ? AND meal_date >= ? AND meal_date < ?
		ORDER BY entry_id`,
		userID, weekStart.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list week entries: %w", err)
	}
	defer rows.Close()

	entries := []mealplan.Entry{}
	for rows.Next() {
		var (
			e          mealplan.Entry
			recipeJSON string
			mealDate   string
		)
		if err := rows.Scan(&e.EntryID, &e.UserID, &recipeJSON, &mealDate, &e.MealType, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(recipeJSON), &e.Recipe); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipe JSON for entry %d: %w", e.EntryID, err)
		}
		if e.MealDate, err = calendar.ParseDate(mealDate); err != nil {
			return nil, fmt.Errorf("failed to parse meal date for entry %d: %w", e.EntryID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// Insert stores a new entry with status planned and returns it with its assigned ID.
func (r *EntryRepository) Insert(ctx context.Context, userID string, rec mealplan.Recipe, mealDate calendar.Date, mealType mealplan.MealType) (mealplan.Entry, error) {
	recipeJSON, err := json.Marshal(rec)
	if err != nil {
		return mealplan.Entry{}, fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO meal_plan_entries (user_id, recipe_id, recipe_json, meal_date, meal_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, rec.RecipeID, string(recipeJSON), mealDate.String(), string(mealType),
		string(mealplan.StatusPlanned), r.now().UTC().Format(database.TimestampLayout))
	if err != nil {
		return mealplan.Entry{}, fmt.Errorf("failed to insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mealplan.Entry{}, fmt.Errorf("failed to read entry id: %w", err)
	}

	return mealplan.Entry{
		EntryID:  id,
		UserID:   userID,
		Recipe:   rec,
		MealDate: mealDate,
		MealType: mealType,
		Status:   mealplan.StatusPlanned,
	}, nil
}

// Delete removes an entry. A missing entry is ErrNotFound.
func (r *EntryRepository) Delete(ctx context.Context, userID string, entryID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM meal_plan_entries WHERE user_id = ? AND entry_id = ?", userID, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return requireAffected(res, "entry", entryID)
}

// UpdateStatus sets the status of an entry. A missing entry is ErrNotFound.
func (r *EntryRepository) UpdateStatus(ctx context.Context, userID string, entryID int64, status mealplan.Status) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE meal_plan_entries SET status = ? WHERE user_id = ? AND entry_id = ?", string(status), userID, entryID)
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", err)
	}
	return requireAffected(res, "entry", entryID)
}

func requireAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
