package database

import (
	"path/filepath"
	"testing"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meal-planner.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, table := range []string{"saved_recipes", "meal_plan_entries", "request_metrics"} {
		var name string
		err := db.SQL.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
	db.Close()

	// Reopening an up-to-date database is a no-op migration
	again, err := NewDB(path)
	if err != nil {
		t.Fatalf("Expected reopen to succeed, got %v", err)
	}
	again.Close()
}

func TestStatusConstraint(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer db.Close()

	_, err = db.SQL.Exec(`INSERT INTO meal_plan_entries (user_id, recipe_id, recipe_json, meal_date, meal_type, status, created_at)
		VALUES ('1', 42, '{}', '2024-06-12', 'Dinner', 'burnt', '2024-06-10 09:00:00')`)
	if err == nil {
		t.Fatal("Expected unknown status to be rejected by the schema")
	}
}
