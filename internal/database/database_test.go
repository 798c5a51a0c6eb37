package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/database/dbtest"
)

func TestMigrate_CreatesTables(t *testing.T) {
	db := dbtest.New(t)

	tables := []string{"users", "subjects", "topics", "questions", "attempts", "user_progress", "user_stats"}
	for _, table := range tables {
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO subjects (id, name, created_at) VALUES (?, ?, ?)`), "s1", "Math", 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM subjects`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d subjects", n)
	}
}

func TestInTx_RetriesConflicts(t *testing.T) {
	db := dbtest.New(t)

	calls := 0
	err := db.InTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		if calls < 3 {
			return apperr.TxConflict(fmt.Errorf("simulated"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestInTx_SurfacesConflictAfterMaxAttempts(t *testing.T) {
	db := dbtest.New(t)

	calls := 0
	err := db.InTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return &pq.Error{Code: "40001", Message: "could not serialize access"}
	})
	if !errors.Is(err, apperr.ErrTransactionConflict) {
		t.Fatalf("InTx error = %v, want ErrTransactionConflict", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "40001"}), true},
		{"unique", &pq.Error{Code: "23505"}, false},
		{"plain", errors.New("nope"), false},
	}
	for _, tt := range tests {
		if got := database.IsSerializationFailure(tt.err); got != tt.want {
			t.Errorf("%s: IsSerializationFailure = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := dbtest.New(t)

	insert := `INSERT INTO subjects (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := db.Exec(insert, "s1", "Math", 1); err != nil {
		t.Fatal(err)
	}
	_, err := db.Exec(insert, "s2", "Math", 1)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !database.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if !database.IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("IsUniqueViolation should recognise postgres 23505")
	}
}
