package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/horarios/core/catalog"
	"github.com/trezcool/horarios/storage/database"
)

// Seed is the reference data most tests start from.
type Seed struct {
	Teacher  catalog.Teacher
	Teacher2 catalog.Teacher
	Subject  catalog.Subject
	Level    catalog.Level
}

func SeedCatalog(t *testing.T, repo catalog.Repository) Seed {
	t.Helper()
	ctx := context.Background()
	var (
		seed Seed
		err  error
	)
	if seed.Teacher, err = repo.CreateTeacher(ctx, "Ana Pérez"); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	if seed.Teacher2, err = repo.CreateTeacher(ctx, "Luis Soto"); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	if seed.Subject, err = repo.CreateSubject(ctx, "Matemáticas"); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	if seed.Level, err = repo.CreateLevel(ctx, "3A"); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	return seed
}

// PrepareDB connects to $TEST_DATABASE_URL and migrates a fresh schema.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.RunMigration(db.DB, "reset"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err := database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}
