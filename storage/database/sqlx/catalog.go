package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core/catalog"
)

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) get(ctx context.Context, dest interface{}, table string, id int, notFound error) error {
	// table names are constants of this file
	err := repo.db.GetContext(ctx, dest, "SELECT id, name FROM "+table+" WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrapf(err, "selecting %s", table)
}

func (repo *catalogRepository) create(ctx context.Context, dest interface{}, table, name string) error {
	err := repo.db.GetContext(ctx, dest, "INSERT INTO "+table+" (name) VALUES ($1) RETURNING id, name", name)
	return errors.Wrapf(err, "inserting %s", table)
}

func (repo *catalogRepository) GetTeacher(ctx context.Context, id int) (catalog.Teacher, error) {
	var t catalog.Teacher
	err := repo.get(ctx, &t, "teacher", id, catalog.ErrTeacherNotFound)
	return t, err
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id int) (catalog.Subject, error) {
	var s catalog.Subject
	err := repo.get(ctx, &s, "subject", id, catalog.ErrSubjectNotFound)
	return s, err
}

func (repo *catalogRepository) GetLevel(ctx context.Context, id int) (catalog.Level, error) {
	var l catalog.Level
	err := repo.get(ctx, &l, "level", id, catalog.ErrLevelNotFound)
	return l, err
}

func (repo *catalogRepository) CreateTeacher(ctx context.Context, name string) (catalog.Teacher, error) {
	var t catalog.Teacher
	err := repo.create(ctx, &t, "teacher", name)
	return t, err
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, name string) (catalog.Subject, error) {
	var s catalog.Subject
	err := repo.create(ctx, &s, "subject", name)
	return s, err
}

func (repo *catalogRepository) CreateLevel(ctx context.Context, name string) (catalog.Level, error) {
	var l catalog.Level
	err := repo.create(ctx, &l, "level", name)
	return l, err
}
