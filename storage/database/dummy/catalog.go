package dummydb

import (
	"context"

	"github.com/trezcool/horarios/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) GetTeacher(ctx context.Context, id int) (catalog.Teacher, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Teacher{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()
	if t, ok := repo.db.teacher[id]; ok {
		return t, nil
	}
	return catalog.Teacher{}, catalog.ErrTeacherNotFound
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id int) (catalog.Subject, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Subject{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.subject[id]; ok {
		return s, nil
	}
	return catalog.Subject{}, catalog.ErrSubjectNotFound
}

func (repo *catalogRepository) GetLevel(ctx context.Context, id int) (catalog.Level, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Level{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()
	if l, ok := repo.db.level[id]; ok {
		return l, nil
	}
	return catalog.Level{}, catalog.ErrLevelNotFound
}

func (repo *catalogRepository) CreateTeacher(ctx context.Context, name string) (catalog.Teacher, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Teacher{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()
	t := catalog.Teacher{ID: repo.db.nextID("teacher"), Name: name}
	repo.db.teacher[t.ID] = t
	return t, nil
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, name string) (catalog.Subject, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Subject{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()
	s := catalog.Subject{ID: repo.db.nextID("subject"), Name: name}
	repo.db.subject[s.ID] = s
	return s, nil
}

func (repo *catalogRepository) CreateLevel(ctx context.Context, name string) (catalog.Level, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Level{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()
	l := catalog.Level{ID: repo.db.nextID("level"), Name: name}
	repo.db.level[l.ID] = l
	return l, nil
}
