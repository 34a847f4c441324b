// Package catalog holds the reference entities a schedule points to.
// They are managed elsewhere; the scheduling engine only reads them.
package catalog

import (
	"context"
	"errors"
)

var (
	// errors
	ErrTeacherNotFound = errors.New("teacher not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrLevelNotFound   = errors.New("level not found")
)

type Teacher struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Subject struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Level struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type (
	// Reader looks up reference entities by ID.
	Reader interface {
		GetTeacher(ctx context.Context, id int) (Teacher, error)
		GetSubject(ctx context.Context, id int) (Subject, error)
		GetLevel(ctx context.Context, id int) (Level, error)
	}

	// Repository adds the writes used to seed reference data from the admin CLI.
	Repository interface {
		Reader

		CreateTeacher(ctx context.Context, name string) (Teacher, error)
		CreateSubject(ctx context.Context, name string) (Subject, error)
		CreateLevel(ctx context.Context, name string) (Level, error)
	}
)
