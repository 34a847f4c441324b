package dummydb

import (
	"sync"

	"github.com/trezcool/horarios/core/catalog"
	"github.com/trezcool/horarios/core/schedule"
)

type (
	// DB is an in-memory database. Writes made in RunInTx are serialized by the
	// write lock and undone from a snapshot when the transaction fails.
	DB struct {
		sync.RWMutex
		tables
	}

	tables struct {
		teacher  map[int]catalog.Teacher
		subject  map[int]catalog.Subject
		level    map[int]catalog.Level
		schedule map[int]schedule.Schedule
		module   map[int]schedule.Module
		role     map[int]schedule.RoleAssignment
		pkCount  map[string]int
	}
)

func Open() (*DB, error) {
	return &DB{tables: newTables()}, nil
}

func newTables() tables {
	return tables{
		teacher:  make(map[int]catalog.Teacher),
		subject:  make(map[int]catalog.Subject),
		level:    make(map[int]catalog.Level),
		schedule: make(map[int]schedule.Schedule),
		module:   make(map[int]schedule.Module),
		role:     make(map[int]schedule.RoleAssignment),
		pkCount:  make(map[string]int),
	}
}

func (t *tables) nextID(table string) int {
	t.pkCount[table]++
	return t.pkCount[table]
}

// snapshot copies every table. Rows are values, so a shallow map copy is enough.
func (t *tables) snapshot() tables {
	cp := newTables()
	for k, v := range t.teacher {
		cp.teacher[k] = v
	}
	for k, v := range t.subject {
		cp.subject[k] = v
	}
	for k, v := range t.level {
		cp.level[k] = v
	}
	for k, v := range t.schedule {
		cp.schedule[k] = v
	}
	for k, v := range t.module {
		cp.module[k] = v
	}
	for k, v := range t.role {
		cp.role[k] = v
	}
	for k, v := range t.pkCount {
		cp.pkCount[k] = v
	}
	return cp
}

// Counts returns the number of rows per table, for tests.
func (db *DB) Counts() map[string]int {
	db.RLock()
	defer db.RUnlock()
	return map[string]int{
		"teacher":                 len(db.teacher),
		"subject":                 len(db.subject),
		"level":                   len(db.level),
		"schedule":                len(db.schedule),
		"schedule_module":         len(db.module),
		"schedule_module_teacher": len(db.role),
	}
}
