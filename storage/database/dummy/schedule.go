package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core/schedule"
)

type (
	scheduleRepository struct {
		db *DB
	}

	// scheduleTx runs with the DB write lock held.
	scheduleTx struct {
		t *tables
	}
)

var (
	_ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check
	_ schedule.Tx         = (*scheduleTx)(nil)
)

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) TeacherSchedules(
	ctx context.Context,
	teacherID, excludedScheduleID int,
) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.teacherSchedules(teacherID, excludedScheduleID), nil
}

func (repo *scheduleRepository) GetSchedule(ctx context.Context, id int) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.getSchedule(id)
}

func (repo *scheduleRepository) QuerySchedules(
	ctx context.Context,
	filter schedule.QueryFilter,
) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	schedules := repo.db.filterSchedules(filter.Match)
	sort.SliceStable(schedules, func(i, j int) bool {
		if schedules[i].CreatedAt.Equal(schedules[j].CreatedAt) {
			return schedules[i].ID > schedules[j].ID
		}
		return schedules[i].CreatedAt.After(schedules[j].CreatedAt)
	})
	return schedules, nil
}

func (repo *scheduleRepository) RunInTx(
	ctx context.Context,
	teacherID int,
	fn func(tx schedule.Tx) error,
) error {
	// a single write lock covers every teacher
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	backup := repo.db.snapshot()
	err := fn(&scheduleTx{t: &repo.db.tables})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		repo.db.tables = backup
		return err
	}
	return nil
}

func (tx *scheduleTx) TeacherSchedules(
	ctx context.Context,
	teacherID, excludedScheduleID int,
) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tx.t.teacherSchedules(teacherID, excludedScheduleID), nil
}

func (tx *scheduleTx) GetSchedule(ctx context.Context, id int) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	return tx.t.getSchedule(id)
}

func (tx *scheduleTx) CreateSchedule(ctx context.Context, sch schedule.Schedule) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	if err := tx.t.checkReferences(sch); err != nil {
		return schedule.Schedule{}, err
	}
	sch.ID = tx.t.nextID("schedule")
	sch.Modules = nil
	tx.t.schedule[sch.ID] = sch
	return sch, nil
}

func (tx *scheduleTx) UpdateSchedule(ctx context.Context, sch schedule.Schedule) (schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Schedule{}, err
	}
	current, ok := tx.t.schedule[sch.ID]
	if !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	if err := tx.t.checkReferences(sch); err != nil {
		return schedule.Schedule{}, err
	}
	sch.CreatedAt = current.CreatedAt
	sch.Modules = nil
	tx.t.schedule[sch.ID] = sch
	return sch, nil
}

func (tx *scheduleTx) DeleteSchedule(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.t.schedule[id]; !ok {
		return schedule.ErrNotFound
	}
	tx.t.deleteModules(id)
	delete(tx.t.schedule, id)
	return nil
}

func (tx *scheduleTx) CreateModule(ctx context.Context, mod schedule.Module) (schedule.Module, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Module{}, err
	}
	if _, ok := tx.t.schedule[mod.ScheduleID]; !ok {
		return schedule.Module{}, errors.Errorf("schedule %d does not exist", mod.ScheduleID)
	}
	if mod.Duration < schedule.MinDuration || mod.Duration > schedule.MaxDuration {
		return schedule.Module{}, errors.Errorf("duration %d violates module duration check", mod.Duration)
	}
	for _, m := range tx.t.module {
		if m.ScheduleID == mod.ScheduleID && m.Position == mod.Position {
			return schedule.Module{}, errors.Errorf(
				"duplicate position %d for schedule %d", mod.Position, mod.ScheduleID,
			)
		}
	}
	mod.ID = tx.t.nextID("schedule_module")
	mod.Roles = nil
	tx.t.module[mod.ID] = mod
	return mod, nil
}

func (tx *scheduleTx) DeleteModules(ctx context.Context, scheduleID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.t.deleteModules(scheduleID)
	return nil
}

func (tx *scheduleTx) CreateRoleAssignment(
	ctx context.Context,
	ra schedule.RoleAssignment,
) (schedule.RoleAssignment, error) {
	if err := ctx.Err(); err != nil {
		return schedule.RoleAssignment{}, err
	}
	if _, ok := tx.t.module[ra.ModuleID]; !ok {
		return schedule.RoleAssignment{}, errors.Errorf("module %d does not exist", ra.ModuleID)
	}
	if _, ok := tx.t.teacher[ra.TeacherID]; !ok {
		return schedule.RoleAssignment{}, errors.Errorf("teacher %d does not exist", ra.TeacherID)
	}
	for _, r := range tx.t.role {
		if r.ModuleID == ra.ModuleID && r.TeacherID == ra.TeacherID {
			return schedule.RoleAssignment{}, errors.Errorf(
				"teacher %d already assigned to module %d", ra.TeacherID, ra.ModuleID,
			)
		}
	}
	ra.ID = tx.t.nextID("schedule_module_teacher")
	tx.t.role[ra.ID] = ra
	return ra, nil
}

// foreign keys
func (t *tables) checkReferences(sch schedule.Schedule) error {
	if _, ok := t.teacher[sch.TeacherID]; !ok {
		return errors.Errorf("teacher %d does not exist", sch.TeacherID)
	}
	if _, ok := t.subject[sch.SubjectID]; !ok {
		return errors.Errorf("subject %d does not exist", sch.SubjectID)
	}
	if _, ok := t.level[sch.LevelID]; !ok {
		return errors.Errorf("level %d does not exist", sch.LevelID)
	}
	return nil
}

func (t *tables) deleteModules(scheduleID int) {
	for id, mod := range t.module {
		if mod.ScheduleID != scheduleID {
			continue
		}
		for rid, ra := range t.role {
			if ra.ModuleID == id {
				delete(t.role, rid)
			}
		}
		delete(t.module, id)
	}
}

func (t *tables) getSchedule(id int) (schedule.Schedule, error) {
	sch, ok := t.schedule[id]
	if !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	return t.materialize(sch), nil
}

func (t *tables) teacherSchedules(teacherID, excludedScheduleID int) []schedule.Schedule {
	schedules := t.filterSchedules(func(sch schedule.Schedule) bool {
		return sch.TeacherID == teacherID && sch.ID != excludedScheduleID
	})
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	return schedules
}

func (t *tables) filterSchedules(match func(sch schedule.Schedule) bool) []schedule.Schedule {
	schedules := make([]schedule.Schedule, 0)
	for _, sch := range t.schedule {
		if match(sch) {
			schedules = append(schedules, t.materialize(sch))
		}
	}
	return schedules
}

// materialize attaches display names, modules by position and their role assignments.
func (t *tables) materialize(sch schedule.Schedule) schedule.Schedule {
	sch.TeacherName = t.teacher[sch.TeacherID].Name
	sch.SubjectName = t.subject[sch.SubjectID].Name
	sch.LevelName = t.level[sch.LevelID].Name

	sch.Modules = make([]schedule.Module, 0)
	for _, mod := range t.module {
		if mod.ScheduleID != sch.ID {
			continue
		}
		mod.Roles = make([]schedule.RoleAssignment, 0)
		for _, ra := range t.role {
			if ra.ModuleID == mod.ID {
				mod.Roles = append(mod.Roles, ra)
			}
		}
		sort.Slice(mod.Roles, func(i, j int) bool { return mod.Roles[i].ID < mod.Roles[j].ID })
		sch.Modules = append(sch.Modules, mod)
	}
	sort.Slice(sch.Modules, func(i, j int) bool { return sch.Modules[i].Position < sch.Modules[j].Position })
	return sch
}
