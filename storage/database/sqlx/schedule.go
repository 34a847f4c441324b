package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/horarios/core/schedule"
)

// teacherLockNamespace is the first key of the per-teacher advisory locks.
const teacherLockNamespace = 7401

const selectSchedules = `
SELECT s.id, s.name, s.teacher_id, s.subject_id, s.level_id, s.first_class_date, s.created_at, s.updated_at,
       t.name AS teacher_name, sb.name AS subject_name, l.name AS level_name
FROM schedule s
JOIN teacher t ON t.id = s.teacher_id
JOIN subject sb ON sb.id = s.subject_id
JOIN level l ON l.id = s.level_id`

const selectModules = `
SELECT m.id, m.schedule_id, m.weekday, m.start_time, m.duration, m.position,
       r.id AS role_id, r.teacher_id AS role_teacher_id, r.role AS role
FROM schedule_module m
LEFT JOIN schedule_module_teacher r ON r.module_id = m.id
WHERE m.schedule_id IN (?)
ORDER BY m.schedule_id, m.position, r.id`

type (
	scheduleRepository struct {
		db *sqlx.DB
		scheduleQueries
	}

	scheduleTx struct {
		scheduleQueries
	}

	// scheduleQueries runs on the DB or inside a transaction.
	scheduleQueries struct {
		ext sqlx.ExtContext
	}

	// moduleRow is a module joined with one of its (possibly missing) role assignments.
	moduleRow struct {
		schedule.Module
		RoleID        null.Int    `db:"role_id"`
		RoleTeacherID null.Int    `db:"role_teacher_id"`
		Role          null.String `db:"role"`
	}
)

var (
	_ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check
	_ schedule.Tx         = (*scheduleTx)(nil)
)

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db, scheduleQueries: scheduleQueries{ext: db}}
}

// trapNoRowsErr maps psql "no rows" err to schedule.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return schedule.ErrNotFound
	}
	return trapPQErr(err, msg)
}

// trapPQErr names the violated constraint, if any.
func trapPQErr(err error, msg string) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint != "" {
		return errors.Wrapf(err, "%s (%s on %s)", msg, pqErr.Code.Name(), pqErr.Constraint)
	}
	return errors.Wrap(err, msg)
}

func (repo *scheduleRepository) QuerySchedules(
	ctx context.Context,
	filter schedule.QueryFilter,
) ([]schedule.Schedule, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.TeacherID != 0 {
		where = append(where, "s.teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != 0 {
		where = append(where, "s.subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.LevelID != 0 {
		where = append(where, "s.level_id = ?")
		args = append(args, filter.LevelID)
	}

	q := selectSchedules
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY s.created_at DESC, s.id DESC"
	return repo.querySchedules(ctx, repo.db.Rebind(q), args...)
}

// RunInTx takes a transaction-scoped advisory lock on the teacher before running fn,
// so conflict checks and writes for one teacher never interleave.
func (repo *scheduleRepository) RunInTx(
	ctx context.Context,
	teacherID int,
	fn func(tx schedule.Tx) error,
) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, $2)", teacherLockNamespace, teacherID); err != nil {
		return errors.Wrapf(err, "locking teacher %d", teacherID)
	}
	if err = fn(&scheduleTx{scheduleQueries{ext: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (q scheduleQueries) TeacherSchedules(
	ctx context.Context,
	teacherID, excludedScheduleID int,
) ([]schedule.Schedule, error) {
	query := selectSchedules + "\nWHERE s.teacher_id = $1 AND s.id <> $2\nORDER BY s.id"
	return q.querySchedules(ctx, query, teacherID, excludedScheduleID)
}

func (q scheduleQueries) GetSchedule(ctx context.Context, id int) (schedule.Schedule, error) {
	var sch schedule.Schedule
	if err := sqlx.GetContext(ctx, q.ext, &sch, selectSchedules+"\nWHERE s.id = $1", id); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, "selecting schedule")
	}
	schedules := []schedule.Schedule{sch}
	if err := q.loadModules(ctx, schedules); err != nil {
		return schedule.Schedule{}, err
	}
	return schedules[0], nil
}

func (q scheduleQueries) querySchedules(ctx context.Context, query string, args ...interface{}) ([]schedule.Schedule, error) {
	schedules := make([]schedule.Schedule, 0)
	if err := sqlx.SelectContext(ctx, q.ext, &schedules, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting schedules")
	}
	if err := q.loadModules(ctx, schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// loadModules attaches modules, ordered by position, and their role assignments.
func (q scheduleQueries) loadModules(ctx context.Context, schedules []schedule.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	ids := make([]int, 0, len(schedules))
	index := make(map[int]int, len(schedules))
	for i := range schedules {
		schedules[i].Modules = make([]schedule.Module, 0)
		ids = append(ids, schedules[i].ID)
		index[schedules[i].ID] = i
	}

	query, args, err := sqlx.In(selectModules, ids)
	if err != nil {
		return errors.Wrap(err, "building modules query")
	}
	var rows []moduleRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "selecting modules")
	}

	for _, row := range rows {
		sch := &schedules[index[row.ScheduleID]]
		// rows come ordered by module, then role
		if n := len(sch.Modules); n == 0 || sch.Modules[n-1].ID != row.ID {
			mod := row.Module
			mod.Roles = make([]schedule.RoleAssignment, 0, 1)
			sch.Modules = append(sch.Modules, mod)
		}
		if row.RoleID.Valid {
			mod := &sch.Modules[len(sch.Modules)-1]
			mod.Roles = append(mod.Roles, schedule.RoleAssignment{
				ID:        row.RoleID.Int,
				ModuleID:  row.ID,
				TeacherID: row.RoleTeacherID.Int,
				Role:      row.Role.String,
			})
		}
	}
	return nil
}

func (q scheduleQueries) CreateSchedule(ctx context.Context, sch schedule.Schedule) (schedule.Schedule, error) {
	query, args, err := q.ext.BindNamed(`
INSERT INTO schedule (name, teacher_id, subject_id, level_id, first_class_date, created_at, updated_at)
VALUES (:name, :teacher_id, :subject_id, :level_id, :first_class_date, :created_at, :updated_at)
RETURNING id`, sch)
	if err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "binding schedule")
	}
	if err := sqlx.GetContext(ctx, q.ext, &sch.ID, query, args...); err != nil {
		return schedule.Schedule{}, trapPQErr(err, "inserting schedule")
	}
	sch.Modules = nil
	return sch, nil
}

func (q scheduleQueries) UpdateSchedule(ctx context.Context, sch schedule.Schedule) (schedule.Schedule, error) {
	query, args, err := q.ext.BindNamed(`
UPDATE schedule
SET name = :name, teacher_id = :teacher_id, subject_id = :subject_id, level_id = :level_id,
    first_class_date = :first_class_date, updated_at = :updated_at
WHERE id = :id
RETURNING created_at`, sch)
	if err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "binding schedule")
	}
	if err := sqlx.GetContext(ctx, q.ext, &sch.CreatedAt, query, args...); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, "updating schedule")
	}
	sch.Modules = nil
	return sch, nil
}

func (q scheduleQueries) DeleteSchedule(ctx context.Context, id int) error {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM schedule WHERE id = $1", id)
	if err != nil {
		return trapPQErr(err, "deleting schedule")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (q scheduleQueries) CreateModule(ctx context.Context, mod schedule.Module) (schedule.Module, error) {
	query, args, err := q.ext.BindNamed(`
INSERT INTO schedule_module (schedule_id, weekday, start_time, duration, position)
VALUES (:schedule_id, :weekday, :start_time, :duration, :position)
RETURNING id`, mod)
	if err != nil {
		return schedule.Module{}, errors.Wrap(err, "binding module")
	}
	if err := sqlx.GetContext(ctx, q.ext, &mod.ID, query, args...); err != nil {
		return schedule.Module{}, trapPQErr(err, "inserting module")
	}
	mod.Roles = nil
	return mod, nil
}

func (q scheduleQueries) DeleteModules(ctx context.Context, scheduleID int) error {
	if _, err := q.ext.ExecContext(ctx, "DELETE FROM schedule_module WHERE schedule_id = $1", scheduleID); err != nil {
		return trapPQErr(err, "deleting modules")
	}
	return nil
}

func (q scheduleQueries) CreateRoleAssignment(
	ctx context.Context,
	ra schedule.RoleAssignment,
) (schedule.RoleAssignment, error) {
	query, args, err := q.ext.BindNamed(`
INSERT INTO schedule_module_teacher (module_id, teacher_id, role)
VALUES (:module_id, :teacher_id, :role)
RETURNING id`, ra)
	if err != nil {
		return schedule.RoleAssignment{}, errors.Wrap(err, "binding role assignment")
	}
	if err := sqlx.GetContext(ctx, q.ext, &ra.ID, query, args...); err != nil {
		return schedule.RoleAssignment{}, trapPQErr(err, "inserting role assignment")
	}
	return ra, nil
}
