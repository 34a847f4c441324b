package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/catalog"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		ScheduleSetReader
		GetSchedule(ctx context.Context, id int) (Schedule, error)
		// QuerySchedules applies AND operation on available QueryFilter fields, newest first.
		QuerySchedules(ctx context.Context, filter QueryFilter) ([]Schedule, error)
		// RunInTx runs fn in a single transaction holding the store-level lock of teacherID.
		// Every write made through tx is rolled back when fn returns an error.
		RunInTx(ctx context.Context, teacherID int, fn func(tx Tx) error) error
	}

	// Tx is the transactional view of the Repository.
	Tx interface {
		ScheduleSetReader
		GetSchedule(ctx context.Context, id int) (Schedule, error)
		CreateSchedule(ctx context.Context, sch Schedule) (Schedule, error)
		UpdateSchedule(ctx context.Context, sch Schedule) (Schedule, error)
		// DeleteSchedule deletes the schedule with its modules and their role assignments.
		DeleteSchedule(ctx context.Context, id int) error
		CreateModule(ctx context.Context, mod Module) (Module, error)
		// DeleteModules deletes every module of the schedule with their role assignments.
		DeleteModules(ctx context.Context, scheduleID int) error
		CreateRoleAssignment(ctx context.Context, ra RoleAssignment) (RoleAssignment, error)
	}

	// Locker serializes work on a key across concurrent callers.
	Locker interface {
		Lock(ctx context.Context, key string) (release func() error, err error)
	}

	Deps struct {
		Repo      Repository
		Catalog   catalog.Reader
		Locker    Locker
		Publisher core.EventPublisher // optional
		Logger    core.Logger
		Weekdays  []string // accepted weekday labels, any when empty
	}

	Service struct {
		repo      Repository
		catalog   catalog.Reader
		locker    Locker
		publisher core.EventPublisher
		log       core.Logger
		validate  *validator.Validate
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		log:       deps.Logger,
		validate:  NewValidator(deps.Weekdays),
	}
}

func teacherLockKey(teacherID int) string {
	return fmt.Sprintf("teacher:%d", teacherID)
}

// Create validates, checks and persists a new schedule with its modules and the lead
// role assignment of each module, all or nothing.
func (svc *Service) Create(ctx context.Context, ns NewSchedule) (Schedule, error) {
	ns.clean()
	if err := svc.validateSchedule(ns); err != nil {
		return Schedule{}, err
	}

	var created Schedule
	err := svc.withTeacherLock(ctx, ns.TeacherID, func() error {
		if err := svc.checkConflicts(ctx, svc.repo, ns.TeacherID, ns.Modules, 0); err != nil {
			return err
		}
		if err := svc.checkReferences(ctx, ns); err != nil {
			return err
		}

		return svc.repo.RunInTx(ctx, ns.TeacherID, func(tx Tx) error {
			if err := svc.checkConflicts(ctx, tx, ns.TeacherID, ns.Modules, 0); err != nil {
				return err
			}

			now := nowFunc().UTC()
			sch, err := tx.CreateSchedule(ctx, Schedule{
				Name:           ns.Name,
				TeacherID:      ns.TeacherID,
				SubjectID:      ns.SubjectID,
				LevelID:        ns.LevelID,
				FirstClassDate: ns.FirstClassDate,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			if err != nil {
				return errors.Wrap(err, "inserting schedule")
			}
			if err := createModules(ctx, tx, sch.ID, ns.TeacherID, ns.Modules); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			created, err = tx.GetSchedule(ctx, sch.ID)
			return errors.Wrap(err, "reloading schedule")
		})
	})
	if err != nil {
		return Schedule{}, svc.writeError(err)
	}

	svc.log.Info("schedule created", map[string]interface{}{
		"schedule_id": created.ID,
		"teacher_id":  created.TeacherID,
		"modules":     len(created.Modules),
	})
	svc.publish(ctx, EventScheduleCreated, created)
	return created, nil
}

// Update replaces every field and module of an existing schedule, with the same
// checks as Create. The schedule itself is left out of the conflict check.
func (svc *Service) Update(ctx context.Context, id int, ns NewSchedule) (Schedule, error) {
	if _, err := svc.Get(ctx, id); err != nil {
		return Schedule{}, err
	}

	ns.clean()
	if err := svc.validateSchedule(ns); err != nil {
		return Schedule{}, err
	}

	var updated Schedule
	err := svc.withTeacherLock(ctx, ns.TeacherID, func() error {
		if err := svc.checkConflicts(ctx, svc.repo, ns.TeacherID, ns.Modules, id); err != nil {
			return err
		}
		if err := svc.checkReferences(ctx, ns); err != nil {
			return err
		}

		return svc.repo.RunInTx(ctx, ns.TeacherID, func(tx Tx) error {
			current, err := tx.GetSchedule(ctx, id)
			if err != nil {
				return err
			}
			if err := svc.checkConflicts(ctx, tx, ns.TeacherID, ns.Modules, id); err != nil {
				return err
			}

			current.Name = ns.Name
			current.TeacherID = ns.TeacherID
			current.SubjectID = ns.SubjectID
			current.LevelID = ns.LevelID
			current.FirstClassDate = ns.FirstClassDate
			current.UpdatedAt = nowFunc().UTC()
			if _, err := tx.UpdateSchedule(ctx, current); err != nil {
				return errors.Wrap(err, "updating schedule")
			}
			if err := tx.DeleteModules(ctx, id); err != nil {
				return errors.Wrap(err, "deleting modules")
			}
			if err := createModules(ctx, tx, id, ns.TeacherID, ns.Modules); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			updated, err = tx.GetSchedule(ctx, id)
			return errors.Wrap(err, "reloading schedule")
		})
	})
	if err != nil {
		return Schedule{}, svc.writeError(err)
	}

	svc.log.Info("schedule updated", map[string]interface{}{
		"schedule_id": updated.ID,
		"teacher_id":  updated.TeacherID,
		"modules":     len(updated.Modules),
	})
	svc.publish(ctx, EventScheduleUpdated, updated)
	return updated, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Schedule, error) {
	sch, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, &DataUnavailableError{Err: errors.Wrapf(err, "loading schedule %d", id)}
	}
	return sch, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Schedule, error) {
	schedules, err := svc.repo.QuerySchedules(ctx, filter)
	if err != nil {
		return nil, &DataUnavailableError{Err: errors.Wrap(err, "querying schedules")}
	}
	return schedules, nil
}

// Delete removes a schedule with its modules and their role assignments.
func (svc *Service) Delete(ctx context.Context, id int) error {
	sch, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}

	err = svc.withTeacherLock(ctx, sch.TeacherID, func() error {
		return svc.repo.RunInTx(ctx, sch.TeacherID, func(tx Tx) error {
			if err := tx.DeleteSchedule(ctx, id); err != nil {
				return err
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return svc.writeError(err)
	}

	svc.log.Info("schedule deleted", map[string]interface{}{"schedule_id": id, "teacher_id": sch.TeacherID})
	svc.publish(ctx, EventScheduleDeleted, map[string]int{"id": id, "teacher_id": sch.TeacherID})
	return nil
}

// CheckConflicts validates the proposed modules and lists the teacher's existing
// modules they would overlap, leaving out excludedScheduleID (0 excludes nothing).
// Nothing is written.
func (svc *Service) CheckConflicts(
	ctx context.Context,
	teacherID int,
	modules []ProposedModule,
	excludedScheduleID int,
) ([]Conflict, error) {
	ns := NewSchedule{Modules: modules}
	ns.clean()

	var missing []string
	if teacherID == 0 {
		missing = append(missing, "teacher_id")
	}
	if len(ns.Modules) == 0 {
		missing = append(missing, "modules")
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if err := ValidateModules(svc.validate, ns.Modules); err != nil {
		return nil, err
	}
	return DetectConflicts(ctx, svc.repo, teacherID, ns.Modules, excludedScheduleID)
}

// validateSchedule runs the presence and module checks, which need no data access.
func (svc *Service) validateSchedule(ns NewSchedule) error {
	if err := svc.validate.Struct(ns); err != nil {
		return missingFields(err)
	}
	if err := ValidateModules(svc.validate, ns.Modules); err != nil {
		return err
	}
	return CheckBatchOverlap(ns.Modules)
}

func (svc *Service) checkConflicts(
	ctx context.Context,
	reader ScheduleSetReader,
	teacherID int,
	modules []ProposedModule,
	excludedScheduleID int,
) error {
	conflicts, err := DetectConflicts(ctx, reader, teacherID, modules, excludedScheduleID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		svc.log.Warn("schedule conflicts detected", map[string]interface{}{
			"teacher_id": teacherID,
			"conflicts":  len(conflicts),
		})
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// checkReferences looks the teacher, subject and level up, in that order.
func (svc *Service) checkReferences(ctx context.Context, ns NewSchedule) error {
	checks := []struct {
		ref      string
		id       int
		notFound error
		get      func(ctx context.Context, id int) error
	}{
		{"teacher", ns.TeacherID, catalog.ErrTeacherNotFound, func(ctx context.Context, id int) error {
			_, err := svc.catalog.GetTeacher(ctx, id)
			return err
		}},
		{"subject", ns.SubjectID, catalog.ErrSubjectNotFound, func(ctx context.Context, id int) error {
			_, err := svc.catalog.GetSubject(ctx, id)
			return err
		}},
		{"level", ns.LevelID, catalog.ErrLevelNotFound, func(ctx context.Context, id int) error {
			_, err := svc.catalog.GetLevel(ctx, id)
			return err
		}},
	}

	for _, chk := range checks {
		if err := chk.get(ctx, chk.id); err != nil {
			if errors.Cause(err) == chk.notFound {
				return &ReferenceNotFoundError{Reference: chk.ref, ID: chk.id}
			}
			return &DataUnavailableError{Err: errors.Wrapf(err, "loading %s %d", chk.ref, chk.id)}
		}
	}
	return nil
}

func (svc *Service) withTeacherLock(ctx context.Context, teacherID int, fn func() error) error {
	release, err := svc.locker.Lock(ctx, teacherLockKey(teacherID))
	if err != nil {
		return &DataUnavailableError{Err: errors.Wrapf(err, "locking teacher %d", teacherID)}
	}
	defer func() {
		if err := release(); err != nil {
			svc.log.Error("releasing teacher lock", errors.Wrapf(err, "teacher %d", teacherID))
		}
	}()
	return fn()
}

// writeError returns engine errors untouched and reports anything else as a failed write.
func (svc *Service) writeError(err error) error {
	if IsEngineError(err) {
		return errors.Cause(err)
	}
	svc.log.Error("schedule write rolled back", err)
	return &PersistenceError{Err: err}
}

func (svc *Service) publish(ctx context.Context, name string, payload interface{}) {
	if svc.publisher == nil {
		return
	}
	if err := svc.publisher.Publish(ctx, core.NewEvent(name, payload)); err != nil {
		svc.log.Error("publishing "+name, err)
	}
}

func createModules(ctx context.Context, tx Tx, scheduleID, teacherID int, modules []ProposedModule) error {
	for i, pm := range modules {
		iv, err := pm.Interval()
		if err != nil {
			return err
		}
		mod, err := tx.CreateModule(ctx, Module{
			ScheduleID: scheduleID,
			Weekday:    pm.Weekday,
			StartTime:  iv.StartTime(), // canonical HH:MM
			Duration:   pm.Duration,
			Position:   i + 1,
		})
		if err != nil {
			return errors.Wrapf(err, "inserting module %d", i+1)
		}

		_, err = tx.CreateRoleAssignment(ctx, RoleAssignment{
			ModuleID:  mod.ID,
			TeacherID: teacherID,
			Role:      RoleLead,
		})
		if err != nil {
			return errors.Wrapf(err, "assigning teacher to module %d", i+1)
		}
	}
	return nil
}
