package schedule

import (
	"time"

	"github.com/trezcool/horarios/core"
)

// RoleLead is the role given to a schedule's own teacher on every module it creates.
const RoleLead = "titular"

// Module duration bounds, in minutes (inclusive).
const (
	MinDuration = 30
	MaxDuration = 240
)

// Events published after a committed change.
const (
	EventScheduleCreated = "schedule.created"
	EventScheduleUpdated = "schedule.updated"
	EventScheduleDeleted = "schedule.deleted"
)

// Schedule is a recurring weekly teaching assignment of one teacher to one subject and level.
type Schedule struct {
	ID             int       `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	TeacherID      int       `json:"teacher_id" db:"teacher_id"`
	SubjectID      int       `json:"subject_id" db:"subject_id"`
	LevelID        int       `json:"level_id" db:"level_id"`
	FirstClassDate time.Time `json:"first_class_date" db:"first_class_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC

	// display names of the references, filled on reads
	TeacherName string `json:"teacher_name,omitempty" db:"teacher_name"`
	SubjectName string `json:"subject_name,omitempty" db:"subject_name"`
	LevelName   string `json:"level_name,omitempty" db:"level_name"`

	Modules []Module `json:"modules" db:"-"` // ordered by Position
}

// Module is one weekly time slot of a Schedule.
type Module struct {
	ID         int    `json:"id" db:"id"`
	ScheduleID int    `json:"schedule_id" db:"schedule_id"`
	Weekday    string `json:"weekday" db:"weekday"`
	StartTime  string `json:"start_time" db:"start_time"` // HH:MM
	Duration   int    `json:"duration" db:"duration"`     // minutes
	Position   int    `json:"position" db:"position"`     // 1-based, dense within the schedule

	Roles []RoleAssignment `json:"roles" db:"-"`
}

func (m Module) Interval() (Interval, error) {
	return NewInterval(m.StartTime, m.Duration)
}

// RoleAssignment binds a teacher to a Module with a role.
type RoleAssignment struct {
	ID        int    `json:"id" db:"id"`
	ModuleID  int    `json:"module_id" db:"module_id"`
	TeacherID int    `json:"teacher_id" db:"teacher_id"`
	Role      string `json:"role" db:"role"`
}

// ProposedModule is a requested weekly slot, not yet persisted.
type ProposedModule struct {
	Weekday   string `json:"weekday" validate:"required,notblank,weekday"`
	StartTime string `json:"start_time" validate:"required,notblank"`
	Duration  int    `json:"duration" validate:"required"`
}

func (pm ProposedModule) Interval() (Interval, error) {
	return NewInterval(pm.StartTime, pm.Duration)
}

// NewSchedule contains information needed to create (or fully replace) a Schedule.
type NewSchedule struct {
	Name           string           `json:"name" validate:"required"`
	TeacherID      int              `json:"teacher_id" validate:"required"`
	SubjectID      int              `json:"subject_id" validate:"required"`
	LevelID        int              `json:"level_id" validate:"required"`
	FirstClassDate time.Time        `json:"first_class_date" validate:"required"`
	Modules        []ProposedModule `json:"modules" validate:"required,min=1"`
}

func (ns *NewSchedule) clean() {
	ns.Name = core.CleanString(ns.Name)
	if !ns.FirstClassDate.IsZero() {
		y, m, d := ns.FirstClassDate.Date()
		ns.FirstClassDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	ns.Modules = append([]ProposedModule(nil), ns.Modules...)
	for i := range ns.Modules {
		ns.Modules[i].Weekday = core.CleanString(ns.Modules[i].Weekday)
		ns.Modules[i].StartTime = core.CleanString(ns.Modules[i].StartTime)
	}
}

// QueryFilter applies AND on its non-zero fields.
type QueryFilter struct {
	TeacherID int `query:"teacher_id"`
	SubjectID int `query:"subject_id"`
	LevelID   int `query:"level_id"`
}

func (qf QueryFilter) Match(sch Schedule) bool {
	return (qf.TeacherID == 0 || sch.TeacherID == qf.TeacherID) &&
		(qf.SubjectID == 0 || sch.SubjectID == qf.SubjectID) &&
		(qf.LevelID == 0 || sch.LevelID == qf.LevelID)
}
