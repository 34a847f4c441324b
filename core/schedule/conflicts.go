package schedule

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Conflict is an existing module of the teacher that a proposed module would overlap.
type Conflict struct {
	ScheduleID       int    `json:"schedule_id"`
	ScheduleName     string `json:"schedule_name"`
	SubjectName      string `json:"subject_name"`
	LevelName        string `json:"level_name"`
	Weekday          string `json:"weekday"`
	StartTime        string `json:"start_time"` // of the existing module
	EndTime          string `json:"end_time"`   // of the existing module
	ProposedPosition int    `json:"proposed_position"`
}

func (c Conflict) String() string {
	return fmt.Sprintf(
		"module %d clashes with %q (%s - %s) on %s from %s to %s",
		c.ProposedPosition, c.ScheduleName, c.SubjectName, c.LevelName, c.Weekday, c.StartTime, c.EndTime,
	)
}

// ScheduleSetReader loads a teacher's schedules with their modules and display names,
// leaving out excludedScheduleID (0 excludes nothing).
type ScheduleSetReader interface {
	TeacherSchedules(ctx context.Context, teacherID, excludedScheduleID int) ([]Schedule, error)
}

// DetectConflicts lists every existing module of the teacher overlapping one of the
// proposed modules on the same weekday. Results are ordered by proposed module, then
// existing schedule, then existing module position. Modules must already be valid.
func DetectConflicts(
	ctx context.Context,
	reader ScheduleSetReader,
	teacherID int,
	modules []ProposedModule,
	excludedScheduleID int,
) ([]Conflict, error) {
	existing, err := reader.TeacherSchedules(ctx, teacherID, excludedScheduleID)
	if err != nil {
		return nil, &DataUnavailableError{Err: errors.Wrapf(err, "loading schedules of teacher %d", teacherID)}
	}

	var conflicts []Conflict
	for i, pm := range modules {
		proposed, err := pm.Interval()
		if err != nil {
			return nil, errors.Wrapf(err, "module %d", i+1)
		}

		for _, sch := range existing {
			if excludedScheduleID != 0 && sch.ID == excludedScheduleID {
				continue
			}
			for _, mod := range sch.Modules {
				if mod.Weekday != pm.Weekday {
					continue
				}
				current, err := mod.Interval()
				if err != nil {
					// stored data we cannot read is treated like missing data
					return nil, &DataUnavailableError{
						Err: errors.Wrapf(err, "schedule %d module %d", sch.ID, mod.Position),
					}
				}
				if proposed.Overlaps(current) {
					conflicts = append(conflicts, Conflict{
						ScheduleID:       sch.ID,
						ScheduleName:     sch.Name,
						SubjectName:      sch.SubjectName,
						LevelName:        sch.LevelName,
						Weekday:          mod.Weekday,
						StartTime:        current.StartTime(),
						EndTime:          current.EndTime(),
						ProposedPosition: i + 1,
					})
				}
			}
		}
	}
	return conflicts, nil
}
