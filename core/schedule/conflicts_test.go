package schedule

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetReader struct {
	schedules []Schedule
	err       error

	gotTeacherID, gotExcludedID int
}

func (r *fakeSetReader) TeacherSchedules(_ context.Context, teacherID, excludedScheduleID int) ([]Schedule, error) {
	r.gotTeacherID, r.gotExcludedID = teacherID, excludedScheduleID
	if r.err != nil {
		return nil, r.err
	}
	var schedules []Schedule
	for _, sch := range r.schedules {
		if sch.ID != excludedScheduleID {
			schedules = append(schedules, sch)
		}
	}
	return schedules, nil
}

func existingSchedules() []Schedule {
	return []Schedule{
		{
			ID: 1, Name: "Álgebra 3A", TeacherID: 7, SubjectName: "Matemáticas", LevelName: "3A",
			Modules: []Module{
				{Weekday: "Lunes", StartTime: "08:00", Duration: 60, Position: 1},
				{Weekday: "Miércoles", StartTime: "10:00", Duration: 90, Position: 2},
			},
		},
		{
			ID: 2, Name: "Geometría 4B", TeacherID: 7, SubjectName: "Matemáticas", LevelName: "4B",
			Modules: []Module{
				{Weekday: "Lunes", StartTime: "08:45", Duration: 45, Position: 1},
				{Weekday: "Viernes", StartTime: "23:00", Duration: 120, Position: 2},
			},
		},
	}
}

func TestDetectConflicts(t *testing.T) {
	tests := []struct {
		name       string
		modules    []ProposedModule
		excludedID int
		want       []Conflict
	}{
		{
			name:    "overlaps existing start",
			modules: []ProposedModule{{Weekday: "Lunes", StartTime: "08:30", Duration: 60}},
			want: []Conflict{
				{ScheduleID: 1, ScheduleName: "Álgebra 3A", SubjectName: "Matemáticas", LevelName: "3A",
					Weekday: "Lunes", StartTime: "08:00", EndTime: "09:00", ProposedPosition: 1},
				{ScheduleID: 2, ScheduleName: "Geometría 4B", SubjectName: "Matemáticas", LevelName: "4B",
					Weekday: "Lunes", StartTime: "08:45", EndTime: "09:30", ProposedPosition: 1},
			},
		},
		{
			name:    "back to back",
			modules: []ProposedModule{{Weekday: "Lunes", StartTime: "09:30", Duration: 60}},
		},
		{
			name:    "ends when existing starts",
			modules: []ProposedModule{{Weekday: "Lunes", StartTime: "07:00", Duration: 60}},
		},
		{
			name:    "same time other weekday",
			modules: []ProposedModule{{Weekday: "Martes", StartTime: "08:00", Duration: 60}},
		},
		{
			name: "proposed module major order",
			modules: []ProposedModule{
				{Weekday: "Miércoles", StartTime: "11:00", Duration: 30},
				{Weekday: "Lunes", StartTime: "08:50", Duration: 30},
			},
			want: []Conflict{
				{ScheduleID: 1, ScheduleName: "Álgebra 3A", SubjectName: "Matemáticas", LevelName: "3A",
					Weekday: "Miércoles", StartTime: "10:00", EndTime: "11:30", ProposedPosition: 1},
				{ScheduleID: 1, ScheduleName: "Álgebra 3A", SubjectName: "Matemáticas", LevelName: "3A",
					Weekday: "Lunes", StartTime: "08:00", EndTime: "09:00", ProposedPosition: 2},
				{ScheduleID: 2, ScheduleName: "Geometría 4B", SubjectName: "Matemáticas", LevelName: "4B",
					Weekday: "Lunes", StartTime: "08:45", EndTime: "09:30", ProposedPosition: 2},
			},
		},
		{
			name:       "excluded schedule",
			modules:    []ProposedModule{{Weekday: "Lunes", StartTime: "08:00", Duration: 30}},
			excludedID: 2,
			want: []Conflict{
				{ScheduleID: 1, ScheduleName: "Álgebra 3A", SubjectName: "Matemáticas", LevelName: "3A",
					Weekday: "Lunes", StartTime: "08:00", EndTime: "09:00", ProposedPosition: 1},
			},
		},
		{
			name:    "existing block past midnight",
			modules: []ProposedModule{{Weekday: "Viernes", StartTime: "23:30", Duration: 30}},
			want: []Conflict{
				{ScheduleID: 2, ScheduleName: "Geometría 4B", SubjectName: "Matemáticas", LevelName: "4B",
					Weekday: "Viernes", StartTime: "23:00", EndTime: "01:00", ProposedPosition: 1},
			},
		},
		{
			name: "batch modules are not compared with each other",
			modules: []ProposedModule{
				{Weekday: "Jueves", StartTime: "08:00", Duration: 60},
				{Weekday: "Jueves", StartTime: "08:00", Duration: 60},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader := &fakeSetReader{schedules: existingSchedules()}
			got, err := DetectConflicts(context.Background(), reader, 7, tc.modules, tc.excludedID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 7, reader.gotTeacherID)
			assert.Equal(t, tc.excludedID, reader.gotExcludedID)
		})
	}
}

func TestDetectConflicts_IgnoresExcludedEvenIfReturned(t *testing.T) {
	reader := &leakyReader{schedules: existingSchedules()}
	got, err := DetectConflicts(context.Background(), reader, 7,
		[]ProposedModule{{Weekday: "Lunes", StartTime: "08:00", Duration: 30}}, 1)
	require.NoError(t, err)
	require.Len(t, got, 0)
}

// leakyReader ignores the exclusion.
type leakyReader struct {
	schedules []Schedule
}

func (r *leakyReader) TeacherSchedules(context.Context, int, int) ([]Schedule, error) {
	// only schedule 1 overlaps 08:00-08:30
	return r.schedules[:1], nil
}

func TestDetectConflicts_FailsClosed(t *testing.T) {
	reader := &fakeSetReader{err: errors.New("connection refused")}
	got, err := DetectConflicts(context.Background(), reader, 7,
		[]ProposedModule{{Weekday: "Lunes", StartTime: "08:00", Duration: 30}}, 0)
	assert.Nil(t, got)

	var due *DataUnavailableError
	require.ErrorAs(t, err, &due)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDetectConflicts_CorruptStoredModule(t *testing.T) {
	schedules := existingSchedules()
	schedules[0].Modules[0].StartTime = "8 o'clock"
	reader := &fakeSetReader{schedules: schedules}

	_, err := DetectConflicts(context.Background(), reader, 7,
		[]ProposedModule{{Weekday: "Lunes", StartTime: "08:00", Duration: 30}}, 0)
	var due *DataUnavailableError
	assert.ErrorAs(t, err, &due)
}
