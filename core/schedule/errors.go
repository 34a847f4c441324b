package schedule

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("schedule not found")
)

type (
	// MissingFieldsError lists the required fields absent from a request, by JSON name.
	MissingFieldsError struct {
		Fields []string
	}

	// InvalidWeekdayError is returned when a module's weekday is not one of the configured labels.
	InvalidWeekdayError struct {
		Position int
		Value    string
	}

	// MalformedTimeError is returned for a start time that is not a valid "HH:MM".
	// Position is the 1-based module position, 0 when the text was not part of a module.
	MalformedTimeError struct {
		Position int
		Value    string
	}

	DurationOutOfRangeError struct {
		Position int
		Value    int
	}

	// OverlappingModulesError is returned when two modules of the same request
	// overlap each other on the same weekday.
	OverlappingModulesError struct {
		First  int
		Second int
	}

	// ConflictError carries every double-booking found for the teacher.
	ConflictError struct {
		Conflicts []Conflict
	}

	// ReferenceNotFoundError is returned when the teacher, subject or level does not exist.
	ReferenceNotFoundError struct {
		Reference string // teacher, subject or level
		ID        int
	}

	// DataUnavailableError is returned when the data needed for a decision could not be read.
	DataUnavailableError struct {
		Err error
	}

	// PersistenceError is returned when the atomic write failed and was rolled back.
	PersistenceError struct {
		Err error
	}
)

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *InvalidWeekdayError) Error() string {
	return fmt.Sprintf("module %d: invalid weekday %q", e.Position, e.Value)
}

func (e *MalformedTimeError) Error() string {
	if e.Position == 0 {
		return fmt.Sprintf("malformed time of day %q, expected HH:MM", e.Value)
	}
	return fmt.Sprintf("module %d: malformed start time %q, expected HH:MM", e.Position, e.Value)
}

func (e *DurationOutOfRangeError) Error() string {
	return fmt.Sprintf(
		"module %d: duration must be between %d and %d minutes, got %d",
		e.Position, MinDuration, MaxDuration, e.Value,
	)
}

func (e *OverlappingModulesError) Error() string {
	return fmt.Sprintf("modules %d and %d overlap each other", e.First, e.Second)
}

func (e *ConflictError) Error() string {
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.String())
	}
	return fmt.Sprintf("%d scheduling conflict(s): %s", len(e.Conflicts), strings.Join(msgs, "; "))
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Reference, e.ID)
}

func (e *DataUnavailableError) Error() string {
	return "data unavailable: " + e.Err.Error()
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *PersistenceError) Error() string {
	return "could not save schedule: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsEngineError reports whether err (or its cause) is one of the errors the
// scheduling engine reports to callers as-is.
func IsEngineError(err error) bool {
	switch errors.Cause(err).(type) {
	case *MissingFieldsError, *InvalidWeekdayError, *MalformedTimeError, *DurationOutOfRangeError,
		*OverlappingModulesError, *ConflictError, *ReferenceNotFoundError,
		*DataUnavailableError, *PersistenceError:
		return true
	}
	return errors.Cause(err) == ErrNotFound
}
