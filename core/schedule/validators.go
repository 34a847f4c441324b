package schedule

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core"
)

var (
	// custom validation tags & texts
	weekdayTag  = "weekday"
	weekdayText = "{0} is not a valid weekday"
)

// NewValidator returns a validator with the global custom validators plus the
// weekday check. An empty weekdays list accepts any label.
func NewValidator(weekdays []string) *validator.Validate {
	validate, translator := core.NewValidator()
	RegisterValidators(validate, translator, weekdays)
	return validate
}

// RegisterValidators registers the schedule custom validators and their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator, weekdays []string) {
	allowed := make(map[string]struct{}, len(weekdays))
	for _, day := range weekdays {
		allowed[day] = struct{}{}
	}
	_ = validate.RegisterValidation(weekdayTag, func(fl validator.FieldLevel) bool {
		if len(allowed) == 0 {
			return true
		}
		day, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, ok = allowed[day]
		return ok
	})
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)
}

// ValidateModule checks a single proposed module. Position is 1-based.
func ValidateModule(validate *validator.Validate, position int, m ProposedModule) error {
	if err := validate.Struct(m); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.Wrap(err, "validating module")
		}

		var missing []string
		var badWeekday bool
		for _, fe := range verrs {
			if fe.Tag() == weekdayTag {
				badWeekday = true
				continue
			}
			missing = append(missing, fmt.Sprintf("modules[%d].%s", position-1, fe.Field()))
		}
		if len(missing) > 0 {
			return &MissingFieldsError{Fields: missing}
		}
		if badWeekday {
			return &InvalidWeekdayError{Position: position, Value: m.Weekday}
		}
	}

	if _, err := ParseTimeOfDay(m.StartTime); err != nil {
		return &MalformedTimeError{Position: position, Value: m.StartTime}
	}
	if m.Duration < MinDuration || m.Duration > MaxDuration {
		return &DurationOutOfRangeError{Position: position, Value: m.Duration}
	}
	return nil
}

// ValidateModules validates modules in input order and stops at the first failure.
func ValidateModules(validate *validator.Validate, modules []ProposedModule) error {
	for i, m := range modules {
		if err := ValidateModule(validate, i+1, m); err != nil {
			return err
		}
	}
	return nil
}

// CheckBatchOverlap rejects modules of the same request that overlap each other.
// Modules must already be valid.
func CheckBatchOverlap(modules []ProposedModule) error {
	intervals := make([]Interval, len(modules))
	for i, m := range modules {
		iv, err := m.Interval()
		if err != nil {
			if mte, ok := err.(*MalformedTimeError); ok {
				mte.Position = i + 1
			}
			return err
		}
		intervals[i] = iv
	}

	for i := range modules {
		for j := i + 1; j < len(modules); j++ {
			if modules[i].Weekday == modules[j].Weekday && intervals[i].Overlaps(intervals[j]) {
				return &OverlappingModulesError{First: i + 1, Second: j + 1}
			}
		}
	}
	return nil
}

// missingFields converts presence failures of a request into a MissingFieldsError.
func missingFields(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, "validating schedule")
	}
	mfe := &MissingFieldsError{}
	for _, fe := range verrs {
		mfe.Fields = append(mfe.Fields, fe.Field())
	}
	return mfe
}
