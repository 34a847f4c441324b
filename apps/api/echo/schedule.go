package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/schedule"
)

const dateLayout = "2006-01-02"

// ScheduleService is implemented by *schedule.Service.
type ScheduleService interface {
	Create(ctx context.Context, ns schedule.NewSchedule) (schedule.Schedule, error)
	Update(ctx context.Context, id int, ns schedule.NewSchedule) (schedule.Schedule, error)
	Get(ctx context.Context, id int) (schedule.Schedule, error)
	Query(ctx context.Context, filter schedule.QueryFilter) ([]schedule.Schedule, error)
	Delete(ctx context.Context, id int) error
	CheckConflicts(
		ctx context.Context,
		teacherID int,
		modules []schedule.ProposedModule,
		excludedScheduleID int,
	) ([]schedule.Conflict, error)
}

var _ ScheduleService = (*schedule.Service)(nil) // interface compliance check

type (
	scheduleApi struct {
		svc ScheduleService
	}

	ScheduleRequest struct {
		Name           string                    `json:"name"`
		TeacherID      int                       `json:"teacher_id"`
		SubjectID      int                       `json:"subject_id"`
		LevelID        int                       `json:"level_id"`
		FirstClassDate string                    `json:"first_class_date"` // YYYY-MM-DD
		Modules        []schedule.ProposedModule `json:"modules"`
	}

	ConflictsRequest struct {
		Modules []schedule.ProposedModule `json:"modules"`
	}

	ConflictsResponse struct {
		Conflicts []schedule.Conflict `json:"conflicts"`
	}
)

func (req ScheduleRequest) toNewSchedule() (schedule.NewSchedule, error) {
	ns := schedule.NewSchedule{
		Name:      req.Name,
		TeacherID: req.TeacherID,
		SubjectID: req.SubjectID,
		LevelID:   req.LevelID,
		Modules:   req.Modules,
	}
	if date := core.CleanString(req.FirstClassDate); date != "" {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return schedule.NewSchedule{}, core.NewValidationError(nil, core.FieldError{
				Field: "first_class_date",
				Error: "must be a date formatted as YYYY-MM-DD",
			})
		}
		ns.FirstClassDate = d
	}
	return ns, nil
}

func registerScheduleAPI(g *echo.Group, svc ScheduleService) {
	api := scheduleApi{svc: svc}

	sg := g.Group("/schedules")
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)

	g.POST("/teachers/:id/conflicts", api.conflicts)
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// Handlers

func (api *scheduleApi) query(ctx echo.Context) error {
	var filter schedule.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	schedules, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	if schedules == nil {
		schedules = make([]schedule.Schedule, 0)
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data ScheduleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRequest")
	}
	ns, err := data.toNewSchedule()
	if err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), ns)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *scheduleApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "retrieving schedule")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data ScheduleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleRequest")
	}
	ns, err := data.toNewSchedule()
	if err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), id, ns)
	if err != nil {
		return errors.Wrap(err, "updating schedule")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) conflicts(ctx echo.Context) error {
	teacherID, err := pathID(ctx)
	if err != nil {
		return err
	}
	var excludedID int
	if exclude := ctx.QueryParam("exclude"); exclude != "" {
		if excludedID, err = strconv.Atoi(exclude); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "exclude", Error: "must be a schedule id"})
		}
	}
	var data ConflictsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConflictsRequest")
	}

	conflicts, err := api.svc.CheckConflicts(ctx.Request().Context(), teacherID, data.Modules, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking conflicts")
	}
	if conflicts == nil {
		conflicts = make([]schedule.Conflict, 0)
	}
	return ctx.JSON(http.StatusOK, ConflictsResponse{Conflicts: conflicts})
}
