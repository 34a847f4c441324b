package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/horarios/apps/api/echo"
	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/schedule"
	eventsvc "github.com/trezcool/horarios/services/events"
	"github.com/trezcool/horarios/services/locker"
	logsvc "github.com/trezcool/horarios/services/logger"
	dummydb "github.com/trezcool/horarios/storage/database/dummy"
	"github.com/trezcool/horarios/tests"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	wantCode int
	check    func(t *testing.T, rec *httptest.ResponseRecorder)
}

func setup(t *testing.T) (echoapi.Server, testutil.Seed) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	catRepo := dummydb.NewCatalogRepository(db)
	seed := testutil.SeedCatalog(t, catRepo)

	logger := logsvc.NewNopLogger()
	conf := &core.Config{AppName: "Horarios", TestMode: true}
	conf.Server.DisableReqLogs = true
	conf.Schedule.Weekdays = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes"}

	svc := schedule.NewService(schedule.Deps{
		Repo:      dummydb.NewScheduleRepository(db),
		Catalog:   catRepo,
		Locker:    locker.NewLocal(),
		Publisher: eventsvc.NewLogPublisher(logger),
		Logger:    logger,
		Weekdays:  conf.Schedule.Weekdays,
	})
	return echoapi.NewServer(echoapi.ServerDeps{Conf: conf, Logger: logger, ScheduleSvc: svc}), seed
}

func do(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func scheduleBody(seed testutil.Seed, name string, modules ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":             name,
		"teacher_id":       seed.Teacher.ID,
		"subject_id":       seed.Subject.ID,
		"level_id":         seed.Level.ID,
		"first_class_date": "2024-03-04",
		"modules":          modules,
	}
}

func module(weekday, start string, duration int) map[string]interface{} {
	return map[string]interface{}{"weekday": weekday, "start_time": start, "duration": duration}
}

func createSchedule(t *testing.T, srv http.Handler, body interface{}) schedule.Schedule {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/v1/schedules", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sch schedule.Schedule
	decode(t, rec, &sch)
	return sch
}

func TestScheduleAPI_Create(t *testing.T) {
	type createTest struct {
		name     string
		body     func(seed testutil.Seed) interface{}
		wantCode int
		check    func(t *testing.T, rec *httptest.ResponseRecorder, existing schedule.Schedule)
	}
	tests := []createTest{
		{
			name: "created",
			body: func(seed testutil.Seed) interface{} {
				return scheduleBody(seed, "Geometría 3A", module("Lunes", "09:00", 60), module("Martes", "08:00", 240))
			},
			wantCode: http.StatusCreated,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ schedule.Schedule) {
				var sch schedule.Schedule
				decode(t, rec, &sch)
				assert.Equal(t, "Geometría 3A", sch.Name)
				assert.Equal(t, "2024-03-04", sch.FirstClassDate.Format("2006-01-02"))
				require.Len(t, sch.Modules, 2)
				assert.Equal(t, 2, sch.Modules[1].Position)
				assert.Equal(t, schedule.RoleLead, sch.Modules[1].Roles[0].Role)
				assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			},
		},
		{
			name: "back to back with an existing module",
			body: func(seed testutil.Seed) interface{} {
				return scheduleBody(seed, "Física", module("Lunes", "07:00", 60), module("Lunes", "09:00", 30))
			},
			wantCode: http.StatusCreated,
		},
		{
			name: "conflict",
			body: func(seed testutil.Seed) interface{} {
				return scheduleBody(seed, "Física", module("Lunes", "08:30", 60))
			},
			wantCode: http.StatusConflict,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, existing schedule.Schedule) {
				var resp struct {
					Error     string              `json:"error"`
					Conflicts []schedule.Conflict `json:"conflicts"`
				}
				decode(t, rec, &resp)
				assert.Contains(t, resp.Error, "Álgebra 3A")
				require.Len(t, resp.Conflicts, 1)
				assert.Equal(t, existing.ID, resp.Conflicts[0].ScheduleID)
				assert.Equal(t, "08:00", resp.Conflicts[0].StartTime)
				assert.Equal(t, "09:00", resp.Conflicts[0].EndTime)
			},
		},
		{
			name: "conflict reported before unknown subject",
			body: func(seed testutil.Seed) interface{} {
				body := scheduleBody(seed, "Física", module("Lunes", "08:00", 60))
				body["subject_id"] = 99
				return body
			},
			wantCode: http.StatusConflict,
		},
		{
			name: "missing level",
			body: func(seed testutil.Seed) interface{} {
				body := scheduleBody(seed, "Física", module("Martes", "08:00", 60))
				delete(body, "level_id")
				return body
			},
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ schedule.Schedule) {
				var resp struct {
					Fields map[string]string `json:"fields"`
				}
				decode(t, rec, &resp)
				assert.Equal(t, map[string]string{"level_id": "this field is required"}, resp.Fields)
			},
		},
		{
			name: "duration out of range",
			body: func(seed testutil.Seed) interface{} {
				return scheduleBody(seed, "Física", module("Martes", "08:00", 241))
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "malformed time",
			body: func(seed testutil.Seed) interface{} {
				return scheduleBody(seed, "Física", module("Martes", "8h", 60))
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown subject",
			body: func(seed testutil.Seed) interface{} {
				body := scheduleBody(seed, "Física", module("Martes", "08:00", 60))
				body["subject_id"] = 99
				return body
			},
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ schedule.Schedule) {
				var resp struct {
					Fields map[string]string `json:"fields"`
				}
				decode(t, rec, &resp)
				assert.Contains(t, resp.Fields, "subject_id")
			},
		},
		{
			name: "bad date",
			body: func(seed testutil.Seed) interface{} {
				body := scheduleBody(seed, "Física", module("Martes", "08:00", 60))
				body["first_class_date"] = "04/03/2024"
				return body
			},
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ schedule.Schedule) {
				assert.Contains(t, rec.Body.String(), "first_class_date")
			},
		},
		{
			name:     "malformed json",
			body:     func(testutil.Seed) interface{} { return `{"name": ` },
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, seed := setup(t)
			existing := createSchedule(t, srv, scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:00", 60)))

			rec := do(t, srv, http.MethodPost, "/v1/schedules", tc.body(seed))
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.check != nil {
				tc.check(t, rec, existing)
			}
		})
	}
}

func TestScheduleAPI_Detail(t *testing.T) {
	srv, seed := setup(t)
	sch := createSchedule(t, srv, scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:00", 60)))
	other := createSchedule(t, srv, scheduleBody(seed, "Geometría 3A", module("Martes", "08:00", 60)))
	path := fmt.Sprintf("/v1/schedules/%d", sch.ID)

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: path, wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got schedule.Schedule
				decode(t, rec, &got)
				assert.Equal(t, sch.ID, got.ID)
				assert.Equal(t, "Ana Pérez", got.TeacherName)
			}},
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/schedules/999", wantCode: http.StatusNotFound},
		{name: "retrieve bad id", method: http.MethodGet, path: "/v1/schedules/abc", wantCode: http.StatusNotFound},
		{name: "update keeps own slot", method: http.MethodPut, path: path,
			body:     scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:30", 60)),
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got schedule.Schedule
				decode(t, rec, &got)
				assert.Equal(t, "08:30", got.Modules[0].StartTime)
			}},
		{name: "update conflicting", method: http.MethodPut, path: path,
			body:     scheduleBody(seed, "Álgebra 3A", module("Martes", "08:30", 60)),
			wantCode: http.StatusConflict},
		{name: "update unknown", method: http.MethodPut, path: "/v1/schedules/999",
			body:     scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:30", 60)),
			wantCode: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/schedules/%d", other.ID),
			wantCode: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: fmt.Sprintf("/v1/schedules/%d", other.ID),
			wantCode: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.check != nil {
				tc.check(t, rec)
			}
		})
	}
}

func TestScheduleAPI_Query(t *testing.T) {
	srv, seed := setup(t)
	first := createSchedule(t, srv, scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:00", 60)))
	body := scheduleBody(seed, "Álgebra 3B", module("Lunes", "08:00", 60))
	body["teacher_id"] = seed.Teacher2.ID
	second := createSchedule(t, srv, body)

	tests := []struct {
		query   string
		wantIDs []int
		code    int
	}{
		{query: "", wantIDs: []int{second.ID, first.ID}, code: http.StatusOK},
		{query: fmt.Sprintf("?teacher_id=%d", seed.Teacher.ID), wantIDs: []int{first.ID}, code: http.StatusOK},
		{query: "?teacher_id=999", wantIDs: []int{}, code: http.StatusOK},
		{query: "?teacher_id=abc", code: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run("query"+tc.query, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/v1/schedules"+tc.query, nil)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.code != http.StatusOK {
				return
			}
			var schedules []schedule.Schedule
			decode(t, rec, &schedules)
			ids := make([]int, 0)
			for _, sch := range schedules {
				ids = append(ids, sch.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestScheduleAPI_Conflicts(t *testing.T) {
	srv, seed := setup(t)
	sch := createSchedule(t, srv, scheduleBody(seed, "Álgebra 3A", module("Lunes", "08:00", 60)))
	body := map[string]interface{}{"modules": []map[string]interface{}{module("Lunes", "08:15", 30)}}
	path := fmt.Sprintf("/v1/teachers/%d/conflicts", seed.Teacher.ID)

	tests := []struct {
		name      string
		path      string
		body      interface{}
		wantCode  int
		wantCount int
	}{
		{name: "overlap", path: path, body: body, wantCode: http.StatusOK, wantCount: 1},
		{name: "excluding the schedule", path: fmt.Sprintf("%s?exclude=%d", path, sch.ID), body: body,
			wantCode: http.StatusOK, wantCount: 0},
		{name: "other teacher", path: fmt.Sprintf("/v1/teachers/%d/conflicts", seed.Teacher2.ID), body: body,
			wantCode: http.StatusOK, wantCount: 0},
		{name: "bad exclude", path: path + "?exclude=x", body: body, wantCode: http.StatusBadRequest},
		{name: "no modules", path: path, body: map[string]interface{}{}, wantCode: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tc.path, tc.body)
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode != http.StatusOK {
				return
			}
			var resp echoapi.ConflictsResponse
			decode(t, rec, &resp)
			assert.Len(t, resp.Conflicts, tc.wantCount)
		})
	}
}

func TestServer_Shutdown(t *testing.T) {
	srv, _ := setup(t)
	rec := do(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Horarios API!", rec.Body.String())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
