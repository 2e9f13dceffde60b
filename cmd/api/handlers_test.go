package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/internal/application"
	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/internal/infrastructure/memory"
	"github.com/wms-platform/roadmap-service/pkg/idempotency"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := logging.New(logging.DefaultConfig("test"))

	templates := memory.NewTemplateRepository()
	projects := memory.NewProjectRepository()
	roadmaps := memory.NewRoadmapRepository()
	tasks := memory.NewTaskRepository()
	employees := memory.NewEmployeeRepository()
	attendance := memory.NewAttendanceRepository()

	generator, err := application.NewTaskGenerator(domain.DefaultPriorityBands())
	require.NoError(t, err)

	svc := &services{
		roadmaps: application.NewRoadmapService(templates, projects, roadmaps, logger, nil),
		generation: application.NewGenerationService(application.GenerationDeps{
			Projects:  projects,
			Templates: templates,
			Roadmaps:  roadmaps,
			Tasks:     tasks,
			Directory: employees,
			Generator: generator,
			Engine:    application.NewAssignmentEngine(attendance, 0, logger, nil),
			Ledger:    application.NewGenerationLedger(memory.NewGenerationRepository(tasks), logger),
		}, logger, nil),
		monitoring: application.NewMonitoringService(roadmaps, logger, nil),
		directory:  application.NewDirectoryService(employees, attendance, logger),
	}

	return &testAPI{
		router: newRouter(svc, logger, nil, idempotency.NewMemoryStore(), []string{"manager"}, func() error { return nil }),
	}
}

func requestJSON(t *testing.T, router *gin.Engine, method, path string, payload any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	body := bytes.NewReader(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["code"].(string)
}

var cabinetTemplate = map[string]any{
	"templateId": "TPL-1",
	"name":       "Cabinet",
	"category":   "furniture",
	"steps": []map[string]any{
		{"title": "Cut", "requiredRole": "machinist", "slaUnitsHours": 8},
		{"title": "Paint", "requiredRole": "painter", "slaUnitsHours": 4, "dependencies": []int{0}},
	},
}

// seedRoadmap creates a template, a two-unit project and its roadmap and
// returns the roadmap id.
func seedRoadmap(t *testing.T, api *testAPI) string {
	t.Helper()
	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/templates", cabinetTemplate)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/projects", map[string]any{
		"projectId": "PRJ-1",
		"name":      "Lobby cabinets",
		"quantity":  2,
		"startDate": "2026-10-19",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/roadmaps", map[string]any{
		"projectId":  "PRJ-1",
		"templateId": "TPL-1",
	}, "X-Actor-ID", "MGR-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	roadmap := decode[application.RoadmapDTO](t, rec)
	require.Len(t, roadmap.Stages, 2)
	assert.Equal(t, "READY", roadmap.Stages[0].Status)
	assert.Equal(t, "LOCKED", roadmap.Stages[1].Status)
	return roadmap.RoadmapID
}

func TestTemplateHandlers(t *testing.T) {
	api := newTestAPI(t)

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/templates", cabinetTemplate)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tmpl := decode[application.TemplateDTO](t, rec)
	assert.Equal(t, 12.0, tmpl.TotalSLAHours)
	assert.False(t, tmpl.Referenced)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/templates/TPL-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]application.TemplateDTO](t, rec), 1)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/templates/TPL-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplateHandler_Validation(t *testing.T) {
	api := newTestAPI(t)

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/templates", map[string]any{
		"templateId": "TPL-1",
		"name":       "Empty",
		"steps":      []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/templates", map[string]any{
		"templateId": "TPL-1",
		"name":       "Cycle",
		"steps": []map[string]any{
			{"title": "A", "slaUnitsHours": 1, "dependencies": []int{1}},
			{"title": "B", "slaUnitsHours": 1, "dependencies": []int{0}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestReferencedTemplateIsImmutable(t *testing.T) {
	api := newTestAPI(t)
	seedRoadmap(t, api)

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/templates", cabinetTemplate)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestProjectHandlers(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)

	rec := requestJSON(t, api.router, http.MethodGet, "/api/v1/projects/PRJ-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roadmapID, decode[application.ProjectDTO](t, rec).RoadmapID)

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/projects", map[string]any{
		"projectId": "PRJ-2",
		"quantity":  0,
		"startDate": "19/10/2026",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode[map[string]any](t, rec)["details"].(map[string]any)
	assert.Contains(t, details, "quantity")
	assert.Contains(t, details, "startDate")

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/projects", map[string]any{
		"projectId": "PRJ-3",
		"quantity":  10001,
		"startDate": "2026-10-19",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details = decode[map[string]any](t, rec)["details"].(map[string]any)
	assert.Equal(t, "must be at most 10000", details["quantity"])

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/roadmaps", map[string]any{
		"projectId":  "PRJ-1",
		"templateId": "TPL-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "one roadmap per project")
}

func TestGetRoadmapHandler(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)

	rec := requestJSON(t, api.router, http.MethodGet, "/api/v1/roadmaps/"+roadmapID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roadmap := decode[application.RoadmapDTO](t, rec)
	assert.Equal(t, 12.0, roadmap.TotalSLAHours)
	assert.Equal(t, 0.0, roadmap.ProgressPercent)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/roadmaps/RM-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionHandler(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)
	first := "/api/v1/stages/" + roadmapID + "-S0/transitions"
	second := "/api/v1/stages/" + roadmapID + "-S1/transitions"

	rec := requestJSON(t, api.router, http.MethodPost, first, map[string]any{"action": "start"}, "X-Actor-ID", "EMP-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "IN_PROGRESS", decode[application.StageDTO](t, rec).Status)

	rec = requestJSON(t, api.router, http.MethodPost, second, map[string]any{"action": "start"}, "X-Actor-ID", "EMP-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))

	rec = requestJSON(t, api.router, http.MethodPost, first, map[string]any{"action": "fly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPost, first, map[string]any{"action": "block"}, "X-Actor-ID", "EMP-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "block needs a reason")

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/stages/RM-404-S0/transitions", map[string]any{"action": "start"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionHandler_IdempotentRetry(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)
	path := "/api/v1/stages/" + roadmapID + "-S0/transitions"

	rec := requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "start"},
		"X-Actor-ID", "EMP-1", "Idempotency-Key", "start-s0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a plain retry is rejected because the stage already moved on
	retry := requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "start"}, "X-Actor-ID", "EMP-1")
	assert.Equal(t, http.StatusConflict, retry.Code)

	replay := requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "start"},
		"X-Actor-ID", "EMP-1", "Idempotency-Key", "start-s0")
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, rec.Body.String(), replay.Body.String())

	reused := requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "submitForReview"},
		"X-Actor-ID", "EMP-1", "Idempotency-Key", "start-s0")
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", errorCode(t, reused))
}

func TestTransitionHandler_Permissions(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)
	path := "/api/v1/stages/" + roadmapID + "-S0/transitions"
	assign := map[string]any{"action": "assign", "employeeId": "EMP-1"}

	rec := requestJSON(t, api.router, http.MethodPost, path, assign, "X-Actor-ID", "EMP-2", "X-Actor-Role", "operator")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPost, path, assign, "X-Actor-ID", "MGR-1", "X-Actor-Role", "Manager")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "EMP-1", decode[application.StageDTO](t, rec).AssignedEmployeeID)

	// a body actorId is never elevated
	rec = requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "start", "actorId": "EMP-2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPost, path, map[string]any{"action": "start", "actorId": "EMP-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCanActHandler(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)
	base := "/api/v1/stages/" + roadmapID

	rec := requestJSON(t, api.router, http.MethodGet, base+"-S0/can-act?actorId=EMP-1&action=start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[application.CanActDTO](t, rec).Allowed)

	rec = requestJSON(t, api.router, http.MethodGet, base+"-S1/can-act?actorId=EMP-1&action=start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[application.CanActDTO](t, rec).Allowed)

	rec = requestJSON(t, api.router, http.MethodGet, base+"-S0/can-act?actorId=EMP-1&action=assign", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[application.CanActDTO](t, rec).Allowed)

	rec = requestJSON(t, api.router, http.MethodGet, base+"-S0/can-act?action=assign", nil, "X-Actor-ID", "MGR-1", "X-Actor-Role", "manager")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[application.CanActDTO](t, rec).Allowed)

	rec = requestJSON(t, api.router, http.MethodGet, base+"-S0/can-act?action=dance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func addEmployees(t *testing.T, api *testAPI) {
	t.Helper()
	for _, e := range []map[string]any{
		{"employeeId": "EMP-1", "name": "Ada", "role": "machinist"},
		{"employeeId": "EMP-2", "name": "Ben", "role": "painter"},
	} {
		rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/employees", e)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[application.EmployeeDTO](t, rec).Active)
	}
}

func TestGenerateHandler(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)
	addEmployees(t, api)

	body := map[string]any{"projectId": "PRJ-1", "roadmapId": roadmapID, "strategy": "ROLE_BASED"}

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/generations", body, "X-Actor-ID", "MGR-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[application.GenerationResultDTO](t, rec)
	require.Len(t, result.Tasks, 4)
	assert.Equal(t, 4, result.Summary.AssignedCount)
	require.NotNil(t, result.Record)
	assert.Equal(t, "MGR-1", result.Record.GeneratedBy)
	for _, task := range result.Tasks {
		want := "EMP-1"
		if task.RequiredRole == "painter" {
			want = "EMP-2"
		}
		assert.Equal(t, want, task.AssigneeID, task.TaskID)
	}

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/generations", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[application.GenerationResultDTO](t, rec).Summary.Duplicate)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/projects/PRJ-1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]application.TaskDTO](t, rec), 4)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/generations/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[application.GenerationStatsDTO](t, rec)
	assert.Equal(t, 1, stats.TotalGenerations)
	assert.Equal(t, 4, stats.TotalTasksGenerated)
	assert.Equal(t, 1, stats.StrategyUsage["ROLE_BASED"])
	assert.Equal(t, 0, stats.StrategyUsage["ROUND_ROBIN"])
}

func TestGenerateHandler_Validation(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/generations", map[string]any{
		"projectId": "PRJ-1", "roadmapId": roadmapID, "strategy": "FASTEST",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPost, "/api/v1/generations", map[string]any{
		"projectId": "PRJ-404", "roadmapId": roadmapID, "strategy": "ROUND_ROBIN",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/generations/stats?recent=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityHandler(t *testing.T) {
	api := newTestAPI(t)
	addEmployees(t, api)

	rec := requestJSON(t, api.router, http.MethodPut, "/api/v1/employees/EMP-1/availability/2026-10-19", map[string]any{"status": "leave"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "UNAVAILABLE", decode[application.AttendanceDTO](t, rec).Status)

	rec = requestJSON(t, api.router, http.MethodPut, "/api/v1/employees/EMP-1/availability/2026-10-19", map[string]any{"status": "HALF_DAY"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HALF_DAY", decode[application.AttendanceDTO](t, rec).Status)

	rec = requestJSON(t, api.router, http.MethodPut, "/api/v1/employees/EMP-1/availability/tomorrow", map[string]any{"status": "present"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = requestJSON(t, api.router, http.MethodPut, "/api/v1/employees/EMP-9/availability/2026-10-19", map[string]any{"status": "present"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitoringHandlers(t *testing.T) {
	api := newTestAPI(t)
	roadmapID := seedRoadmap(t, api)

	rec := requestJSON(t, api.router, http.MethodPost, "/api/v1/stages/"+roadmapID+"-S0/transitions", map[string]any{"action": "start"})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/api/v1/monitoring/sla-risks", "/api/v1/monitoring/aging", "/api/v1/monitoring/throughput"} {
		rec := requestJSON(t, api.router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = requestJSON(t, api.router, http.MethodGet, "/api/v1/monitoring/throughput", nil)
	throughput := decode[[]application.RoleThroughputDTO](t, rec)
	require.Len(t, throughput, 2)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusOK, requestJSON(t, api.router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, requestJSON(t, api.router, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusNotFound, requestJSON(t, api.router, http.MethodGet, "/api/v1/nope", nil).Code)
}
