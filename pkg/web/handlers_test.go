package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriflow-io/veriflow/pkg/execution"
	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence/file"
	"github.com/veriflow-io/veriflow/pkg/protocol"
	"github.com/veriflow-io/veriflow/pkg/registry"
	"github.com/veriflow-io/veriflow/pkg/services"
	"github.com/veriflow-io/veriflow/pkg/web"
)

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, _ *execution.Context, _ *slog.Logger) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

type noopFactory struct{ id string }

func (f noopFactory) ID() string { return f.id }

func (f noopFactory) Schema() map[string]any { return nil }

func (f noopFactory) Create(_ map[string]any) (protocol.StepExecutor, error) {
	return noopExecutor{}, nil
}

type fakeRunner struct {
	cancelled []string
}

func (r *fakeRunner) Execute(_ context.Context, def *models.WorkflowDefinition, _ map[string]any) (*models.WorkflowExecution, error) {
	return &models.WorkflowExecution{ID: "exec-fake", WorkflowID: def.ID, Status: models.ExecutionStatusCompleted}, nil
}

func (r *fakeRunner) ExecuteWithID(_ context.Context, executionID string, def *models.WorkflowDefinition, _ map[string]any) (*models.WorkflowExecution, error) {
	return &models.WorkflowExecution{ID: executionID, WorkflowID: def.ID, Status: models.ExecutionStatusCompleted}, nil
}

func (r *fakeRunner) Cancel(executionID, _ string) error {
	r.cancelled = append(r.cancelled, executionID)

	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *services.Workflow) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	workflowService := services.NewWorkflow(store)
	executionService := services.NewExecution(store, &fakeRunner{}, slog.Default())

	reg := registry.NewRegistry(slog.Default())
	require.NoError(t, reg.RegisterExecutor(noopFactory{id: string(models.StepTypeScan)}))

	handlers := web.NewAPIHandlers(workflowService, executionService, validator.New(), reg)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Get("/:id/plan", handlers.GetWorkflowPlan)
	w.Post("/:id/executions", handlers.StartExecution)
	w.Get("/:id/executions", handlers.GetExecutions)

	e := app.Group("/executions")
	e.Get("/:executionId", handlers.GetExecution)
	e.Post("/:executionId/cancel", handlers.CancelExecution)

	app.Get("/health", handlers.HealthCheck)

	return app, workflowService
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()

	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func createDraft(t *testing.T, app *fiber.App) models.WorkflowDefinition {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name:  "nightly ingest",
		Owner: "data-team",
		Steps: []*models.StepDefinition{
			{Name: "scan", Type: models.StepTypeScan},
			{Name: "load", Type: models.StepTypeScan, DependsOn: []string{"scan"}},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.WorkflowDefinition

	decodeBody(t, resp, &workflow)

	return workflow
}

func activate(t *testing.T, app *fiber.App, id string) {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+id+"/activate", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestCreateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)

	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
	assert.Equal(t, "data-team", workflow.Owner)
	assert.Len(t, workflow.Steps, 2)
}

func TestCreateWorkflow_Validation(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name    string
		payload web.CreateWorkflowRequest
	}{
		{
			name:    "missing owner",
			payload: web.CreateWorkflowRequest{Name: "valid name"},
		},
		{
			name:    "name too short",
			payload: web.CreateWorkflowRequest{Name: "ab", Owner: "data-team"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", tt.payload))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NoError(t, resp.Body.Close())
		})
	}
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/wf-ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestGetWorkflows(t *testing.T) {
	app, _ := setupTestApp(t)

	createDraft(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Workflows  []models.WorkflowDefinition `json:"workflows"`
		TotalCount int                         `json:"total_count"`
	}

	decodeBody(t, resp, &listing)

	assert.Equal(t, 1, listing.TotalCount)
	require.Len(t, listing.Workflows, 1)
}

func TestActivateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/activate", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var activated models.WorkflowDefinition

	decodeBody(t, resp, &activated)
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)

	// Activating twice conflicts.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/activate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestActivateWorkflow_InvalidGraph(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name:  "broken workflow",
		Owner: "data-team",
		Steps: []*models.StepDefinition{
			{Name: "self", Type: models.StepTypeScan, DependsOn: []string{"self"}},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.WorkflowDefinition

	decodeBody(t, resp, &workflow)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/activate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestUpdateWorkflow_ActiveConflicts(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)
	activate(t, app, workflow.ID)

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+workflow.ID, map[string]any{
		"name": "too late to rename",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestArchiveWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)
	activate(t, app, workflow.ID)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/archive", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var archived models.WorkflowDefinition

	decodeBody(t, resp, &archived)
	assert.Equal(t, models.WorkflowStatusArchived, archived.Status)
}

func TestDeleteWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodDelete, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestGetWorkflowPlan(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+workflow.ID+"/plan", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var planResponse struct {
		Levels         map[string][]string `json:"levels"`
		CriticalPath   []string            `json:"critical_path"`
		MaxParallelism int                 `json:"max_parallelism"`
	}

	decodeBody(t, resp, &planResponse)

	assert.Equal(t, []string{"scan"}, planResponse.Levels["0"])
	assert.Equal(t, []string{"load"}, planResponse.Levels["1"])
	assert.Equal(t, []string{"scan", "load"}, planResponse.CriticalPath)
	assert.Equal(t, 1, planResponse.MaxParallelism)
}

func TestStartExecution(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)
	activate(t, app, workflow.ID)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/executions", web.StartExecutionRequest{
		Parameters: map[string]any{"batch": "b7"},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started web.StartExecutionResponse

	decodeBody(t, resp, &started)

	assert.NotEmpty(t, started.ExecutionID)
	assert.Equal(t, workflow.ID, started.WorkflowID)
	assert.Equal(t, "pending", started.Status)
}

func TestStartExecution_DraftConflicts(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createDraft(t, app)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/executions", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestGetExecution_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/executions/exec-ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestCancelExecution(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/executions/exec-1/cancel", web.CancelExecutionRequest{
		CancelledBy: "ops@example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	decodeBody(t, resp, &health)

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "Veriflow API is healthy", health.Message)
}
