package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence/file"
	"github.com/veriflow-io/veriflow/pkg/registry"
)

func setupTestApp(tempDir string) *fiber.App {
	store := file.NewPersistence(tempDir)

	api := NewAPI(
		slog.Default(),
		store,
		registry.NewRegistry(slog.Default()),
		nil,
	)

	return api.App()
}

func TestAPI_Start_ShutsDownOnContextCancel(t *testing.T) {
	tempDir := t.TempDir()
	store := file.NewPersistence(tempDir)

	api := NewAPI(
		slog.Default(),
		store,
		registry.NewRegistry(slog.Default()),
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- api.Start(ctx, 0)
	}()

	// Give the listener a moment to come up before asking it to stop.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestAPI_RootEndpoint(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Veriflow Engine", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Workflows  []models.WorkflowDefinition `json:"workflows"`
		TotalCount int                         `json:"total_count"`
	}

	err = json.NewDecoder(resp.Body).Decode(&listing)
	require.NoError(t, err)
	assert.Empty(t, listing.Workflows)
	assert.Equal(t, 0, listing.TotalCount)
}

func TestAPI_GetWorkflows_WithData(t *testing.T) {
	tempDir := t.TempDir()
	store := file.NewPersistence(tempDir)
	ctx := context.Background()

	workflow1 := &models.WorkflowDefinition{
		ID:     "wf-ingest",
		Name:   "Nightly Ingest",
		Status: models.WorkflowStatusActive,
		Owner:  "data-team",
		Steps: []*models.StepDefinition{
			{
				ID:   "step1",
				Name: "scan",
				Type: models.StepTypeScan,
				Configuration: map[string]any{
					"source_dir": "/data/in",
				},
			},
		},
		Variables: map[string]any{
			"region": "eu-west-1",
		},
	}

	workflow2 := &models.WorkflowDefinition{
		ID:     "wf-reports",
		Name:   "Weekly Reports",
		Status: models.WorkflowStatusDraft,
		Owner:  "reporting",
		Steps: []*models.StepDefinition{
			{
				ID:   "step1",
				Name: "transform",
				Type: models.StepTypeTransform,
				Configuration: map[string]any{
					"expression": "{{.variables.region}}",
				},
			},
		},
	}

	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow1))
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow2))

	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Workflows  []models.WorkflowDefinition `json:"workflows"`
		TotalCount int                         `json:"total_count"`
	}

	err = json.NewDecoder(resp.Body).Decode(&listing)
	require.NoError(t, err)
	assert.Len(t, listing.Workflows, 2)
	assert.Equal(t, 2, listing.TotalCount)

	workflowIDs := []string{listing.Workflows[0].ID, listing.Workflows[1].ID}
	assert.Contains(t, workflowIDs, "wf-ingest")
	assert.Contains(t, workflowIDs, "wf-reports")
}

func TestAPI_GetWorkflow_Success(t *testing.T) {
	tempDir := t.TempDir()
	store := file.NewPersistence(tempDir)
	ctx := context.Background()

	workflow := &models.WorkflowDefinition{
		ID:     "wf-specific",
		Name:   "Specific Workflow",
		Status: models.WorkflowStatusActive,
		Owner:  "data-team",
		Steps: []*models.StepDefinition{
			{
				ID:   "step1",
				Name: "notify",
				Type: models.StepTypeNotify,
				Configuration: map[string]any{
					"url":     "https://hooks.example.com/deploys",
					"message": "done",
				},
			},
		},
		Variables: map[string]any{
			"api_key": "test-key",
		},
	}

	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf-specific", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var returned models.WorkflowDefinition

	err = json.NewDecoder(resp.Body).Decode(&returned)
	require.NoError(t, err)

	assert.Equal(t, "wf-specific", returned.ID)
	assert.Equal(t, "Specific Workflow", returned.Name)
	assert.Equal(t, models.WorkflowStatusActive, returned.Status)
	require.Len(t, returned.Steps, 1)
	assert.Equal(t, models.StepTypeNotify, returned.Steps[0].Type)
	assert.Equal(t, "test-key", returned.Variables["api_key"])
}

func TestAPI_GetWorkflow_NotFound(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/workflows/non-existent-workflow", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_ContentType_JSON(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}
