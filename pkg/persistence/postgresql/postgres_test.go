package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/veriflow-io/veriflow/pkg/models"
	"github.com/veriflow-io/veriflow/pkg/persistence"
	"github.com/veriflow-io/veriflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("veriflow_test"),
			postgres.WithUsername("veriflow"),
			postgres.WithPassword("veriflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, store.Close(ctx))
		cancel()
	})

	return store, ctx, databaseURL
}

func sampleWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:              "wf-" + uuid.New().String(),
		Name:            "nightly ingest",
		Description:     "scan, validate and load the nightly batch",
		Status:          models.WorkflowStatusDraft,
		WorkflowGroupID: "wg-" + uuid.New().String(),
		Steps: []*models.StepDefinition{
			{ID: "st-1", Name: "scan", Type: models.StepTypeScan, Configuration: map[string]any{"source_dir": "/data"}},
			{ID: "st-2", Name: "validate", Type: models.StepTypeValidate, DependsOn: []string{"scan"}},
		},
		Variables:      map[string]any{"region": "eu-west-1"},
		DefaultTimeout: time.Minute,
		Owner:          "data-team",
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	for _, table := range []string{"workflows", "workflow_executions", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist after migrations", table)
	}
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	store, ctx, databaseURL := setupTestDB(t)

	// A second persistence against the same database must not re-apply
	// migrations.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))

	require.NoError(t, store.HealthCheck(ctx))
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, loaded.ID)
	assert.Equal(t, "nightly ingest", loaded.Name)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)
	assert.Equal(t, "eu-west-1", loaded.Variables["region"])
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, []string{"scan"}, loaded.Steps[1].DependsOn)
}

func TestWorkflowRepository_UpsertAndList(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	workflow.Name = "renamed ingest"
	workflow.Status = models.WorkflowStatusActive
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed ingest", loaded.Name)
	assert.Equal(t, models.WorkflowStatusActive, loaded.Status)

	workflows, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.WorkflowRepository().GetByID(ctx, "wf-missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_SoftDelete(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.WorkflowRepository()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))
	require.NoError(t, repo.Delete(ctx, workflow.ID))

	workflows, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)

	err = repo.Delete(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionRepository_RoundTrip(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := sampleWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	repo := store.ExecutionRepository()
	now := time.Now().UTC().Truncate(time.Millisecond)

	exec := &models.WorkflowExecution{
		ID:         "exec-" + uuid.New().String(),
		WorkflowID: workflow.ID,
		Snapshot:   workflow,
		Status:     models.ExecutionStatusRunning,
		Parameters: map[string]any{"batch": "b1"},
		Steps: []*models.StepExecution{
			{
				ID:          "step-1",
				ExecutionID: "exec-1",
				StepName:    "scan",
				StepType:    models.StepTypeScan,
				Status:      models.StepStatusRunning,
				Attempts:    1,
			},
		},
		StartedAt: &now,
		CreatedAt: now,
	}

	require.NoError(t, repo.Save(ctx, exec))

	// Update in place, the way the engine does as steps finish.
	exec.Status = models.ExecutionStatusCompleted
	exec.Steps[0].Status = models.StepStatusCompleted
	exec.FinishedAt = &now
	exec.Metrics.StepsCompleted = 1

	require.NoError(t, repo.Save(ctx, exec))

	loaded, err := repo.GetByID(ctx, exec.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "b1", loaded.Parameters["batch"])
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.StepStatusCompleted, loaded.Steps[0].Status)
	assert.Equal(t, 1, loaded.Metrics.StepsCompleted)
	require.NotNil(t, loaded.Snapshot)
	assert.Equal(t, workflow.ID, loaded.Snapshot.ID)
}

func TestExecutionRepository_ListByWorkflow(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := sampleWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	repo := store.ExecutionRepository()
	base := time.Now().UTC()

	for i, id := range []string{"exec-a", "exec-b"} {
		exec := &models.WorkflowExecution{
			ID:         id,
			WorkflowID: workflow.ID,
			Status:     models.ExecutionStatusCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Save(ctx, exec))
	}

	executions, err := repo.ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-b", executions[0].ID)

	others, err := repo.ListByWorkflow(ctx, "wf-other")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestExecutionRepository_NotFound(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.ExecutionRepository().GetByID(ctx, "exec-missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}
