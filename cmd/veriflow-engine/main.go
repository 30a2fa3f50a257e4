package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/veriflow-io/veriflow/pkg/cmd"
	"github.com/veriflow-io/veriflow/pkg/engine"
	"github.com/veriflow-io/veriflow/pkg/log"
	"github.com/veriflow-io/veriflow/pkg/otelhelper"
	"github.com/veriflow-io/veriflow/pkg/resource"
	"github.com/veriflow-io/veriflow/pkg/services"
	"github.com/veriflow-io/veriflow/pkg/triggers"
)

const defaultPort = 9030

func main() {
	logger := log.WithModule("engine")

	command := &cli.Command{
		Name:                  "veriflow-engine",
		Usage:                 "Run the workflow execution engine and its management API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (postgres://... or a file path)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.Int64Flag{
				Name:    "pool-compute",
				Usage:   "Compute units available to concurrent executions",
				Value:   resource.DefaultPoolConfig().Compute,
				Sources: cli.EnvVars("POOL_COMPUTE"),
			},
			&cli.Int64Flag{
				Name:    "pool-memory",
				Usage:   "Memory units available to concurrent executions",
				Value:   resource.DefaultPoolConfig().Memory,
				Sources: cli.EnvVars("POOL_MEMORY"),
			},
			&cli.Int64Flag{
				Name:    "pool-io",
				Usage:   "IO units available to concurrent executions",
				Value:   resource.DefaultPoolConfig().IO,
				Sources: cli.EnvVars("POOL_IO"),
			},
			&cli.Int64Flag{
				Name:    "pool-network",
				Usage:   "Network units available to concurrent executions",
				Value:   resource.DefaultPoolConfig().Network,
				Sources: cli.EnvVars("POOL_NETWORK"),
			},
			&cli.IntFlag{
				Name:    "parallelism-limit",
				Usage:   "Hard ceiling on concurrently running steps per execution",
				Value:   resource.DefaultPoolConfig().ParallelismLimit,
				Sources: cli.EnvVars("PARALLELISM_LIMIT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Veriflow engine")

			reg := cmd.NewRegistry(logger)
			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			resources := resource.NewManager(logger, resource.PoolConfig{
				Compute:          command.Int64("pool-compute"),
				Memory:           command.Int64("pool-memory"),
				IO:               command.Int64("pool-io"),
				Network:          command.Int64("pool-network"),
				ParallelismLimit: command.Int("parallelism-limit"),
			})

			eng := engine.NewEngine(logger, reg, resources, store, eventBus)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "veriflow-engine")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracing", "error", err)
				} else {
					eng = eng.WithTracer(tracer)
				}
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			executionService := services.NewExecution(store, eng, logger)
			triggerManager := triggers.NewManager(reg, executionService, logger)
			defer triggerManager.StopAll(context.Background())

			workflows, err := store.WorkflowRepository().List(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to list workflows for trigger startup", "error", err)

				return err
			}

			for _, workflow := range workflows {
				if !workflow.IsExecutable() || len(workflow.Triggers) == 0 {
					continue
				}

				if err := triggerManager.StartWorkflowTriggers(ctx, workflow); err != nil {
					logger.ErrorContext(ctx, "Failed to start workflow triggers",
						"workflow_id", workflow.ID, "error", err)
				}
			}

			api := NewAPI(logger, store, reg, eng)

			if err := api.Start(ctx, command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start engine API", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
