package cmd

import (
	"log/slog"

	"github.com/veriflow-io/veriflow/pkg/executors/classify"
	"github.com/veriflow-io/veriflow/pkg/executors/condition"
	"github.com/veriflow-io/veriflow/pkg/executors/notify"
	"github.com/veriflow-io/veriflow/pkg/executors/qualitycheck"
	"github.com/veriflow-io/veriflow/pkg/executors/scan"
	"github.com/veriflow-io/veriflow/pkg/executors/script"
	"github.com/veriflow-io/veriflow/pkg/executors/transform"
	"github.com/veriflow-io/veriflow/pkg/executors/validate"
	"github.com/veriflow-io/veriflow/pkg/protocol"
	"github.com/veriflow-io/veriflow/pkg/registry"
	"github.com/veriflow-io/veriflow/pkg/triggers/queue"
	"github.com/veriflow-io/veriflow/pkg/triggers/schedule"
)

// NewRegistry creates a registry with the native executor capabilities
// and triggers registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeExecutors(reg)
	registerNativeTriggers(reg)

	return reg
}

func registerNativeExecutors(reg *registry.Registry) {
	factories := []protocol.ExecutorFactory{
		scan.NewFactory(),
		validate.NewFactory(),
		transform.NewFactory(),
		qualitycheck.NewFactory(),
		classify.NewFactory(),
		notify.NewFactory(),
		script.NewFactory(),
		condition.NewFactory(),
	}

	for _, factory := range factories {
		if err := reg.RegisterExecutor(factory); err != nil {
			panic(err)
		}
	}
}

func registerNativeTriggers(reg *registry.Registry) {
	reg.RegisterTrigger(schedule.NewFactory())
	reg.RegisterTrigger(queue.NewFactory())
}
