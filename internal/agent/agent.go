// File: internal/agent/agent.go
// Description: Composition root. Wires the event bus, state machine, handler
// registry and plan executor into one agent and owns their lifecycle.
package agent

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/config"
	"github.com/xkilldash9x/handsfree/internal/events"
	"github.com/xkilldash9x/handsfree/internal/executor"
	"github.com/xkilldash9x/handsfree/internal/handlers"
	"github.com/xkilldash9x/handsfree/internal/state"
)

// Drivers bundles the OS-facing implementations the handlers act through.
// Production wiring passes platform bindings; tests and dry runs pass the
// desktop simulator.
type Drivers struct {
	Windows   schemas.WindowManager
	Processes schemas.ProcessManager
	Input     schemas.InputDriver
	Navigator schemas.Navigator
	Elements  schemas.ElementFinder
}

func (d Drivers) validate() error {
	if d.Windows == nil {
		return fmt.Errorf("window manager driver is required")
	}
	if d.Processes == nil {
		return fmt.Errorf("process manager driver is required")
	}
	if d.Input == nil {
		return fmt.Errorf("input driver is required")
	}
	if d.Navigator == nil {
		return fmt.Errorf("navigator driver is required")
	}
	// Elements may be nil: element-addressed actions then fail per step.
	return nil
}

// Agent owns the execution core. Everything is wired explicitly in New;
// there is no package-level state.
type Agent struct {
	logger   *zap.Logger
	bus      *events.Bus
	machine  *state.Machine
	executor *executor.Executor

	mu      sync.Mutex
	started bool
}

// New wires an agent from its configuration and drivers. The recorder may be
// nil to run without persistence.
func New(cfg config.Interface, logger *zap.Logger, drv Drivers, recorder executor.Recorder) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := drv.validate(); err != nil {
		return nil, err
	}

	bus := events.NewBus(logger, events.WithHistorySize(cfg.Agent().EventHistorySize))
	machine := state.NewMachine(logger, bus)

	registry, err := executor.NewRegistry(logger,
		handlers.NewWindowHandlers(logger, drv.Windows),
		handlers.NewAppHandlers(logger, drv.Processes, cfg.Safety()),
		handlers.NewInputHandlers(logger, drv.Input, drv.Elements),
		handlers.NewNavigationHandlers(logger, drv.Navigator),
		handlers.NewUtilityHandlers(logger, drv.Elements),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build handler registry: %w", err)
	}

	exec, err := executor.New(cfg, logger, bus, machine, registry, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor: %w", err)
	}

	return &Agent{
		logger:   logger.Named("agent"),
		bus:      bus,
		machine:  machine,
		executor: exec,
	}, nil
}

// Start brings the agent online and subscribes the executor to the bus.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("agent already started")
	}
	a.executor.Start()
	a.started = true
	a.bus.EmitSimple(events.AgentStarted, "agent", nil)
	a.logger.Info("agent started", zap.Strings("actions", a.executor.Actions()))
	return nil
}

// Stop takes the agent offline. A plan in flight finishes first because the
// bus dispatch that started it is synchronous.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	a.executor.Stop()
	a.machine.SetState(state.Stopped)
	a.bus.EmitSimple(events.AgentStopped, "agent", nil)
	a.started = false
	a.logger.Info("agent stopped")
}

// SubmitPlan feeds a plan into the execution pipeline by emitting
// PLAN_CREATED. Dispatch is synchronous, so the plan has finished by the
// time this returns; inspect the plan's steps or the event history for the
// outcome.
func (a *Agent) SubmitPlan(plan *schemas.Plan, intent schemas.Intent) error {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return fmt.Errorf("agent is not started")
	}
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}
	a.bus.EmitSimple(events.PlanCreated, "agent", schemas.Params{
		"plan":   plan,
		"intent": intent,
	})
	return nil
}

// ExecuteAction runs a single action outside any plan.
func (a *Agent) ExecuteAction(action string, params schemas.Params) schemas.ActionResult {
	return a.executor.ExecuteSingleAction(action, params)
}

// Bus exposes the event bus for additional subscribers (UI, telemetry).
func (a *Agent) Bus() *events.Bus { return a.bus }

// State returns the current agent state.
func (a *Agent) State() state.AgentState { return a.machine.State() }

// Actions returns the registered action names.
func (a *Agent) Actions() []string { return a.executor.Actions() }
