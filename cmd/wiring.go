// File: cmd/wiring.go
package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/internal/agent"
	"github.com/xkilldash9x/handsfree/internal/desktop"
	"github.com/xkilldash9x/handsfree/internal/executor"
	"github.com/xkilldash9x/handsfree/internal/observability"
	"github.com/xkilldash9x/handsfree/internal/store"
)

// buildAgent assembles an agent against the simulated desktop drivers. Real
// platform bindings replace the simulator once they exist for the host OS.
func buildAgent(persist bool) (*agent.Agent, *store.Store, *desktop.Simulator, error) {
	logger := observability.GetLogger()
	sim := desktop.NewSimulator(logger)

	var (
		st  *store.Store
		rec executor.Recorder
	)
	if persist {
		var err error
		st, err = store.Open(cfg.Store(), logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open execution store: %w", err)
		}
		rec = st
	}

	a, err := agent.New(cfg, logger, agent.Drivers{
		Windows:   sim,
		Processes: sim,
		Input:     sim,
		Navigator: sim,
		Elements:  sim,
	}, rec)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, nil, err
	}

	logger.Debug("agent wired", zap.Bool("persistence", persist))
	return a, st, sim, nil
}
