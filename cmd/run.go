// File: cmd/run.go
package cmd

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/observability"
)

var runNoStore bool

// errPlanFailed signals a failed plan to Execute's exit-code handling without
// bypassing deferred cleanup the way a direct os.Exit would.
var errPlanFailed = errors.New("plan execution failed")

// planFile is the on-disk shape of a plan handed to `handsfree run`.
type planFile struct {
	Intent    schemas.Intent `json:"intent"`
	Strategy  string         `json:"strategy"`
	Reasoning string         `json:"reasoning"`
	Steps     []struct {
		Action      string         `json:"action"`
		Parameters  schemas.Params `json:"parameters"`
		Description string         `json:"description"`
	} `json:"steps"`
}

var runCmd = &cobra.Command{
	Use:          "run <plan.json>",
	Short:        "Execute a plan file against the simulated desktop",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, intent, err := loadPlanFile(args[0])
		if err != nil {
			return err
		}

		a, st, sim, err := buildAgent(!runNoStore)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		if err := a.Start(); err != nil {
			return err
		}
		defer a.Stop()

		if err := a.SubmitPlan(plan, intent); err != nil {
			return err
		}

		printPlanOutcome(plan)
		for _, action := range sim.Actions() {
			fmt.Printf("  sim: %s\n", action)
		}

		return outcomeError(plan)
	},
}

// outcomeError maps a finished plan to the command's error result. Cleanup
// deferred above still runs before the nonzero exit.
func outcomeError(plan *schemas.Plan) error {
	if !plan.HasFailed() {
		return nil
	}
	observability.GetLogger().Warn("plan failed",
		zap.Float64("progress", plan.Progress()))
	return errPlanFailed
}

func loadPlanFile(path string) (*schemas.Plan, schemas.Intent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, schemas.Intent{}, fmt.Errorf("failed to read plan file: %w", err)
	}
	var pf planFile
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &pf); err != nil {
		return nil, schemas.Intent{}, fmt.Errorf("invalid plan file: %w", err)
	}
	if len(pf.Steps) == 0 {
		return nil, schemas.Intent{}, fmt.Errorf("plan file contains no steps")
	}

	steps := make([]*schemas.Step, 0, len(pf.Steps))
	for _, s := range pf.Steps {
		if s.Action == "" {
			return nil, schemas.Intent{}, fmt.Errorf("plan file step without an action")
		}
		steps = append(steps, schemas.NewStep(s.Action, s.Parameters, s.Description))
	}
	return schemas.NewPlan(pf.Strategy, pf.Reasoning, steps...), pf.Intent, nil
}

func printPlanOutcome(plan *schemas.Plan) {
	for i, step := range plan.Steps {
		mark := " "
		switch step.Status {
		case schemas.StepCompleted:
			mark = "+"
		case schemas.StepFailed:
			mark = "x"
		}
		line := fmt.Sprintf("[%s] step %d: %s", mark, i+1, step.Action)
		if step.Error != "" {
			line += " (" + step.Error + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("progress: %.0f%%\n", plan.Progress())
}

func init() {
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip persisting the execution record")
	rootCmd.AddCommand(runCmd)
}
