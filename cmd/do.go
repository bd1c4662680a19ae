// File: cmd/do.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

var doParams string

var doCmd = &cobra.Command{
	Use:   "do <action>",
	Short: "Run a single action outside any plan",
	Long: `Run one registered action directly, e.g.

  handsfree do launch_app --params '{"target": "notepad.exe"}'

The action runs against the simulated desktop and is not persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := schemas.Params{}
		if doParams != "" {
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(doParams, &params); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
		}

		a, _, sim, err := buildAgent(false)
		if err != nil {
			return err
		}

		res := a.ExecuteAction(args[0], params)
		if !res.Success {
			return fmt.Errorf("action failed: %s", res.Error)
		}

		fmt.Printf("ok (%s)\n", res.MethodUsed)
		for k, v := range res.Data {
			fmt.Printf("  %s: %v\n", k, v)
		}
		for _, action := range sim.Actions() {
			fmt.Printf("  sim: %s\n", action)
		}
		return nil
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List every registered action",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, _, err := buildAgent(false)
		if err != nil {
			return err
		}
		for _, name := range a.Actions() {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	doCmd.Flags().StringVar(&doParams, "params", "", "action parameters as a JSON object")
	rootCmd.AddCommand(doCmd)
	rootCmd.AddCommand(actionsCmd)
}
