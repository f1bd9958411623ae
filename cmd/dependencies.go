/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var addDependencyCmd = &cobra.Command{
	Use:   "add-dependency",
	Short: "Make a task depend on another",
	Long: `Add a dependency edge. Self references and edges that would create a
cycle are rejected and leave the graph unchanged.

Example:
  taskforge add-dependency --id 5 --depends-on 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDependency(cmd, "addDependency")
	},
}

var removeDependencyCmd = &cobra.Command{
	Use:   "remove-dependency",
	Short: "Remove a dependency edge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDependency(cmd, "removeDependency")
	},
}

var validateDependenciesCmd = &cobra.Command{
	Use:   "validate-dependencies",
	Short: "Report missing targets, self references and cycles",
	Args:  cobra.NoArgs,
	RunE:  runValidateDependencies,
}

var (
	depTaskID    int
	depDependsOn int
)

func init() {
	for _, c := range []*cobra.Command{addDependencyCmd, removeDependencyCmd} {
		rootCmd.AddCommand(c)
		c.Flags().IntVarP(&depTaskID, "id", "i", 0, "dependent task")
		c.Flags().IntVarP(&depDependsOn, "depends-on", "d", 0, "task it depends on")
		_ = c.MarkFlagRequired("id")
		_ = c.MarkFlagRequired("depends-on")
	}
	rootCmd.AddCommand(validateDependenciesCmd)
}

func runDependency(cmd *cobra.Command, op string) error {
	if depTaskID <= 0 || depDependsOn <= 0 {
		return emit(nil, apperr.Validation(op, "--id and --depends-on must be positive task numbers"), nil)
	}

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := app.NewDependencyApp(svc.app)
	var res *app.DependencyResult
	verb := "add"
	if op == "addDependency" {
		res, err = deps.AddDependency(cmd.Context(), scopeFlag(), depTaskID, depDependsOn)
	} else {
		verb = "remove"
		res, err = deps.RemoveDependency(cmd.Context(), scopeFlag(), depTaskID, depDependsOn)
	}
	return emit(res, err, func() string { return ui.RenderDependency(verb, res) })
}

func runValidateDependencies(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := app.NewDependencyApp(svc.app).ValidateDependencies(cmd.Context(), scopeFlag())
	if err := emit(report, err, func() string { return ui.RenderValidation(report) }); err != nil {
		return err
	}
	if !report.Valid {
		return errReported
	}
	return nil
}
