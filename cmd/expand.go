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

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Break a task into subtasks",
	Long: `Generate subtasks for one task (--id) or for every pending and in-progress
task in the scope (--all).

Tasks that already have subtasks are skipped unless --force is given, in which
case their subtasks are regenerated. Without --num the complexity report's
recommendation is used when one exists.

Examples:
  taskforge expand --id 4
  taskforge expand --id 4 --num 6 --prompt "focus on error handling"
  taskforge expand --all --force --research`,
	Args: cobra.NoArgs,
	RunE: runExpand,
}

var (
	expandID       int
	expandAll      bool
	expandForce    bool
	expandNum      int
	expandPrompt   string
	expandResearch bool
)

func init() {
	rootCmd.AddCommand(expandCmd)
	expandCmd.Flags().IntVarP(&expandID, "id", "i", 0, "task to expand")
	expandCmd.Flags().BoolVarP(&expandAll, "all", "a", false, "expand every pending and in-progress task")
	expandCmd.Flags().BoolVarP(&expandForce, "force", "f", false, "regenerate existing subtasks")
	expandCmd.Flags().IntVarP(&expandNum, "num", "n", 0, "number of subtasks (default from the complexity report or config)")
	expandCmd.Flags().StringVarP(&expandPrompt, "prompt", "p", "", "additional context for the model")
	expandCmd.Flags().BoolVarP(&expandResearch, "research", "r", false, "use the research model")
}

func runExpand(cmd *cobra.Command, args []string) error {
	const op = "expandTask"
	switch {
	case expandAll && expandID != 0:
		return emit(nil, apperr.Validation(op, "--id and --all are mutually exclusive"), nil)
	case !expandAll && expandID <= 0:
		return emit(nil, apperr.Validation(op, "give a task with --id or use --all"), nil)
	}

	header("Expand", "")

	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := app.ExpandOptions{
		SubtaskCount: expandNum,
		Prompt:       expandPrompt,
		Research:     expandResearch,
		Force:        expandForce,
	}
	tasks := app.NewTaskApp(svc.app)

	if expandAll {
		progress("Expanding all eligible tasks...\n")
		res, err := tasks.ExpandAll(cmd.Context(), scopeFlag(), opts)
		return emit(res, err, func() string { return ui.RenderBatch("Expand all", res) })
	}

	progress("Expanding task %d...\n", expandID)
	res, err := tasks.ExpandTask(cmd.Context(), scopeFlag(), expandID, opts)
	return emit(res, err, func() string { return ui.RenderExpand(res) })
}
