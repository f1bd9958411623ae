/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var updateTaskCmd = &cobra.Command{
	Use:   "update-task <prompt>",
	Short: "Rewrite a task with new information",
	Long: `Apply new information to a task. By default the model rewrites the task;
its id, status and dependencies are kept and finished subtasks are preserved.
With --append the model writes notes that are appended to the task details
inside a timestamped block.

Examples:
  taskforge update-task --id 3 "We switched from REST to gRPC"
  taskforge update-task --id 3 --append "Rate limits are 100 req/s"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateTask,
}

var updateSubtaskCmd = &cobra.Command{
	Use:   "update-subtask <prompt>",
	Short: "Append timestamped notes to a subtask",
	Long: `Generate notes from the prompt and append them to a subtask's details.

Example:
  taskforge update-subtask --id 3.2 "The endpoint needs pagination"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateSubtask,
}

var (
	updateID           int
	updateAppend       bool
	updateResearch     bool
	updateStatusChange bool
	subtaskRef         string
	subtaskResearch    bool
)

func init() {
	rootCmd.AddCommand(updateTaskCmd)
	rootCmd.AddCommand(updateSubtaskCmd)

	updateTaskCmd.Flags().IntVarP(&updateID, "id", "i", 0, "task to update")
	updateTaskCmd.Flags().BoolVar(&updateAppend, "append", false, "append notes instead of rewriting the task")
	updateTaskCmd.Flags().BoolVarP(&updateResearch, "research", "r", false, "use the research model")
	updateTaskCmd.Flags().BoolVar(&updateStatusChange, "allow-status-change", false, "let the model change the task status")
	_ = updateTaskCmd.MarkFlagRequired("id")

	updateSubtaskCmd.Flags().StringVarP(&subtaskRef, "id", "i", "", "subtask to update, as <task>.<subtask>")
	updateSubtaskCmd.Flags().BoolVarP(&subtaskResearch, "research", "r", false, "use the research model")
	_ = updateSubtaskCmd.MarkFlagRequired("id")
}

func runUpdateTask(cmd *cobra.Command, args []string) error {
	if updateID <= 0 {
		return emit(nil, apperr.Validation("updateTask", "--id must be a positive task number"), nil)
	}

	prompt := strings.Join(args, " ")
	crashReporter.SetInput(prompt)
	header("Update Task", "")

	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	progress("Updating task %d...\n", updateID)
	res, err := app.NewTaskApp(svc.app).UpdateTask(cmd.Context(), scopeFlag(), updateID, prompt, app.UpdateOptions{
		Append:            updateAppend,
		Research:          updateResearch,
		AllowStatusChange: updateStatusChange,
	})
	return emit(res, err, func() string { return ui.RenderUpdate(res) })
}

func runUpdateSubtask(cmd *cobra.Command, args []string) error {
	header("Update Subtask", subtaskRef)

	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	progress("Updating subtask %s...\n", subtaskRef)
	res, err := app.NewTaskApp(svc.app).UpdateSubtask(cmd.Context(), scopeFlag(), subtaskRef, strings.Join(args, " "), app.UpdateSubtaskOptions{
		Research: subtaskResearch,
	})
	return emit(res, err, func() string { return ui.RenderUpdate(res) })
}
