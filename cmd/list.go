/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/task"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tasks of a scope",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task with its details and subtasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var listStatus string

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	listCmd.Flags().StringVar(&listStatus, "status", "", "only tasks with this status")
}

func runList(cmd *cobra.Command, args []string) error {
	var want task.TaskStatus
	if listStatus != "" {
		s, ok := task.ParseStatus(listStatus)
		if !ok {
			return emit(nil, apperr.Validation("listTasks", "unknown status %q", listStatus), nil)
		}
		want = s
	}

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	tasks, err := app.NewTaskApp(svc.app).ListTasks(cmd.Context(), scopeFlag())
	if err == nil && want != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	return emit(tasks, err, func() string { return ui.RenderTasks(tasks) })
}

func runShow(cmd *cobra.Command, args []string) error {
	number, err := strconv.Atoi(args[0])
	if err != nil {
		return emit(nil, apperr.Validation("getTask", "invalid task id %q", args[0]), nil)
	}

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	t, err := app.NewTaskApp(svc.app).GetTask(cmd.Context(), scopeFlag(), number)
	return emit(t, err, func() string { return ui.RenderTask(t) + "\n" })
}
