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

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit trail of a scope",
	Long: `List the operations that changed a scope, newest first: task synthesis,
expansion, updates and dependency edits.

Example:
  taskforge history --limit 20`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return emit(nil, apperr.Validation("listHistory", "limit must not be negative, got %d", historyLimit), nil)
	}

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	entries, err := app.NewTaskApp(svc.app).History(cmd.Context(), scopeFlag(), historyLimit)
	return emit(entries, err, func() string { return ui.RenderHistory(entries) })
}
