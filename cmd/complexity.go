/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var analyzeComplexityCmd = &cobra.Command{
	Use:   "analyze-complexity",
	Short: "Score task complexity and recommend subtask counts",
	Long: `Ask the model to score each task from 1 to 10 and recommend how many
subtasks it needs. Results are merged into the scope's complexity report:
entries of earlier runs survive for tasks that were not analyzed again.

Examples:
  taskforge analyze-complexity
  taskforge analyze-complexity --ids 3,5,8
  taskforge analyze-complexity --from 10 --to 20 --threshold 7`,
	Args: cobra.NoArgs,
	RunE: runAnalyzeComplexity,
}

var complexityReportCmd = &cobra.Command{
	Use:   "complexity-report",
	Short: "Show the stored complexity report",
	Args:  cobra.NoArgs,
	RunE:  runComplexityReport,
}

var (
	analyzeIDs       []string
	analyzeFrom      int
	analyzeTo        int
	analyzeThreshold int
	analyzeResearch  bool
)

func init() {
	rootCmd.AddCommand(analyzeComplexityCmd)
	rootCmd.AddCommand(complexityReportCmd)
	analyzeComplexityCmd.Flags().StringSliceVar(&analyzeIDs, "ids", nil, "tasks to analyze (comma separated)")
	analyzeComplexityCmd.Flags().IntVar(&analyzeFrom, "from", 0, "first task of a range")
	analyzeComplexityCmd.Flags().IntVar(&analyzeTo, "to", 0, "last task of a range")
	analyzeComplexityCmd.Flags().IntVarP(&analyzeThreshold, "threshold", "t", 0, "score at or above which expansion is recommended (1-10)")
	analyzeComplexityCmd.Flags().BoolVarP(&analyzeResearch, "research", "r", false, "use the research model")
}

func runAnalyzeComplexity(cmd *cobra.Command, args []string) error {
	ids, err := app.ParseTaskIDs(analyzeIDs)
	if err != nil {
		return emit(nil, err, nil)
	}

	header("Complexity Analysis", "")

	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	progress("Analyzing...")
	res, err := app.NewComplexityApp(svc.app).AnalyzeComplexity(cmd.Context(), scopeFlag(), app.AnalyzeOptions{
		TaskIDs:   ids,
		From:      analyzeFrom,
		To:        analyzeTo,
		Threshold: analyzeThreshold,
		Research:  analyzeResearch,
	})
	if err != nil {
		progress(" failed\n")
	} else {
		progress(" done\n")
	}
	return emit(res, err, func() string { return ui.RenderAnalysis(res) })
}

func runComplexityReport(cmd *cobra.Command, args []string) error {
	header("Complexity Report", "")

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	view, err := app.NewComplexityApp(svc.app).ComplexityReport(cmd.Context(), scopeFlag())
	return emit(view, err, func() string { return ui.RenderReport(view) })
}
