/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var parsePRDCmd = &cobra.Command{
	Use:   "parse-prd <file>",
	Short: "Generate tasks from a requirements document",
	Long: `Generate a dependency-ordered task list from a requirements document (PRD).

Use "-" to read the document from stdin. A scope that already holds tasks needs
--append (number new tasks after the existing ones) or --force (replace them).

Examples:
  taskforge parse-prd docs/prd.md --num 12
  taskforge parse-prd docs/phase2.md --append --scope backend
  cat prd.md | taskforge parse-prd - --force --research`,
	Args: cobra.ExactArgs(1),
	RunE: runParsePRD,
}

var (
	prdNum      int
	prdAppend   bool
	prdForce    bool
	prdResearch bool
)

func init() {
	rootCmd.AddCommand(parsePRDCmd)
	parsePRDCmd.Flags().IntVarP(&prdNum, "num", "n", 0, "approximate number of tasks to generate (default from pipeline.defaultTaskCount)")
	parsePRDCmd.Flags().BoolVar(&prdAppend, "append", false, "append to the tasks already in the scope")
	parsePRDCmd.Flags().BoolVarP(&prdForce, "force", "f", false, "replace the tasks already in the scope")
	parsePRDCmd.Flags().BoolVarP(&prdResearch, "research", "r", false, "use the research model")
}

func runParsePRD(cmd *cobra.Command, args []string) error {
	crashReporter.SetInput(args[0])
	text, err := readInput(args[0], cmd.InOrStdin())
	if err != nil {
		return emit(nil, apperr.Validation("synthesizeTasks", "%v", err), nil)
	}

	// 1. Header
	header("Parse PRD", args[0])

	// 2. Wire services
	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	// 3. Generate and persist
	progress("Generating tasks...")
	res, err := app.NewTaskApp(svc.app).SynthesizeTasks(cmd.Context(), scopeFlag(), text, prdNum, app.SynthesizeOptions{
		Append:    prdAppend,
		Overwrite: prdForce,
		Research:  prdResearch,
	})
	if err != nil {
		progress(" failed\n")
	} else {
		progress(" done\n")
	}

	// 4. Output
	return emit(res, err, func() string { return ui.RenderSynthesis(res) })
}

// readInput reads a file, or stdin for "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
