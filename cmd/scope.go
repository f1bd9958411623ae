/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var (
	scopeIDs      []string
	scopeStrength string
	scopePrompt   string
	scopeResearch bool
)

var scopeUpCmd = newScopeCmd(app.DirectionUp, "scope-up", "Make tasks more thorough")
var scopeDownCmd = newScopeCmd(app.DirectionDown, "scope-down", "Make tasks simpler")

// newScopeCmd builds scope-up and scope-down, which differ only in direction.
func newScopeCmd(dir app.Direction, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`%s. Each task is rewritten by the model; ids, status and
dependencies are kept. Tasks are processed one after another and a failed task
does not stop the rest.

Example:
  taskforge %s --ids 2,5 --strength heavy`, short, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdjustScope(cmd, dir)
		},
	}
}

func init() {
	for _, c := range []*cobra.Command{scopeUpCmd, scopeDownCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringSliceVar(&scopeIDs, "ids", nil, "tasks to adjust (comma separated)")
		c.Flags().StringVar(&scopeStrength, "strength", string(app.StrengthRegular), "light, regular or heavy")
		c.Flags().StringVarP(&scopePrompt, "prompt", "p", "", "additional guidance for the model")
		c.Flags().BoolVarP(&scopeResearch, "research", "r", false, "use the research model")
		_ = c.MarkFlagRequired("ids")
	}
}

func runAdjustScope(cmd *cobra.Command, dir app.Direction) error {
	numbers, err := app.ParseTaskIDs(scopeIDs)
	if err != nil {
		return emit(nil, err, nil)
	}

	header("Adjust Scope", fmt.Sprintf("%s, %s", dir, scopeStrength))

	svc, err := openServices(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := app.NewTaskApp(svc.app).AdjustScope(cmd.Context(), scopeFlag(), numbers, app.AdjustOptions{
		Direction: dir,
		Strength:  app.Strength(scopeStrength),
		Prompt:    scopePrompt,
		Research:  scopeResearch,
	})
	return emit(res, err, func() string { return ui.RenderBatch("Scope "+string(dir), res) })
}
