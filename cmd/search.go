/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/config"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find tasks and subtasks relevant to a query",
	Long: `Rank the scope's tasks and subtasks by keyword overlap, category match,
fuzzy title match and recency. The same query always gives the same order.

Examples:
  taskforge search "token refresh"
  taskforge search "login form" --limit 3 --recent`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Assemble a context block from tasks, files and notes",
	Long: `Build the context string the model would see: selected tasks, file
contents, free text and an optional project tree, with a token breakdown.

Examples:
  taskforge context --tasks 3,3.2 --files internal/auth/token.go
  taskforge context --tasks 5 --tree --format ai`,
	Args: cobra.NoArgs,
	RunE: runContext,
}

var (
	searchLimit      int
	searchRecent     bool
	searchCategories bool

	contextTasks  []string
	contextFiles  []string
	contextNote   string
	contextTree   bool
	contextFormat string
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "maximum results (default from ranker.maxResults)")
	searchCmd.Flags().BoolVar(&searchRecent, "recent", false, "boost recently changed tasks")
	searchCmd.Flags().BoolVar(&searchCategories, "categories", true, "boost tasks in the query's categories")

	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringSliceVar(&contextTasks, "tasks", nil, "task or subtask ids (comma separated)")
	contextCmd.Flags().StringSliceVar(&contextFiles, "files", nil, "files to include, relative to context.root")
	contextCmd.Flags().StringVar(&contextNote, "note", "", "free text to include")
	contextCmd.Flags().BoolVar(&contextTree, "tree", false, "include the project tree")
	contextCmd.Flags().StringVar(&contextFormat, "format", string(retrieval.FormatHuman), "human or ai")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	crashReporter.SetInput(query)
	header("Search", fmt.Sprintf("Query: %q", query))

	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	limit := searchLimit
	if limit == 0 {
		limit = config.LoadRankerConfig().MaxResults
	}
	res, err := app.NewSearchApp(svc.app).SearchTasks(cmd.Context(), scopeFlag(), query, app.SearchOptions{
		MaxResults:             limit,
		IncludeRecent:          searchRecent,
		IncludeCategoryMatches: searchCategories,
	})
	return emit(res, err, func() string { return ui.RenderSearch(res) })
}

func runContext(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer svc.Close()

	got, err := app.NewSearchApp(svc.app).GatherContext(cmd.Context(), retrieval.GatherRequest{
		Scope:              scopeFlag(),
		TaskIDs:            contextTasks,
		FilePaths:          contextFiles,
		CustomContext:      contextNote,
		IncludeProjectTree: contextTree,
		Format:             retrieval.Format(contextFormat),
	})
	return emit(got, err, func() string {
		var sb strings.Builder
		sb.WriteString(got.Context)
		if !strings.HasSuffix(got.Context, "\n") {
			sb.WriteString("\n")
		}
		if !isQuiet() {
			sb.WriteString("\n" + ui.StyleSubtle.Render(fmt.Sprintf("~%d tokens", got.Breakdown.Total)) + "\n")
			for _, s := range got.Skipped {
				sb.WriteString(ui.StyleWarning.Render("skipped "+s) + "\n")
			}
		}
		return sb.String()
	})
}
