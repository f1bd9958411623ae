/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio so AI assistants
can run the task pipeline: generate tasks from requirements, expand them,
score complexity, edit dependencies, search and gather context.

Every tool returns the same {success, data|error} JSON envelope as --json.

The server will run until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// toolResponse wraps a tool result. Failures are returned in the result with
// IsError set so the calling model can see them and correct itself.
func toolResponse(r *mcp.ToolResult) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: r.JSON()}},
		IsError: r.IsError(),
	}, nil
}

func runMCPServer(ctx context.Context) error {
	// NOTE: stdout carries JSON-RPC only. Status goes to stderr.
	fmt.Fprintln(os.Stderr, "taskforge MCP server starting...")

	svc, err := openServices(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchPrompts(watchCtx, svc)

	server := newMCPServer(svc.app)
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// newMCPServer registers one tool per operation group.
func newMCPServer(a *app.Context) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    "taskforge-mcp",
		Version: GetVersion(),
	}
	server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintln(os.Stderr, "MCP connection established")
		},
	})

	tasksTool := &mcpsdk.Tool{
		Name: "tasks",
		Description: `Task pipeline tool. Use action parameter to select operation:
- list: List the tasks of a scope
- get: Get one task with its subtasks
- parse_prd: Generate tasks from a requirements document
- expand: Generate subtasks for one task
- expand_all: Expand every pending and in-progress task
- update: Rewrite a task (or append notes with append=true)
- update_subtask: Append timestamped notes to a subtask
- scope_up / scope_down: Make tasks more or less thorough

REQUIRED FIELDS BY ACTION:
- get, expand, update: task_id
- update_subtask: task_id as <task>.<subtask>, prompt
- parse_prd: text (append=true or force=true when the scope has tasks)
- update: prompt
- scope_up, scope_down: task_ids`,
	}
	mcpsdk.AddTool(server, tasksTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.TaskToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(mcp.HandleTaskTool(ctx, a, params.Arguments))
	})

	complexityTool := &mcpsdk.Tool{
		Name: "complexity",
		Description: `Complexity analysis tool. Use action parameter to select operation:
- analyze: Score tasks 1-10 and recommend subtask counts (optional task_ids, from/to, threshold)
- report: Return the stored report with score buckets and expansion recommendations`,
	}
	mcpsdk.AddTool(server, complexityTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.ComplexityToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(mcp.HandleComplexityTool(ctx, a, params.Arguments))
	})

	dependencyTool := &mcpsdk.Tool{
		Name: "dependencies",
		Description: `Dependency graph tool. Use action parameter to select operation:
- add: Make task_id depend on depends_on (cycles and self references are rejected)
- remove: Remove the edge task_id -> depends_on
- validate: Report missing targets, self references and cycles`,
	}
	mcpsdk.AddTool(server, dependencyTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.DependencyToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(mcp.HandleDependencyTool(ctx, a, params.Arguments))
	})

	searchTool := &mcpsdk.Tool{
		Name:        "search",
		Description: `Rank tasks and subtasks against a query. Use {"query":"search term"}. Results are deterministic.`,
	}
	mcpsdk.AddTool(server, searchTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.SearchToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(mcp.HandleSearchTool(ctx, a, params.Arguments))
	})

	contextTool := &mcpsdk.Tool{
		Name:        "context",
		Description: "Assemble a context block from task ids, files, a note and the project tree, with a token breakdown.",
	}
	mcpsdk.AddTool(server, contextTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.ContextToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return toolResponse(mcp.HandleContextTool(ctx, a, params.Arguments))
	})

	return server
}
