package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"tessera/internal/index"
	"tessera/internal/retriever"
	"tessera/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing project retrieval tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r := retriever.New(st, newEmbedder(), cfg.Scan.Workers, logger)
	coord := index.New(st, newEmbedder(), scanConfig(), cfg.Scan.Workers, logger)

	s := mcpserver.NewMCPServer("tessera", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(retrieveContextTool(), makeRetrieveHandler(st, r))
	s.AddTool(reindexProjectTool(), makeReindexHandler(st, coord))
	s.AddTool(listProjectsTool(), makeListProjectsHandler(st))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(st))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func retrieveContextTool() mcp.Tool {
	return mcp.NewTool("retrieve_context",
		mcp.WithDescription("Retrieve the most relevant indexed chunks of a project for a question. Falls back to keyword matching when the embedding model is unavailable. Returns chunk text with file names and line spans."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name as registered with 'tessera project add'"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword question"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 5)"),
		),
	)
}

func reindexProjectTool() mcp.Tool {
	return mcp.NewTool("reindex_project",
		mcp.WithDescription("Rebuild a project's index from its folder. A full replace: every file is re-scanned and re-chunked."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name to reindex"),
		),
	)
}

func listProjectsTool() mcp.Tool {
	return mcp.NewTool("list_projects",
		mcp.WithDescription("List all registered projects with their folder paths and index status."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List the indexed files of a project with their chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name"),
		),
	)
}

// --- Handler factories ---

func makeRetrieveHandler(st store.Store, r *retriever.Retriever) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("project", "")
		query := req.GetString("query", "")
		if name == "" || query == "" {
			return mcp.NewToolResultError("project and query are required"), nil
		}
		k := req.GetInt("k", cfg.Retrieval.TopK)
		if k <= 0 {
			k = cfg.Retrieval.TopK
		}

		project, err := lookupProject(ctx, st, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project %q not found — call list_projects to see registered names", name)), nil
		}

		results, err := r.Retrieve(ctx, project, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatRetrievalResults(query, results)), nil
	}
}

func makeReindexHandler(st store.Store, coord *index.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("project", "")
		if name == "" {
			return mcp.NewToolResultError("project is required"), nil
		}

		project, err := lookupProject(ctx, st, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project %q not found", name)), nil
		}

		stats, err := coord.Reindex(ctx, project)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reindex failed: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Reindexed %q: %d files scanned, %d indexed, %d skipped, %d chunks (%d embedded).",
			project.Name, stats.FilesScanned, stats.FilesIndexed, stats.FilesSkipped, stats.Chunks, stats.Embedded)), nil
	}
}

func makeListProjectsHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := st.ListProjects(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list projects failed: %v", err)), nil
		}
		if len(projects) == 0 {
			return mcp.NewToolResultText("No projects registered."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Projects (%d)\n\n", len(projects))
		for _, p := range projects {
			status := "never indexed"
			if p.LastIndexed != nil {
				status = fmt.Sprintf("%d files, indexed %s", p.TotalFiles, p.LastIndexed.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(&sb, "- **%s** — %s (%s)\n", p.Name, p.FolderPath, status)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeListFilesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("project", "")
		if name == "" {
			return mcp.NewToolResultError("project is required"), nil
		}

		project, err := lookupProject(ctx, st, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project %q not found", name)), nil
		}

		files, err := st.ListFiles(ctx, project.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed files for %s (%d)\n\n", project.Name, len(files))
		for _, f := range files {
			fmt.Fprintf(&sb, "- **%s** (%d bytes, %d chunks)\n", f.RelPath, f.SizeBytes, f.ChunkCount)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatRetrievalResults(query string, results []retriever.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No relevant chunks found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Context for %q (%d chunks)\n\n", query, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`", i+1, r.RelPath)
		if r.StartLine != nil && r.EndLine != nil {
			fmt.Fprintf(&sb, " (lines %d–%d)", *r.StartLine, *r.EndLine)
		}
		fmt.Fprintf(&sb, "\n\n**Score:** %.3f\n\n", r.Score)
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", r.Content)
	}
	return sb.String()
}
