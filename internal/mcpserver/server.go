// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes work journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jdt/internal/exceptions"
	"github.com/starford/jdt/internal/journalservice"
)

const commitFormatURI = "jdt://commit-format"

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *journalservice.Service
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journalservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"jdt",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Build the work journal of a repository: entries grouped by day with time totals. "+
			"Empty parameters fall back to the configured defaults."),
		mcp.WithString("repo", mcp.Description("Repository URL, e.g. https://github.com/owner/repo")),
		mcp.WithString("branch", mcp.Description("Branch name")),
		mcp.WithString("since", mcp.Description("Only commits after this date (YYYY-MM-DD or RFC 3339)")),
	), s.getReport)

	s.mcp.AddTool(mcp.NewTool("list_exceptions",
		mcp.WithDescription("List stored commit patches and commitless entries with the store version."),
	), s.listExceptions)

	s.mcp.AddTool(mcp.NewTool("add_commitless_entry",
		mcp.WithDescription("Record work that has no commit behind it."),
		entryFields()...,
	), s.addCommitless)

	s.mcp.AddTool(mcp.NewTool("patch_commit",
		mcp.WithDescription("Replace the journal entry derived from a commit. "+
			"Read the format via get_commit_format or the "+commitFormatURI+" resource first."),
		append([]mcp.ToolOption{
			mcp.WithString("sha", mcp.Required(), mcp.Description("Commit sha to patch")),
			mcp.WithString("url", mcp.Description("Commit permalink")),
		}, entryFields()...)...,
	), s.patchCommit)

	s.mcp.AddTool(mcp.NewTool("update_exception",
		mcp.WithDescription("Edit a stored exception by id."),
		append([]mcp.ToolOption{
			mcp.WithString("id", mcp.Required(), mcp.Description("Exception id")),
			mcp.WithString("version", mcp.Description("Store version from list_exceptions; the edit fails if the store changed since")),
		}, entryFields()...)...,
	), s.updateException)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through indexed journal entries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_commit_format",
		mcp.WithDescription("Returns the commit message convention the journal is derived from."),
	), s.getCommitFormat)

	s.mcp.AddResource(
		mcp.NewResource(commitFormatURI, "Commit Message Format",
			mcp.WithResourceDescription("How commit messages carry durations and statuses."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCommitFormatResource,
	)

	return s
}

func entryFields() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("name", mcp.Required(), mcp.Description("Entry name")),
		mcp.WithString("date", mcp.Required(), mcp.Description("When the work happened (YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)")),
		mcp.WithString("duration", mcp.Required(), mcp.Description("Minutes spent")),
		mcp.WithString("description", mcp.Description("Longer description")),
		mcp.WithString("status", mcp.Description("Free-text status label")),
		mcp.WithString("author", mcp.Description("Author; defaults to the operator")),
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func fieldsFrom(req mcp.CallToolRequest) (exceptions.Fields, error) {
	f := exceptions.Fields{
		URL:         req.GetString("url", ""),
		Description: req.GetString("description", ""),
		Status:      req.GetString("status", ""),
		Author:      req.GetString("author", ""),
	}
	var err error
	if f.Name, err = req.RequireString("name"); err != nil {
		return f, err
	}
	if f.Date, err = req.RequireString("date"); err != nil {
		return f, err
	}
	duration, err := req.RequireString("duration")
	if err != nil {
		return f, err
	}
	f.Duration = exceptions.Minutes(duration)
	return f, nil
}

func (s *Server) getReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Report(ctx, journalservice.Query{
		RepoURL: req.GetString("repo", ""),
		Branch:  req.GetString("branch", ""),
		Since:   req.GetString("since", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) listExceptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, version, err := s.svc.Exceptions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"exceptions": records,
		"version":    version,
	})
}

func (s *Server) addCommitless(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := fieldsFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.submit(ctx, exceptions.Submission{Kind: exceptions.SubmitCommitless, Fields: f})
}

func (s *Server) patchCommit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sha, err := req.RequireString("sha")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := fieldsFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f.SHA = sha
	return s.submit(ctx, exceptions.Submission{Kind: exceptions.SubmitPatch, Fields: f})
}

func (s *Server) updateException(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := fieldsFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.submit(ctx, exceptions.Submission{
		Kind:    exceptions.SubmitEdit,
		ID:      id,
		IfMatch: req.GetString("version", ""),
		Fields:  f,
	})
}

func (s *Server) submit(ctx context.Context, sub exceptions.Submission) (*mcp.CallToolResult, error) {
	rec, created, err := s.svc.Submit(ctx, sub)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", verb, rec.ID)), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no entries found"), nil
	}
	return jsonResult(results)
}

func (s *Server) getCommitFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CommitFormatContract), nil
}

func (s *Server) readCommitFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      commitFormatURI,
			MIMEType: "text/markdown",
			Text:     CommitFormatContract,
		},
	}, nil
}
