package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// DefaultMaxResultBytes caps rendered tool output so a pathological listing
// cannot flood the transport.
const DefaultMaxResultBytes = 256 * 1024

const truncationMarker = "\n... (result truncated)"

// Tools registers the GitLab operations on an MCP server.
type Tools struct {
	factory        *ClientFactory
	maxResultBytes int
}

// NewTools creates the tool set. maxResultBytes <= 0 selects the default.
func NewTools(factory *ClientFactory, maxResultBytes int) *Tools {
	if maxResultBytes <= 0 {
		maxResultBytes = DefaultMaxResultBytes
	}
	return &Tools{factory: factory, maxResultBytes: maxResultBytes}
}

// Register adds every tool to the server.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Get a GitLab project by its path or numeric ID"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
	), t.handleGetProject)

	s.AddTool(mcp.NewTool("list_project_issues",
		mcp.WithDescription("List issues in a GitLab project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
		mcp.WithString("state", mcp.Description("Filter by state: opened or closed")),
		mcp.WithString("labels", mcp.Description("Comma-separated label names to filter by")),
		mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		mcp.WithNumber("per_page", mcp.Description("Results per page (default 20)")),
	), t.handleListProjectIssues)

	s.AddTool(mcp.NewTool("get_issue",
		mcp.WithDescription("Get a single issue by its project-local IID"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
		mcp.WithNumber("issue_iid", mcp.Required(), mcp.Description("Issue IID within the project")),
	), t.handleGetIssue)

	s.AddTool(mcp.NewTool("create_issue",
		mcp.WithDescription("Create a new issue in a GitLab project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description (GitLab-flavored Markdown)")),
		mcp.WithString("labels", mcp.Description("Comma-separated label names to apply")),
	), t.handleCreateIssue)

	s.AddTool(mcp.NewTool("get_merge_request",
		mcp.WithDescription("Get a single merge request by its project-local IID"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
		mcp.WithNumber("merge_request_iid", mcp.Required(), mcp.Description("Merge request IID within the project")),
	), t.handleGetMergeRequest)

	s.AddTool(mcp.NewTool("list_merge_requests",
		mcp.WithDescription("List merge requests in a GitLab project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project path (group/name) or numeric ID")),
		mcp.WithString("state", mcp.Description("Filter by state: opened, closed, locked or merged")),
		mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		mcp.WithNumber("per_page", mcp.Description("Results per page (default 20)")),
	), t.handleListMergeRequests)
}

// clientFromContext builds the upstream client for this call from the
// credentials the dispatch layer attached.
func (t *Tools) clientFromContext(ctx context.Context) (*gitlab.Client, error) {
	auth, ok := creds.SessionAuthFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no credentials resolved for this call")
	}
	return t.factory.ClientFor(auth)
}

// render serializes an API result, enforcing the output byte ceiling.
func (t *Tools) render(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}
	out := string(data)
	if len(out) > t.maxResultBytes {
		out = out[:t.maxResultBytes] + truncationMarker
		logging.Debug("GitLabTools", "Result truncated at %d bytes", t.maxResultBytes)
	}
	return mcp.NewToolResultText(out), nil
}

// intArg reads an optional numeric argument. JSON numbers arrive as float64.
func intArg(request mcp.CallToolRequest, key string, fallback int) int {
	if raw, ok := request.GetArguments()[key]; ok {
		if f, ok := raw.(float64); ok {
			return int(f)
		}
	}
	return fallback
}

// requireIntArg reads a required numeric argument.
func requireIntArg(request mcp.CallToolRequest, key string) (int, error) {
	raw, ok := request.GetArguments()[key]
	if !ok {
		return 0, fmt.Errorf("%s argument is required", key)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return int(f), nil
}

// labelOptions parses the optional comma-separated labels argument.
func labelOptions(request mcp.CallToolRequest) *gitlab.LabelOptions {
	raw, ok := request.GetArguments()["labels"].(string)
	if !ok || raw == "" {
		return nil
	}
	labels := gitlab.LabelOptions{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return &labels
}

func (t *Tools) handleGetProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, resp, err := client.Projects.GetProject(project, nil, gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}

func (t *Tools) handleListProjectIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opt := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{
			Page:    int64(intArg(request, "page", 1)),
			PerPage: int64(intArg(request, "per_page", 20)),
		},
		Labels: labelOptions(request),
	}
	if state, ok := request.GetArguments()["state"].(string); ok && state != "" {
		opt.State = gitlab.Ptr(state)
	}

	result, resp, err := client.Issues.ListProjectIssues(project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}

func (t *Tools) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}
	iid, err := requireIntArg(request, "issue_iid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, resp, err := client.Issues.GetIssue(project, int64(iid), gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}

func (t *Tools) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title argument is required"), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opt := &gitlab.CreateIssueOptions{
		Title:  gitlab.Ptr(title),
		Labels: labelOptions(request),
	}
	if desc, ok := request.GetArguments()["description"].(string); ok && desc != "" {
		opt.Description = gitlab.Ptr(desc)
	}

	result, resp, err := client.Issues.CreateIssue(project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}

func (t *Tools) handleGetMergeRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}
	iid, err := requireIntArg(request, "merge_request_iid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, resp, err := client.MergeRequests.GetMergeRequest(project, int64(iid), nil, gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}

func (t *Tools) handleListMergeRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("project argument is required"), nil
	}

	client, err := t.clientFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opt := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{
			Page:    int64(intArg(request, "page", 1)),
			PerPage: int64(intArg(request, "per_page", 20)),
		},
	}
	if state, ok := request.GetArguments()["state"].(string); ok && state != "" {
		opt.State = gitlab.Ptr(state)
	}

	result, resp, err := client.MergeRequests.ListProjectMergeRequests(project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return mcp.NewToolResultError(wrapAPIError(resp, err).Error()), nil
	}
	return t.render(result)
}
