package api

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/hazyhaar/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the pipeline MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, d Deps) {
	names := make([]string, 0, len(d.Units))
	for n := range d.Units {
		names = append(names, n)
	}
	slices.Sort(names)

	registerTool(srv, mcp.NewTool("run_unit",
		mcp.WithDescription("Run one pipeline unit and return its run record (status, elapsed time, metadata)."),
		mcp.WithString("unit", mcp.Required(),
			mcp.Description("Unit to run"),
			mcp.Enum(names...),
		),
	), runUnitEndpoint(d), func(req mcp.CallToolRequest) (any, error) {
		unit, _ := req.GetArguments()["unit"].(string)
		unit = strings.TrimSpace(unit)
		if unit == "" {
			return nil, fmt.Errorf("unit is required")
		}
		return &runUnitReq{Unit: unit}, nil
	})

	registerTool(srv, mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded pipeline runs, newest first."),
		mcp.WithString("unit", mcp.Description("Only runs of this unit")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 50)")),
	), listRunsEndpoint(d), func(req mcp.CallToolRequest) (any, error) {
		args := req.GetArguments()
		unit, _ := args["unit"].(string)
		limit, _ := args["limit"].(float64)
		return &listRunsReq{Unit: unit, Limit: int(limit)}, nil
	})

	registerTool(srv, mcp.NewTool("table_stats",
		mcp.WithDescription("Row counts and date ranges of the raw_ tables in the analytical database."),
	), tableStatsEndpoint(d), func(mcp.CallToolRequest) (any, error) {
		return nil, nil
	})
}

// registerTool exposes an Endpoint as an MCP tool. decode turns the tool
// arguments into the endpoint's request.
func registerTool(srv *server.MCPServer, tool mcp.Tool, endpoint kit.Endpoint, decode func(mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		request, err := decode(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		resp, err := endpoint(ctx, request)
		if err != nil {
			msg := err.Error()
			if rr, ok := resp.(runResponse); ok {
				msg = fmt.Sprintf("run %s %s: %v", rr.Run.ID, rr.Run.Status, err)
			}
			return mcp.NewToolResultError(msg), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}
