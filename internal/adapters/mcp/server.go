package mcpadapter

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
)

const (
	serverName        = "fault-diagnosis"
	toolDiagnoseFault = "diagnose_fault"
)

// Server exposes the diagnosis pipeline as an MCP tool over stdio.
type Server struct {
	diagnoser    ports.FaultDiagnoser
	defaultScope string
	mcp          *server.MCPServer
}

// NewServer registers diagnose_fault. defaultScope applies when a call names no ship.
func NewServer(diagnoser ports.FaultDiagnoser, version, defaultScope string) *Server {
	s := &Server{
		diagnoser:    diagnoser,
		defaultScope: domain.ScopeLabel(defaultScope),
		mcp:          server.NewMCPServer(serverName, version),
	}

	tool := mcp.NewTool(toolDiagnoseFault,
		mcp.WithDescription("Diagnose a shipboard equipment fault from a free-text description using similar historical faults."),
		mcp.WithString("fault_text",
			mcp.Required(),
			mcp.Description("Free-text description of the observed fault, e.g. \"Cooling pump overheating\"."),
		),
		mcp.WithString("ship",
			mcp.Description("Restrict similar faults to this ship. Omit or use \"All\" for the whole fleet."),
		),
	)
	s.mcp.AddTool(tool, s.handleDiagnose)
	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleDiagnose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	faultText, err := req.RequireString("fault_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope := req.GetString("ship", s.defaultScope)

	d, err := s.diagnoser.Diagnose(ctx, faultText, scope)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmptyInput) {
			return mcp.NewToolResultError("fault_text must not be empty"), nil
		}
		slog.Error("mcp_diagnose_failed", "error", err)
		return mcp.NewToolResultError("diagnosis failed"), nil
	}
	return mcp.NewToolResultText(d.Markdown()), nil
}
