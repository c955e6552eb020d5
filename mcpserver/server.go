// Package mcpserver exposes folder scanning and merging as MCP tools.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// New creates an MCP server with the scan_folder and merge_documents tools
// registered.
func New(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "invoice-merge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_folder",
		Description: "List the PDF and image files in a folder that can be merged, sorted by name.",
	}, svc.ScanFolder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_documents",
		Description: "Merge PDFs and images from a folder into one PDF written to that folder. Returns the output path and any files that could not be processed.",
	}, svc.MergeDocuments)

	return server
}

// RunStdio runs the server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
