package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lesonky/invoice-merge-tool/config"
	"github.com/lesonky/invoice-merge-tool/folder"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/orchestrator"
)

// Service handles MCP tool calls. Each merge builds its orchestrator from
// base overlaid with the folder's invoice-merge.yml.
type Service struct {
	base orchestrator.Config
	log  observability.Logger
}

// NewService creates a Service with the given base configuration.
func NewService(base orchestrator.Config) *Service {
	return &Service{base: base, log: observability.OrNop(base.Logger)}
}

// ScanFolder lists the mergeable files of a folder.
func (s *Service) ScanFolder(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ScanFolderInput,
) (*mcp.CallToolResult, ScanFolderOutput, error) {
	if input.FolderPath == "" {
		return nil, ScanFolderOutput{}, fmt.Errorf("folderPath is required")
	}
	files, err := folder.Scan(input.FolderPath)
	if err != nil {
		return nil, ScanFolderOutput{}, err
	}
	return nil, ScanFolderOutput{Files: files}, nil
}

// MergeDocuments merges the requested files into one PDF inside the folder.
// Run failures are reported in the output rather than as tool errors.
func (s *Service) MergeDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeDocumentsInput,
) (*mcp.CallToolResult, MergeDocumentsOutput, error) {
	if input.FolderPath == "" {
		return nil, MergeDocumentsOutput{}, fmt.Errorf("folderPath is required")
	}
	project, err := config.Load(input.FolderPath)
	if err != nil {
		return nil, MergeDocumentsOutput{}, fmt.Errorf("load project config: %w", err)
	}
	mode, err := project.ResolveSortMode(input.SortMode)
	if err != nil {
		return nil, MergeDocumentsOutput{}, err
	}

	files, err := s.entries(input)
	if err != nil {
		return failed(err)
	}

	orch := orchestrator.New(orchestrator.WithConfig(project.Apply(s.base)))
	outcome, err := orch.Run(ctx, orchestrator.Request{
		FolderPath:     input.FolderPath,
		Files:          files,
		SortMode:       mode,
		OutputFileName: project.ResolveOutputName(input.OutputFileName),
	})
	if err != nil {
		s.log.Warn("merge_documents failed", observability.String("folder", input.FolderPath), observability.Error("error", err))
		return failed(err)
	}

	out := MergeDocumentsOutput{
		Success:     outcome.Success,
		OutputPath:  outcome.OutputPath,
		FailedFiles: outcome.FailedFiles,
	}
	if outcome.Message != nil {
		out.Message = *outcome.Message
	}
	return nil, out, nil
}

func (s *Service) entries(input MergeDocumentsInput) ([]folder.Entry, error) {
	if len(input.Files) == 0 {
		return folder.Scan(input.FolderPath)
	}
	return folder.Resolve(input.FolderPath, input.Files), nil
}

func failed(err error) (*mcp.CallToolResult, MergeDocumentsOutput, error) {
	return nil, MergeDocumentsOutput{
		FailedFiles: []string{},
		Message:     err.Error(),
		ErrorKind:   mergeerr.KindOf(err).String(),
	}, nil
}
