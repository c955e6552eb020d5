package config

import (
	"github.com/lesonky/invoice-merge-tool/orchestrator"
	"github.com/lesonky/invoice-merge-tool/writer"
)

// Apply overlays the non-zero file settings onto base.
func (c *ProjectConfig) Apply(base orchestrator.Config) orchestrator.Config {
	out := base
	if c == nil {
		return out
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.Compression > 0 {
		out.Merge.Compression = c.Compression
		out.Builder.Compression = c.Compression
	}
	if c.DedupeStreams {
		out.Merge.DedupeStreams = true
	}
	if c.PruneUnreachable {
		out.Merge.PruneUnreachable = true
	}
	if c.PDFVersion != "" {
		out.Merge.Version = writer.PDFVersion(c.PDFVersion)
	}
	if c.JPEGQuality > 0 {
		out.Builder.JPEGQuality = c.JPEGQuality
	}
	if c.TempDir != "" {
		out.TempDir = c.TempDir
	}
	return out
}

// ResolveSortMode returns the request's mode when set, else the file's, parsed.
func (c *ProjectConfig) ResolveSortMode(requested string) (orchestrator.SortMode, error) {
	if requested == "" && c != nil {
		requested = c.SortMode
	}
	return orchestrator.ParseSortMode(requested)
}

// ResolveOutputName returns requested when non-empty, else the file's
// outputFileName, else nil for the generated default.
func (c *ProjectConfig) ResolveOutputName(requested string) *string {
	if requested == "" && c != nil {
		requested = c.OutputFileName
	}
	if requested == "" {
		return nil
	}
	return &requested
}
