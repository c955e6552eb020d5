package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesonky/invoice-merge-tool/orchestrator"
	"github.com/lesonky/invoice-merge-tool/writer"
)

func TestLoadMissingFileIsZero(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ProjectConfig{}, *cfg)
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	data := `sortMode: modified
outputFileName: march
workers: 4
compression: 6
dedupeStreams: true
jpegQuality: 85
pdfVersion: "1.7"
logLevel: debug
logFormat: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice-merge.yaml"), []byte(data), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "modified", cfg.SortMode)
	assert.Equal(t, "march", cfg.OutputFileName)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 6, cfg.Compression)
	assert.True(t, cfg.DedupeStreams)
	assert.False(t, cfg.PruneUnreachable)
	assert.Equal(t, 85, cfg.JPEGQuality)
	assert.Equal(t, "1.7", cfg.PDFVersion)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadPrefersYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice-merge.yml"), []byte("workers: 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice-merge.yaml"), []byte("workers: 8\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      "workers: [",
		"workers":     "workers: -1",
		"compression": "compression: 12",
		"quality":     "jpegQuality: 101",
		"version":     "pdfVersion: \"2.0\"",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice-merge.yml"), []byte(body), 0o644))
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestApplyOverlaysNonZero(t *testing.T) {
	base := orchestrator.Config{Workers: 1, TempDir: "/scratch"}
	base.Merge.Compression = 3

	cfg := &ProjectConfig{Workers: 4, DedupeStreams: true, JPEGQuality: 80, PDFVersion: "1.7"}
	out := cfg.Apply(base)
	assert.Equal(t, 4, out.Workers)
	assert.Equal(t, 3, out.Merge.Compression)
	assert.True(t, out.Merge.DedupeStreams)
	assert.Equal(t, writer.PDF17, out.Merge.Version)
	assert.Equal(t, 80, out.Builder.JPEGQuality)
	assert.Equal(t, "/scratch", out.TempDir)

	var none *ProjectConfig
	assert.Equal(t, base, none.Apply(base))
}

func TestResolveRequestDefaults(t *testing.T) {
	cfg := &ProjectConfig{SortMode: "modified", OutputFileName: "april"}

	mode, err := cfg.ResolveSortMode("")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.SortByModified, mode)
	mode, err = cfg.ResolveSortMode("custom")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.SortCustom, mode)

	require.NotNil(t, cfg.ResolveOutputName(""))
	assert.Equal(t, "april", *cfg.ResolveOutputName(""))
	assert.Equal(t, "may", *cfg.ResolveOutputName("may"))
	assert.Nil(t, (&ProjectConfig{}).ResolveOutputName(""))
}
