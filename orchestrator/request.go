package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lesonky/invoice-merge-tool/folder"
)

// SortMode selects how Request.Files is ordered before processing.
type SortMode string

const (
	SortByName     SortMode = "name"
	SortByModified SortMode = "modified"
	SortCustom     SortMode = "custom"
)

// ParseSortMode accepts the mode names and their long aliases
// (fileNameAsc, modifiedAsc), case-insensitively. Empty means name.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name", "filename", "filenameasc", "file_name_asc":
		return SortByName, nil
	case "modified", "mtime", "modifiedasc", "modified_asc":
		return SortByModified, nil
	case "custom", "none":
		return SortCustom, nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

func (m *SortMode) UnmarshalText(b []byte) error {
	v, err := ParseSortMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Request describes one merge run.
type Request struct {
	FolderPath     string         `json:"folderPath"`
	Files          []folder.Entry `json:"files"`
	SortMode       SortMode       `json:"sortMode"`
	OutputFileName *string        `json:"outputFileName,omitempty"`
}

// Outcome is returned when an output file was produced. Success is false
// only when every input failed, which cannot happen together with an output,
// but is kept for hosts that inspect it.
type Outcome struct {
	Success     bool     `json:"success"`
	OutputPath  string   `json:"outputPath"`
	FailedFiles []string `json:"failedFiles"`
	Message     *string  `json:"message,omitempty"`
}

// sortEntries orders files in place according to mode.
func sortEntries(files []folder.Entry, mode SortMode) {
	switch mode {
	case SortByName, "":
		sort.SliceStable(files, func(i, j int) bool {
			return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
		})
	case SortByModified:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].ModifiedTS < files[j].ModifiedTS
		})
	}
}

// OutputName resolves the output file name: a blank name becomes
// merged_invoices_YYYYMMDD_HHMM.pdf in local time, anything else gets .pdf
// appended unless it already ends with it.
func OutputName(name *string, now time.Time) string {
	if name != nil {
		if n := strings.TrimSpace(*name); n != "" {
			if strings.HasSuffix(strings.ToLower(n), ".pdf") {
				return n
			}
			return n + ".pdf"
		}
	}
	return "merged_invoices_" + now.Local().Format("20060102_1504") + ".pdf"
}

var (
	errOutputPath      = errors.New("output file name must not contain a path")
	errOutputOverwrite = errors.New("output file would overwrite an input file")
)

// checkOutputName accepts bare file names only. Both separators are refused
// so a name sent from another platform cannot climb out of the folder.
func checkOutputName(name string) error {
	if strings.ContainsAny(name, `/\`) || filepath.VolumeName(name) != "" || filepath.Base(name) != name {
		return errOutputPath
	}
	return nil
}

func failureMessage(n int) *string {
	if n == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d file(s) failed to process", n)
	return &msg
}
