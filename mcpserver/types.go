package mcpserver

import "github.com/lesonky/invoice-merge-tool/folder"

// ScanFolderInput is the input for the scan_folder tool.
type ScanFolderInput struct {
	FolderPath string `json:"folderPath" jsonschema:"absolute path of the folder to list"`
}

// ScanFolderOutput is the output for the scan_folder tool.
type ScanFolderOutput struct {
	Files []folder.Entry `json:"files"`
}

// MergeDocumentsInput is the input for the merge_documents tool.
type MergeDocumentsInput struct {
	FolderPath     string   `json:"folderPath" jsonschema:"absolute path of the folder holding the inputs; the output is written here"`
	Files          []string `json:"files,omitempty" jsonschema:"file names or paths inside the folder, in the desired order when sortMode is custom. Default: every supported file"`
	SortMode       string   `json:"sortMode,omitempty" jsonschema:"name, modified or custom. Default: name"`
	OutputFileName string   `json:"outputFileName,omitempty" jsonschema:"output file name; .pdf is appended when missing. Default: merged_invoices_<timestamp>.pdf"`
}

// MergeDocumentsOutput is the output for the merge_documents tool.
type MergeDocumentsOutput struct {
	Success     bool     `json:"success"`
	OutputPath  string   `json:"outputPath,omitempty"`
	FailedFiles []string `json:"failedFiles"`
	Message     string   `json:"message,omitempty"`
	// ErrorKind is set when the run ended without an output file.
	ErrorKind string `json:"errorKind,omitempty"`
}
