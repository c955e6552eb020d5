// Command invoice-merge lists and merges the PDFs and images of a folder.
//
// Usage:
//
//	invoice-merge scan <dir>
//	invoice-merge merge [--sort name|modified|custom] [-o name] <dir> [files...]
//	invoice-merge serve-mcp
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"

	"github.com/lesonky/invoice-merge-tool/config"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
)

// globalOptions apply to every subcommand.
type globalOptions struct {
	LogLevel  string `long:"log-level" description:"debug, info, warn or error (default from config, else warn)"`
	LogFormat string `long:"log-format" choice:"text" choice:"json" description:"log output format"`
	Config    string `long:"config" value-name:"FILE" description:"project config file (default <dir>/invoice-merge.yml)"`
}

var global globalOptions

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	parser := flags.NewParser(&global, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if c, ok := cmd.(contextCommander); ok {
			return c.Run(ctx, args)
		}
		return cmd.Execute(args)
	}
	parser.AddCommand("scan", "List mergeable files",
		"List the PDF and image files directly inside a folder, sorted by name.", &scanCommand{})
	parser.AddCommand("merge", "Merge a folder into one PDF",
		"Merge PDFs and images into a single PDF written inside the folder. "+
			"Without file arguments every supported file in the folder is used.", &mergeCommand{})
	parser.AddCommand("serve-mcp", "Serve MCP tools on stdio",
		"Run a Model Context Protocol server exposing scan_folder and merge_documents over stdio.", &serveCommand{})

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) {
			if ferr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, ferr.Message)
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "invoice-merge: %v\n", ferr.Message)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "invoice-merge: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// contextCommander is implemented by commands that honor cancellation.
type contextCommander interface {
	Run(ctx context.Context, args []string) error
}

func exitCode(err error) int {
	switch mergeerr.KindOf(err) {
	case mergeerr.InvalidFolder, mergeerr.NoFiles, mergeerr.InvalidOutput:
		return 3
	}
	return 1
}

// loadProject reads the --config file or the folder's own config.
func loadProject(dir string) (*config.ProjectConfig, error) {
	if global.Config != "" {
		return config.LoadFile(global.Config)
	}
	return config.Load(dir)
}

// newLogger builds the process logger. Flags win over the project file.
func newLogger(w io.Writer, project *config.ProjectConfig) observability.Logger {
	level, format := global.LogLevel, global.LogFormat
	if level == "" && project != nil {
		level = project.LogLevel
	}
	if format == "" && project != nil {
		format = project.LogFormat
	}
	if level == "" {
		level = "warn"
	}
	return observability.NewSlogLogger(w, level, format)
}
