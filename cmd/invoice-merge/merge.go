package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/lesonky/invoice-merge-tool/config"
	"github.com/lesonky/invoice-merge-tool/folder"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/orchestrator"
)

type mergeCommand struct {
	Sort        string `long:"sort" value-name:"MODE" description:"name, modified or custom (default name, custom when files are listed)"`
	Output      string `short:"o" long:"output" value-name:"NAME" description:"output file name inside the folder; .pdf is appended when missing"`
	Workers     int    `long:"workers" description:"convert images concurrently with this many workers"`
	Compression int    `long:"compression" description:"zlib level 1-9 for uncompressed streams"`
	Dedupe      bool   `long:"dedupe" description:"store identical streams once"`
	Prune       bool   `long:"prune" description:"drop objects not reachable from the merged catalog"`
	JPEGQuality int    `long:"jpeg-quality" description:"embed converted images as JPEG at this quality instead of lossless"`
	JSON        bool   `long:"json" description:"print the outcome as JSON"`
	Plain       bool   `long:"plain" description:"print progress lines instead of the interactive progress bar"`
	Args        struct {
		Dir   string   `positional-arg-name:"dir" required:"yes"`
		Files []string `positional-arg-name:"files"`
	} `positional-args:"yes"`
}

func (c *mergeCommand) Execute(args []string) error {
	return c.Run(context.Background(), args)
}

func (c *mergeCommand) Run(ctx context.Context, _ []string) error {
	project, err := loadProject(c.Args.Dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	interactive := !c.JSON && !c.Plain && isatty.IsTerminal(os.Stdout.Fd())
	var logBuf bytes.Buffer
	var logOut io.Writer = os.Stderr
	if interactive {
		// The progress bar owns the terminal; logs are flushed once it exits.
		logOut = &logBuf
	}
	log := newLogger(logOut, project)
	defer func() {
		if logBuf.Len() > 0 {
			os.Stderr.Write(logBuf.Bytes())
		}
	}()

	cfg := c.apply(project.Apply(orchestrator.Config{Logger: log}))
	req, err := c.request(project)
	if err != nil {
		return err
	}

	var (
		outcome *orchestrator.Outcome
		runErr  error
	)
	switch {
	case interactive:
		outcome, runErr = runWithProgressBar(ctx, cfg, req)
	case c.JSON:
		outcome, runErr = orchestrator.New(orchestrator.WithConfig(cfg)).Run(ctx, req)
	default:
		cfg.Progress = func(e orchestrator.ProgressEvent) {
			fmt.Fprintln(os.Stderr, dimStyle.Render(orchestrator.FormatProgress(e)))
		}
		outcome, runErr = orchestrator.New(orchestrator.WithConfig(cfg)).Run(ctx, req)
	}
	if runErr != nil {
		log.Error("merge failed", observability.String("folder", c.Args.Dir), observability.Error("error", runErr))
		if !c.JSON {
			fmt.Fprintln(os.Stderr, renderError(runErr))
		}
		return runErr
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}
	fmt.Println(renderOutcome(outcome))
	return nil
}

// apply layers command-line flags over the config-derived settings.
func (c *mergeCommand) apply(cfg orchestrator.Config) orchestrator.Config {
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.Compression > 0 {
		cfg.Merge.Compression = c.Compression
		cfg.Builder.Compression = c.Compression
	}
	if c.Dedupe {
		cfg.Merge.DedupeStreams = true
	}
	if c.Prune {
		cfg.Merge.PruneUnreachable = true
	}
	if c.JPEGQuality > 0 {
		cfg.Builder.JPEGQuality = c.JPEGQuality
	}
	return cfg
}

func (c *mergeCommand) request(project *config.ProjectConfig) (orchestrator.Request, error) {
	sortFlag := c.Sort
	if sortFlag == "" && len(c.Args.Files) > 0 {
		sortFlag = string(orchestrator.SortCustom)
	}
	mode, err := project.ResolveSortMode(sortFlag)
	if err != nil {
		return orchestrator.Request{}, err
	}
	var files []folder.Entry
	if len(c.Args.Files) > 0 {
		files = folder.Resolve(c.Args.Dir, c.Args.Files)
	} else if files, err = folder.Scan(c.Args.Dir); err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{
		FolderPath:     c.Args.Dir,
		Files:          files,
		SortMode:       mode,
		OutputFileName: project.ResolveOutputName(c.Output),
	}, nil
}
