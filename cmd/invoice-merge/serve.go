package main

import (
	"context"
	"os"

	"github.com/lesonky/invoice-merge-tool/mcpserver"
	"github.com/lesonky/invoice-merge-tool/orchestrator"
)

type serveCommand struct {
	Workers int    `long:"workers" description:"convert images concurrently with this many workers"`
	TempDir string `long:"temp-dir" value-name:"DIR" description:"parent directory for per-run scratch files"`
}

func (c *serveCommand) Execute(args []string) error {
	return c.Run(context.Background(), args)
}

// Run serves until stdin closes. Logs go to stderr since stdout carries the
// protocol.
func (c *serveCommand) Run(ctx context.Context, _ []string) error {
	log := newLogger(os.Stderr, nil)
	svc := mcpserver.NewService(orchestrator.Config{
		Workers: c.Workers,
		TempDir: c.TempDir,
		Logger:  log,
	})
	log.Info("mcp server starting")
	return mcpserver.RunStdio(ctx, mcpserver.New(svc))
}
