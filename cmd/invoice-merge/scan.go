package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lesonky/invoice-merge-tool/folder"
)

type scanCommand struct {
	JSON bool `long:"json" description:"print entries as JSON"`
	Args struct {
		Dir string `positional-arg-name:"dir" required:"yes"`
	} `positional-args:"yes"`
}

func (c *scanCommand) Execute(_ []string) error {
	entries, err := folder.Scan(c.Args.Dir)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	fmt.Println(renderEntries(c.Args.Dir, entries))
	return nil
}
