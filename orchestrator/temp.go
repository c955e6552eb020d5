package orchestrator

import (
	"os"

	"github.com/lesonky/invoice-merge-tool/observability"
)

// tempScope owns the synthesized pages of one run. Close removes them all.
type tempScope struct {
	dir string
	log observability.Logger
}

func newTempScope(parent string, log observability.Logger) (*tempScope, error) {
	dir, err := os.MkdirTemp(parent, "invoice-merge-*")
	if err != nil {
		return nil, err
	}
	return &tempScope{dir: dir, log: log}, nil
}

func (s *tempScope) Close() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.log.Warn("failed to remove temp dir", observability.String("dir", s.dir), observability.Error("error", err))
		return
	}
	s.log.Debug("removed temp dir", observability.String("dir", s.dir))
}
