package orchestrator

import (
	"fmt"
	"strings"
)

// Phase tags a progress notification.
type Phase string

const (
	PhaseEnumerate Phase = "enumerate"
	PhaseConvert   Phase = "convert"
	PhaseMerge     Phase = "merge"
	PhaseWrite     Phase = "write"
)

// ParsePhase accepts the phase names plus the short "scan" label and the
// -ing forms used by progress consumers.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enumerate", "enumerating", "scan", "scanning":
		return PhaseEnumerate, nil
	case "convert", "converting":
		return PhaseConvert, nil
	case "merge", "merging":
		return PhaseMerge, nil
	case "write", "writing":
		return PhaseWrite, nil
	}
	return "", fmt.Errorf("unknown progress phase %q", s)
}

// ProgressEvent is emitted at file boundaries.
type ProgressEvent struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Phase   Phase `json:"phase"`
}

// ProgressFunc receives progress synchronously on the run's goroutine, or on
// a conversion worker when Workers > 1.
type ProgressFunc func(ProgressEvent)

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress renders an event as a short status line.
func FormatProgress(e ProgressEvent) string {
	switch e.Phase {
	case PhaseEnumerate:
		return fmt.Sprintf("checking %d/%d", e.Current, e.Total)
	case PhaseConvert:
		return fmt.Sprintf("converting %d/%d", e.Current, e.Total)
	case PhaseMerge:
		return fmt.Sprintf("merging %d/%d", e.Current, e.Total)
	case PhaseWrite:
		return "written"
	}
	return fmt.Sprintf("%s %d/%d", e.Phase, e.Current, e.Total)
}
