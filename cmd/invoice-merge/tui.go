package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lesonky/invoice-merge-tool/orchestrator"
)

type progressMsg orchestrator.ProgressEvent

type doneMsg struct {
	outcome *orchestrator.Outcome
	err     error
}

// progressModel draws one bar per run. The bar tracks the current phase;
// the label names it.
type progressModel struct {
	bar     progress.Model
	event   orchestrator.ProgressEvent
	cancel  context.CancelFunc
	done    bool
	outcome *orchestrator.Outcome
	err     error
}

func newProgressModel(cancel context.CancelFunc) progressModel {
	return progressModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel: cancel,
	}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.event = orchestrator.ProgressEvent(msg)
		return m, nil
	case doneMsg:
		m.done = true
		m.outcome, m.err = msg.outcome, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// Run returns once the current file finishes; doneMsg quits.
			m.cancel()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	if m.event.Total == 0 {
		return dimStyle.Render("preparing...") + "\n"
	}
	label := fmt.Sprintf("%-16s", orchestrator.FormatProgress(m.event))
	return label + " " + m.bar.ViewAs(m.fraction()) + "\n"
}

func (m progressModel) fraction() float64 {
	if m.event.Total <= 0 {
		return 0
	}
	f := float64(m.event.Current) / float64(m.event.Total)
	return min(max(f, 0), 1)
}

// runWithProgressBar runs the merge in the background while a bubbletea
// program renders its progress. The run always finishes before this returns
// so its temp files are gone.
func runWithProgressBar(ctx context.Context, cfg orchestrator.Config, req orchestrator.Request) (*orchestrator.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(cancel), tea.WithOutput(os.Stderr))
	cfg.Progress = func(e orchestrator.ProgressEvent) { p.Send(progressMsg(e)) }
	orch := orchestrator.New(orchestrator.WithConfig(cfg))

	result := make(chan doneMsg, 1)
	go func() {
		out, err := orch.Run(ctx, req)
		d := doneMsg{outcome: out, err: err}
		result <- d
		p.Send(d)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		d := <-result
		if d.err == nil && d.outcome != nil {
			return d.outcome, nil
		}
		return nil, fmt.Errorf("progress display: %w", err)
	}
	d := <-result
	return d.outcome, d.err
}
