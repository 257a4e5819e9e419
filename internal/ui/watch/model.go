// Package watch shows the background inbox poller in the terminal.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/inbox-triage/internal/keys"
	appsync "github.com/nhle/inbox-triage/internal/sync"
	"github.com/nhle/inbox-triage/internal/theme"
)

// Poller is the part of sync.Poller the view drives.
type Poller interface {
	Start(ctx context.Context) tea.Cmd
	WaitForNextResult() tea.Cmd
	Refresh()
	Stop()
	Status() appsync.SyncStatus
}

var _ Poller = (*appsync.Poller)(nil)

// maxLines caps the sync results kept on screen.
const maxLines = 10

// Model is the Bubble Tea model of the watch view.
type Model struct {
	poller  Poller
	ctx     context.Context
	folder  string
	spinner spinner.Model
	keys    *keys.WatchKeyMap
	help    help.Model

	lines  []string
	syncs  int
	tasks  int
	errors int
}

// New creates a watch view over p. ctx bounds every sync it starts.
func New(ctx context.Context, p Poller, folder string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HelpStyle

	return Model{
		poller:  p,
		ctx:     ctx,
		folder:  folder,
		spinner: sp,
		keys:    keys.DefaultWatchKeyMap(),
		help:    help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poller.Start(m.ctx))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.poller.Stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.poller.Refresh()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case appsync.SyncResultMsg:
		m.syncs++
		m.tasks += msg.Batch.TasksCreated + msg.Batch.SummariesCreated
		m.errors += len(msg.Batch.Errors)
		if msg.Error != nil {
			m.errors++
		}
		m.lines = append(m.lines, formatResult(time.Now(), msg))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, m.poller.WaitForNextResult()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render("inbox triage: watching " + m.folder))
	b.WriteString("\n\n")
	for _, l := range m.lines {
		b.WriteString(l + "\n")
	}

	st := m.poller.Status()
	status := st.State.String()
	if st.State == appsync.SyncRunning {
		status = m.spinner.View() + " syncing"
	} else if !st.LastSync.IsZero() {
		status += ", last sync " + st.LastSync.Format(time.TimeOnly)
	}
	b.WriteString("\n" + theme.StatusBarStyle.Render(fmt.Sprintf(
		"%s | %d syncs, %d created, %d errors", status, m.syncs, m.tasks, m.errors)))
	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func formatResult(at time.Time, msg appsync.SyncResultMsg) string {
	stamp := theme.HelpStyle.Render(at.Format(time.TimeOnly))
	if msg.Error != nil {
		text := msg.Error.Error()
		if msg.AuthError {
			text = "mailbox unreachable: " + text
		}
		return stamp + " " + theme.ErrorStyle.Render(text)
	}
	return fmt.Sprintf("%s fetched %d, new %d, %d tasks, %d summaries, %d errors",
		stamp, msg.Fetched, msg.NewCount,
		msg.Batch.TasksCreated, msg.Batch.SummariesCreated, len(msg.Batch.Errors))
}
