// Package progress renders a running triage batch in the terminal.
package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/inbox-triage/internal/keys"
	"github.com/nhle/inbox-triage/internal/theme"
	"github.com/nhle/inbox-triage/internal/triage"
)

// RunFunc runs a batch, reporting each finished email to progress.
type RunFunc func(ctx context.Context, progress triage.ProgressFunc) (triage.BatchResult, error)

// EmailDoneMsg is sent after each email of the batch.
type EmailDoneMsg triage.Progress

// BatchDoneMsg is sent once the batch returned.
type BatchDoneMsg struct {
	Result triage.BatchResult
	Err    error
}

// maxLines caps the finished emails kept on screen.
const maxLines = 12

type line struct {
	text   string
	failed bool
}

// Model is the Bubble Tea model of the progress view.
type Model struct {
	spinner spinner.Model
	keys    *keys.KeyMap
	help    help.Model
	run     RunFunc
	events  chan tea.Msg

	// ctx bounds the batch, view bounds forwarding to the program. Cancel
	// ends the batch but keeps the view until the partial result arrives.
	ctx       context.Context
	cancel    context.CancelFunc
	view      context.Context
	closeView context.CancelFunc

	current    *triage.Progress
	lines      []line
	onlyErrors bool
	cancelling bool
	result     *BatchDoneMsg
}

// New creates a progress view that starts run when the program starts.
func New(ctx context.Context, run RunFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HelpStyle

	view, closeView := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		spinner:   sp,
		keys:      keys.DefaultKeyMap(),
		help:      help.New(),
		run:       run,
		events:    make(chan tea.Msg),
		ctx:       ctx,
		cancel:    cancel,
		view:      view,
		closeView: closeView,
	}
}

// Result returns the batch outcome, nil until the batch finished or when
// the view was left before the batch returned.
func (m Model) Result() *BatchDoneMsg {
	return m.result
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.waitForEvent())
}

// start runs the batch in the background, forwarding progress as
// messages. It stops forwarding once the view quits.
func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		send := func(msg tea.Msg) {
			select {
			case m.events <- msg:
			case <-m.view.Done():
			}
		}
		res, err := m.run(m.ctx, func(p triage.Progress) {
			send(EmailDoneMsg(p))
		})
		send(BatchDoneMsg{Result: res, Err: err})
		return nil
	}
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.view.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			if m.cancelling {
				// Second press leaves without waiting.
				m.closeView()
				return m, tea.Quit
			}
			m.cancelling = true
			m.cancel()
		case key.Matches(msg, m.keys.Errors):
			m.onlyErrors = !m.onlyErrors
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case EmailDoneMsg:
		p := triage.Progress(msg)
		m.current = &p
		m.lines = append(m.lines, line{text: formatLine(p), failed: p.Result.Err != nil})
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, m.waitForEvent()

	case BatchDoneMsg:
		m.result = &msg
		m.cancel()
		m.closeView()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render("inbox triage"))
	b.WriteString("\n\n")
	for _, l := range m.lines {
		if m.onlyErrors && !l.failed {
			continue
		}
		b.WriteString(l.text + "\n")
	}

	if m.result != nil {
		b.WriteString("\n" + Summary(m.result.Result, m.result.Err) + "\n")
		return b.String()
	}

	status := "fetching and analyzing"
	if m.current != nil {
		status = fmt.Sprintf("%d/%d done", m.current.Index, m.current.Total)
	}
	if m.cancelling {
		status += ", cancelling after the current email"
	}
	b.WriteString("\n" + m.spinner.View() + " " + status + "\n")
	b.WriteString(m.help.View(m.keys) + "\n")
	return b.String()
}

func formatLine(p triage.Progress) string {
	outcome := "no task"
	switch {
	case p.Result.Err != nil:
		outcome = theme.ErrorStyle.Render("error: " + p.Result.Err.Error())
	case p.Result.TaskCreated:
		outcome = "task created"
	case p.Result.SummaryCreated:
		outcome = "summary created"
	}

	subject := p.Subject
	if subject == "" {
		subject = p.EmailID
	}
	return fmt.Sprintf("%s %s  %s",
		theme.CategoryStyle(p.Category).Render(string(p.Category)),
		subject,
		theme.HelpStyle.Render(outcome),
	)
}

// Summary renders a one-line report of a batch.
func Summary(res triage.BatchResult, err error) string {
	text := fmt.Sprintf("%d/%d processed, %d tasks, %d summaries, %d errors",
		res.ProcessedCount, res.TotalRequested,
		res.TasksCreated, res.SummariesCreated, len(res.Errors))
	out := theme.StatusBarStyle.Render(text)
	if err != nil {
		out += "\n" + theme.ErrorStyle.Render(err.Error())
	}
	return out
}
