package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rebuild/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	app        *App
	list       list.Model
	last       engine.Result
	lastErr    error
	lastUpdate time.Time
	running    bool
}

type runMsg struct {
	result engine.Result
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.running {
				m.running = true
				app := m.app
				// RunOnce delivers the result back through teaProgram.Send.
				return m, func() tea.Msg {
					_, _ = app.RunOnce(context.Background())
					return nil
				}
			}
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case runMsg:
		m.running = false
		m.last = msg.result
		m.lastErr = msg.err
		m.lastUpdate = time.Now()
		m.list.SetItems(m.buildItems())
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) buildItems() []list.Item {
	items := []list.Item{}

	graph := m.app.Engine.Graph()
	for _, unit := range m.last.Impacted {
		desc := "no references"
		if refs := graph.Refs(unit); len(refs) > 0 {
			names := make([]string, 0, len(refs))
			for ref := range refs {
				names = append(names, ref)
			}
			sort.Strings(names)
			desc = "references " + strings.Join(names, ", ")
		}
		items = append(items, item{
			title: unit,
			desc:  desc,
		})
	}

	for _, d := range m.last.Dangling {
		items = append(items, item{
			title: "Dangling import",
			desc:  fmt.Sprintf("%s imports deleted unit %s", d.Unit, d.Target),
		})
	}

	if diag := strings.TrimSpace(m.last.Diagnostics); diag != "" && m.lastErr != nil {
		for _, line := range strings.Split(diag, "\n") {
			items = append(items, item{
				title: "Diagnostic",
				desc:  line,
			})
		}
	}

	return items
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last run: %v | %d units | %d impacted",
		m.lastUpdate.Format("15:04:05"), m.last.Scanned, len(m.last.Impacted)))

	var summary string
	switch {
	case m.running:
		summary = statusStyle.Render("⏳ Building...")
	case m.lastErr != nil && errors.Is(m.lastErr, engine.ErrBuildFailed):
		summary = failStyle.Render(fmt.Sprintf("❌ Build failed (%d units)", len(m.last.Impacted)))
	case m.lastErr != nil:
		summary = failStyle.Render(fmt.Sprintf("❌ %v", m.lastErr))
	case len(m.last.Dangling) > 0:
		summary = warnStyle.Render(fmt.Sprintf("⚠️  %d dangling imports", len(m.last.Dangling)))
	case m.last.NoChanges():
		summary = successStyle.Render("✅ Up to date")
	default:
		summary = successStyle.Render(fmt.Sprintf("✅ Built %d units", len(m.last.Impacted)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Incremental Build Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View() + "\n" + statusStyle.Render("r: rebuild  q: quit"))
}

func initialModel(app *App) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Last Run"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		app:        app,
		list:       l,
		lastUpdate: time.Now(),
	}
}
