// Package tui provides the interactive archive browser: list archives,
// inspect what each one changed, diff two points in time, and run a guided
// restore.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/backup"
	"github.com/mcdonaldj/datezip/internal/config"
	"github.com/mcdonaldj/datezip/internal/history"
	"github.com/mcdonaldj/datezip/internal/ports"
	"github.com/mcdonaldj/datezip/internal/restore"
)

// View represents the current view state
type View int

const (
	ArchivesView       View = iota
	HistoryView             // changes introduced by one archive
	DiffSelectView          // selecting the second archive to compare
	DiffResultView          // changed-file list between two states
	FileDiffView            // line diff of a single file
	ConfirmRestoreView      // restore confirmation
)

// Model is the main TUI model
type Model struct {
	cfg      config.Config
	fs       ports.FileSystem
	archiver ports.Archiver

	view     View
	width    int
	height   int
	quitting bool

	// Archives view
	set    archive.Set
	cursor int

	// History view
	records []history.Record

	// Diff views
	diffFrom     int // index of the comparison base archive
	diffCursor   int
	diffResult   *DiffResult
	changeCursor int // cursor within the changed-file list

	// File diff view
	fileDiff       *FileDiffResult
	fileDiffScroll int

	// Status message
	statusMsg string
	statusErr bool
}

// Key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Diff    key.Binding
	Restore key.Binding
	Yes     key.Binding
	No      key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Diff: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "diff"),
	),
	Restore: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restore"),
	),
	Yes: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	No: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewModel creates a new TUI model over the archive set.
func NewModel(cfg config.Config, fs ports.FileSystem, archiver ports.Archiver) (*Model, error) {
	set, err := archive.List(fs, cfg.BackupDir(), cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no backups found in %s", cfg.BackupDir())
	}
	return &Model{
		cfg:      cfg,
		fs:       fs,
		archiver: archiver,
		set:      set,
		cursor:   len(set) - 1, // start on the most recent archive
	}, nil
}

// Run launches the TUI.
func Run(cfg config.Config, fs ports.FileSystem, archiver ports.Archiver) error {
	m, err := NewModel(cfg, fs, archiver)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.view {
		case ArchivesView:
			return m.updateArchives(msg)
		case HistoryView:
			return m.updateHistory(msg)
		case DiffSelectView:
			return m.updateDiffSelect(msg)
		case DiffResultView:
			return m.updateDiffResult(msg)
		case FileDiffView:
			return m.updateFileDiff(msg)
		case ConfirmRestoreView:
			return m.updateConfirmRestore(msg)
		}
	}
	return m, nil
}

func (m *Model) updateArchives(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.set)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Enter):
		m.loadHistory()
		m.view = HistoryView
	case key.Matches(msg, keys.Diff):
		m.diffFrom = m.cursor
		m.diffCursor = m.cursor
		m.view = DiffSelectView
	case key.Matches(msg, keys.Restore):
		m.view = ConfirmRestoreView
	}
	return m, nil
}

func (m *Model) loadHistory() {
	ts := m.set[m.cursor].Timestamp
	index := history.NewIndex(m.fs, m.archiver)
	records, err := index.Query(m.cfg.BackupDir(), m.cfg.Prefix, history.QueryFilter{From: ts, To: ts})
	if err != nil {
		m.setStatus(fmt.Sprintf("history: %v", err), true)
		return
	}
	m.records = records
}

func (m *Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Back) {
		m.view = ArchivesView
	}
	return m, nil
}

func (m *Model) updateDiffSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.diffCursor > 0 {
			m.diffCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.diffCursor < len(m.set)-1 {
			m.diffCursor++
		}
	case key.Matches(msg, keys.Back):
		m.view = ArchivesView
	case key.Matches(msg, keys.Enter):
		if m.diffCursor == m.diffFrom {
			m.setStatus("pick a different archive to compare", true)
			return m, nil
		}
		from, to := m.diffFrom, m.diffCursor
		if from > to {
			from, to = to, from
		}
		result, err := ComputeDiff(m.archiver, m.set, from, to)
		if err != nil {
			m.setStatus(fmt.Sprintf("diff: %v", err), true)
			return m, nil
		}
		m.diffFrom, m.diffCursor = from, to
		m.diffResult = result
		m.changeCursor = 0
		m.view = DiffResultView
	}
	return m, nil
}

func (m *Model) updateDiffResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.changeCursor > 0 {
			m.changeCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.diffResult != nil && m.changeCursor < len(m.diffResult.Changes)-1 {
			m.changeCursor++
		}
	case key.Matches(msg, keys.Back):
		m.view = DiffSelectView
	case key.Matches(msg, keys.Enter):
		if m.diffResult == nil || len(m.diffResult.Changes) == 0 {
			return m, nil
		}
		change := m.diffResult.Changes[m.changeCursor]
		fd, err := ComputeFileDiff(m.archiver, m.set, m.diffFrom, m.diffCursor, change.Path, change.Status)
		if err != nil {
			m.setStatus(fmt.Sprintf("diff: %v", err), true)
			return m, nil
		}
		m.fileDiff = fd
		m.fileDiffScroll = 0
		m.view = FileDiffView
	}
	return m, nil
}

func (m *Model) updateFileDiff(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.fileDiffScroll > 0 {
			m.fileDiffScroll--
		}
	case key.Matches(msg, keys.Down):
		if m.fileDiff != nil && m.fileDiffScroll < len(m.fileDiff.Lines)-1 {
			m.fileDiffScroll++
		}
	case key.Matches(msg, keys.Back):
		m.fileDiff = nil
		m.fileDiffScroll = 0
		m.view = DiffResultView
	}
	return m, nil
}

func (m *Model) updateConfirmRestore(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Yes):
		engine := restore.NewEngine(m.fs, m.archiver)
		result, err := engine.Run(m.cfg, restore.Options{
			Index: m.cursor,
			Mode:  restore.Everything,
		})
		if err != nil {
			m.setStatus(fmt.Sprintf("restore failed: %v", err), true)
		} else {
			m.setStatus(fmt.Sprintf("restored state as of %s (%d archives applied)",
				result.Target.Timestamp, len(result.Applied)), false)
		}
		m.view = ArchivesView
	case key.Matches(msg, keys.No), key.Matches(msg, keys.Back):
		m.view = ArchivesView
	}
	return m, nil
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("datezip") + "\n\n")

	switch m.view {
	case ArchivesView:
		b.WriteString(m.viewArchives())
	case HistoryView:
		b.WriteString(m.viewHistory())
	case DiffSelectView:
		b.WriteString(m.viewDiffSelect())
	case DiffResultView:
		b.WriteString(m.viewDiffResult())
	case FileDiffView:
		b.WriteString(m.viewFileDiff())
	case ConfirmRestoreView:
		b.WriteString(m.viewConfirmRestore())
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorBadge.Render(m.statusMsg))
		} else {
			b.WriteString(fullBadge.Render(m.statusMsg))
		}
	}
	b.WriteString(helpStyle.Render("\n" + m.helpLine()))
	return appStyle.Render(b.String())
}

func (m *Model) helpLine() string {
	switch m.view {
	case ArchivesView:
		return "↑/↓ move · enter changes · d diff · R restore · q quit"
	case DiffSelectView:
		return "↑/↓ move · enter compare · esc back · q quit"
	case DiffResultView:
		return "↑/↓ move · enter file diff · esc back · q quit"
	case ConfirmRestoreView:
		return "y confirm · n cancel"
	default:
		return "↑/↓ scroll · esc back · q quit"
	}
}

func (m *Model) archiveLine(i int, cursor int) string {
	a := m.set[i]
	badge := incBadge.Render("INC ")
	if a.Kind == archive.Full {
		badge = fullBadge.Render("FULL")
	}
	size := ""
	if info, err := m.fs.Stat(a.Path); err == nil {
		size = backup.FormatSize(info.Size())
	}
	line := fmt.Sprintf("%s  %s  %s", badge, a.Timestamp, dimStyle.Render(size))
	if i == cursor {
		return selectedStyle.Render("> ") + line
	}
	return "  " + line
}

func (m *Model) viewArchives() string {
	var b strings.Builder
	b.WriteString(normalStyle.Render(fmt.Sprintf("Archives in %s", m.cfg.BackupDir())) + "\n\n")
	for i := range m.set {
		b.WriteString(m.archiveLine(i, m.cursor) + "\n")
	}
	return b.String()
}

func (m *Model) viewHistory() string {
	a := m.set[m.cursor]
	var b strings.Builder
	b.WriteString(normalStyle.Render(fmt.Sprintf("Changes in %s", a.Name())) + "\n\n")
	if len(m.records) == 0 {
		b.WriteString(dimStyle.Render("  (no changes)") + "\n")
		return b.String()
	}
	for _, r := range m.records {
		glyph := addedStyle.Render("+")
		if r.Change == history.Updated {
			glyph = normalStyle.Render(".")
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", glyph, r.Path))
	}
	return b.String()
}

func (m *Model) viewDiffSelect() string {
	var b strings.Builder
	b.WriteString(normalStyle.Render(
		fmt.Sprintf("Compare against %s", m.set[m.diffFrom].Timestamp)) + "\n\n")
	for i := range m.set {
		b.WriteString(m.archiveLine(i, m.diffCursor) + "\n")
	}
	return b.String()
}

func (m *Model) viewDiffResult() string {
	var b strings.Builder
	r := m.diffResult
	b.WriteString(normalStyle.Render(fmt.Sprintf("%s -> %s", r.From, r.To)) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d modified, %d added, %d deleted",
		r.Modified, r.Added, r.Deleted)) + "\n\n")
	for i, c := range r.Changes {
		marker := "  "
		if i == m.changeCursor {
			marker = selectedStyle.Render("> ")
		}
		var status string
		switch c.Status {
		case 'A':
			status = addedStyle.Render("A")
		case 'D':
			status = deletedStyle.Render("D")
		default:
			status = normalStyle.Render("M")
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", marker, status, c.Path))
	}
	return b.String()
}

func (m *Model) viewFileDiff() string {
	var b strings.Builder
	fd := m.fileDiff
	b.WriteString(normalStyle.Render(fmt.Sprintf("%s  %s -> %s", fd.Path, fd.From, fd.To)) + "\n\n")
	if fd.Error != "" {
		b.WriteString(errorBadge.Render(fd.Error) + "\n")
		return b.String()
	}
	if fd.IsBinary {
		b.WriteString(dimStyle.Render("binary file") + "\n")
		return b.String()
	}

	visible := m.height - 8
	if visible < 5 {
		visible = 5
	}
	end := m.fileDiffScroll + visible
	if end > len(fd.Lines) {
		end = len(fd.Lines)
	}
	for _, line := range fd.Lines[m.fileDiffScroll:end] {
		switch line.Type {
		case '+':
			b.WriteString(addedStyle.Render("+ "+line.Content) + "\n")
		case '-':
			b.WriteString(deletedStyle.Render("- "+line.Content) + "\n")
		default:
			b.WriteString(dimStyle.Render("  "+line.Content) + "\n")
		}
	}
	return b.String()
}

func (m *Model) viewConfirmRestore() string {
	a := m.set[m.cursor]
	chain := restore.Chain(m.set, m.cursor)
	var b strings.Builder
	b.WriteString(normalStyle.Render(
		fmt.Sprintf("Restore state as of %s?", a.Timestamp)) + "\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"This overwrites files in %s by applying %d archive(s).", m.cfg.Root, len(chain))) + "\n")
	return b.String()
}
