package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trakly/trakboard/internal/board"
	"github.com/trakly/trakboard/internal/logger"
	"github.com/trakly/trakboard/internal/store"
	"github.com/trakly/trakboard/internal/tracker"
	"github.com/trakly/trakboard/internal/usercfg"
)

const (
	toastTTL       = 4 * time.Second
	minColumnWidth = 18
	// settleBuffer bounds how many remote results may queue before the
	// program reads them.
	settleBuffer = 64
)

type columnCursor struct {
	cursor int
	offset int // top index of the visible window
}

type snapshotMsg struct{ res store.Result }

type settleMsg struct {
	move board.Move
	err  error
}

type errMsg struct{ err error }

type toastExpiredMsg struct{ seq int }

type keyMap struct {
	Left, Right, Up, Down key.Binding
	Grab, Drop, Cancel    key.Binding
	Open, Filter, Refresh key.Binding
	Extra, Help, Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Left:    key.NewBinding(key.WithKeys("h", "left", "shift+tab"), key.WithHelp("h/←", "previous column")),
		Right:   key.NewBinding(key.WithKeys("l", "right", "tab"), key.WithHelp("l/→", "next column")),
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous card")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next card")),
		Grab:    key.NewBinding(key.WithKeys(" ", "space", "m"), key.WithHelp("space/m", "pick up card")),
		Drop:    key.NewBinding(key.WithKeys("enter", " ", "space", "m"), key.WithHelp("enter/space", "drop card")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "put card back")),
		Open:    key.NewBinding(key.WithKeys("enter", "o"), key.WithHelp("enter/o", "open in browser")),
		Filter:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Extra:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle type/priority tags")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type boardStyles struct {
	header      lipgloss.Style
	title       lipgloss.Style
	overLimit   lipgloss.Style
	boxStyle    lipgloss.Style
	boxActive   lipgloss.Style
	boxTarget   lipgloss.Style
	selected    lipgloss.Style
	held        lipgloss.Style
	ghost       lipgloss.Style
	initial     lipgloss.Style
	muted       lipgloss.Style
	help        lipgloss.Style
	helpOverlay lipgloss.Style
	helpTitle   lipgloss.Style
	helpKey     lipgloss.Style
	toast       lipgloss.Style
	error       lipgloss.Style
}

// newBoardStyles returns hardcoded dark theme styles
func newBoardStyles() boardStyles {
	return boardStyles{
		header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		overLimit:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		boxStyle:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("240")),
		boxActive:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("10")),
		boxTarget:   lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("214")),
		selected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		held:        lipgloss.NewStyle().Faint(true).Italic(true),
		ghost:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		initial:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("111")),
		muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		help:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		helpOverlay: lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("255")).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99")).Padding(1, 2),
		helpTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		helpKey:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		toast:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("203")).Padding(0, 1),
		error:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

type boardModel struct {
	cfg     usercfg.Config
	svc     tracker.Service
	store   *store.Store
	ctrl    *board.Controller
	settled chan settleMsg
	open    func(key string) error

	view        board.View
	cursors     map[string]columnCursor
	selectedCol int
	// target is the drop slot while a card is held.
	target board.Location

	loading     bool
	err         error
	toast       string
	toastSeq    int
	width       int
	height      int
	filtering   bool
	filterInput textinput.Model
	filter      string
	showExtra   bool
	showingHelp bool
	helpOffset  int
	spinner     spinner.Model
	keys        keyMap
	styles      boardStyles
}

func initialBoardModel(cfg usercfg.Config, svc tracker.Service) boardModel {
	ti := textinput.New()
	ti.Placeholder = "filter... (type:bug p:high text)"
	ti.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	uiPrefs := usercfg.GetUIPrefs()

	settled := make(chan settleMsg, settleBuffer)
	ctrl := board.NewController(svc,
		board.WithTimeout(cfg.MoveTimeoutDuration()),
		board.WithSettleHook(func(mv board.Move, err error) {
			settled <- settleMsg{move: mv, err: err}
		}),
		board.WithTransitionHook(func(from, to board.DragState) {
			logger.Board("drag %T -> %T", from, to)
		}),
	)

	m := boardModel{
		cfg:         cfg,
		svc:         svc,
		store:       store.New(svc),
		ctrl:        ctrl,
		settled:     settled,
		open:        func(key string) error { return openIssueInBrowser(svc, key) },
		cursors:     make(map[string]columnCursor),
		selectedCol: max(0, uiPrefs.LastSelectedCol),
		loading:     true,
		filterInput: ti,
		filter:      uiPrefs.LastFilter,
		showExtra:   uiPrefs.ShowExtraFields,
		spinner:     sp,
		keys:        newKeyMap(),
		styles:      newBoardStyles(),
	}
	m.rebuild()
	return m
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.listenSettle(), m.spinner.Tick)
}

// refreshCmd loads an authoritative snapshot and reconciles the overlay.
func (m boardModel) refreshCmd() tea.Cmd {
	st, ctrl := m.store, m.ctrl
	timeout := m.cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := st.Refresh(ctx, ctrl)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{res}
	}
}

// listenSettle waits for the next remote move result.
func (m boardModel) listenSettle() tea.Cmd {
	ch := m.settled
	return func() tea.Msg {
		return <-ch
	}
}

func (m *boardModel) showToast(format string, args ...interface{}) tea.Cmd {
	m.toastSeq++
	m.toast = fmt.Sprintf(format, args...)
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq} })
}

// rebuild derives the view from the stored snapshot, the filter and the
// controller's overlay, then clamps every cursor.
func (m *boardModel) rebuild() {
	snap := m.store.Snapshot()
	m.view = m.ctrl.Board(snap.Columns, board.Filter(snap.Issues, m.filter))
	if m.store.Loaded() && m.selectedCol >= len(m.view.Columns) {
		m.selectedCol = max(0, len(m.view.Columns)-1)
	}
	for _, cv := range m.view.Columns {
		m.ensureCursorVisible(cv.Column.ID)
	}
}

func (m boardModel) columnID(i int) string {
	if i < 0 || i >= len(m.view.Columns) {
		return ""
	}
	return m.view.Columns[i].Column.ID
}

func (m boardModel) currentIssue() (board.Issue, bool) {
	if m.selectedCol < 0 || m.selectedCol >= len(m.view.Columns) {
		return board.Issue{}, false
	}
	cv := m.view.Columns[m.selectedCol]
	c := m.cursors[cv.Column.ID]
	if c.cursor < 0 || c.cursor >= len(cv.Issues) {
		return board.Issue{}, false
	}
	return cv.Issues[c.cursor], true
}

// selectIssue moves the selection onto the issue, if it is visible.
func (m *boardModel) selectIssue(issueID string) {
	loc, ok := m.view.Grouping.Locate(issueID)
	if !ok {
		return
	}
	if i := m.view.Index(loc.ColumnID); i >= 0 {
		m.selectedCol = i
		c := m.cursors[loc.ColumnID]
		c.cursor = loc.Index
		m.cursors[loc.ColumnID] = c
		m.ensureCursorVisible(loc.ColumnID)
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Keep cursor visible in each column after resize
		for _, cv := range m.view.Columns {
			m.ensureCursorVisible(cv.Column.ID)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case snapshotMsg:
		m.loading = false
		m.err = nil
		m.rebuild()
		if n := len(msg.res.Stale); n > 0 {
			return m, m.showToast("%d move(s) were not confirmed by the server", n)
		}
		return m, nil
	case settleMsg:
		cmds := []tea.Cmd{m.listenSettle()}
		if msg.err == nil {
			logger.TUI("move of %s to %s confirmed", msg.move.IssueID, msg.move.To.ColumnID)
			return m, tea.Batch(cmds...)
		}
		name := msg.move.IssueID
		if is, ok := m.store.Issue(msg.move.IssueID); ok {
			name = is.Key
		}
		// A newer move of the same card owns the overlay entry.
		if e, ok := m.ctrl.Overlay()[msg.move.IssueID]; ok && e.Seq == msg.move.Seq {
			m.store.Revert(m.ctrl, msg.move.IssueID)
			m.rebuild()
		}
		m.loading = true
		cmds = append(cmds,
			m.showToast("Moving %s failed: %v", name, firstLine(msg.err)),
			m.refreshCmd(),
			m.spinner.Tick,
		)
		return m, tea.Batch(cmds...)
	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil
	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showingHelp {
		return m.handleHelpKey(msg)
	}
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC, tea.KeyEnter:
			m.filtering = false
			m.filterInput.Blur()
			return m, nil
		default:
			// Live update filter as user types; no refetch
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			m.filter = m.filterInput.Value()
			m.rebuild()
			return m, cmd
		}
	}
	if held, ok := m.ctrl.Active(); ok {
		return m.handleDragKey(msg, held)
	}

	switch {
	// Critical actions first to avoid conflicts with navigation keys
	case key.Matches(msg, m.keys.Quit):
		m.saveUIPreferences()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showingHelp = true
		m.helpOffset = 0
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filterInput.SetValue(m.filter)
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, tea.Batch(m.refreshCmd(), m.spinner.Tick)
	case key.Matches(msg, m.keys.Extra):
		m.showExtra = !m.showExtra
	case key.Matches(msg, m.keys.Grab):
		issue, ok := m.currentIssue()
		if !ok {
			return m, nil
		}
		src := board.Location{ColumnID: m.columnID(m.selectedCol), Index: m.cursors[m.columnID(m.selectedCol)].cursor}
		if err := m.ctrl.Begin(issue.ID, src); err != nil {
			return m, m.showToast("Cannot pick up %s: %v", issue.Key, err)
		}
		m.target = src
	case key.Matches(msg, m.keys.Open):
		issue, ok := m.currentIssue()
		if !ok {
			return m, nil
		}
		if err := m.open(issue.Key); err != nil {
			return m, m.showToast("Cannot open %s: %v", issue.Key, err)
		}
	// Navigation last so action keys don't get shadowed
	case key.Matches(msg, m.keys.Right):
		if n := len(m.view.Columns); n > 0 {
			m.selectedCol = (m.selectedCol + 1) % n
		}
	case key.Matches(msg, m.keys.Left):
		if n := len(m.view.Columns); n > 0 {
			m.selectedCol = (m.selectedCol - 1 + n) % n
		}
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	}
	return m, nil
}

// handleDragKey steers the held card's drop slot.
func (m boardModel) handleDragKey(msg tea.KeyMsg, held board.Dragging) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Cancel()
		m.saveUIPreferences()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Cancel()
		m.selectIssue(held.IssueID)
	case key.Matches(msg, m.keys.Drop):
		dst := m.target
		mv, moved := m.ctrl.Drop(&dst)
		m.rebuild()
		m.selectIssue(held.IssueID)
		if moved {
			logger.TUI("dropped %s into %s at %d (seq %d)", mv.IssueID, mv.To.ColumnID, mv.To.Index, mv.Seq)
		}
	case key.Matches(msg, m.keys.Right):
		m.retarget(m.view.Index(m.target.ColumnID)+1, held)
	case key.Matches(msg, m.keys.Left):
		m.retarget(m.view.Index(m.target.ColumnID)-1, held)
	case key.Matches(msg, m.keys.Down):
		m.target.Index = min(m.target.Index+1, m.slotCount(m.target.ColumnID, held)-1)
		m.followTarget()
	case key.Matches(msg, m.keys.Up):
		m.target.Index = max(m.target.Index-1, 0)
		m.followTarget()
	}
	return m, nil
}

// slotCount is the number of drop slots in a column: one per card plus the
// end, except in the source column where the held card's slot is reused.
func (m boardModel) slotCount(columnID string, held board.Dragging) int {
	n := m.view.Grouping.Len(columnID)
	if columnID == held.Source.ColumnID {
		return max(1, n)
	}
	return n + 1
}

func (m *boardModel) retarget(col int, held board.Dragging) {
	if col < 0 || col >= len(m.view.Columns) {
		return
	}
	id := m.view.Columns[col].Column.ID
	m.target.ColumnID = id
	if id == held.Source.ColumnID {
		m.target.Index = held.Source.Index
	} else {
		m.target.Index = min(m.target.Index, m.slotCount(id, held)-1)
	}
	m.selectedCol = col
	m.followTarget()
}

// followTarget scrolls the target column so the drop slot stays in view.
func (m *boardModel) followTarget() {
	c := m.cursors[m.target.ColumnID]
	c.cursor = m.target.Index
	m.cursors[m.target.ColumnID] = c
	m.ensureCursorVisible(m.target.ColumnID)
}

func (m *boardModel) moveCursor(delta int) {
	id := m.columnID(m.selectedCol)
	if id == "" {
		return
	}
	c := m.cursors[id]
	c.cursor += delta
	m.cursors[id] = c
	m.ensureCursorVisible(id)
}

func (m boardModel) handleHelpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lines, _, viewport := m.helpLayout()
	maxOffset := max(0, len(lines)-viewport)
	switch msg.String() {
	case "q", "?", "esc":
		m.showingHelp = false
	case "up", "k":
		m.helpOffset = max(0, m.helpOffset-1)
	case "down", "j":
		m.helpOffset = min(maxOffset, m.helpOffset+1)
	case "pgup":
		m.helpOffset = max(0, m.helpOffset-max(1, viewport-1))
	case "pgdown":
		m.helpOffset = min(maxOffset, m.helpOffset+max(1, viewport-1))
	case "home":
		m.helpOffset = 0
	case "end":
		m.helpOffset = maxOffset
	}
	return m, nil
}

func (m boardModel) View() string {
	snap := m.store.Snapshot()
	name := snap.Project.Name
	if name == "" {
		name = m.cfg.ProjectKey
	}
	if name == "" {
		name = "Board"
	}
	headerText := fmt.Sprintf("trakboard · %s · %d issues", name, m.view.Grouping.Total())
	if held, ok := m.ctrl.Active(); ok {
		label := held.IssueID
		if is, found := m.store.Issue(held.IssueID); found {
			label = is.Key
		}
		headerText += fmt.Sprintf(" · moving %s", label)
	}
	header := m.styles.header.Render(clip(headerText, m.width))
	// Compact help to avoid overflowing small terminals; full help with '?'
	helpText := "(? help • q quit • hjkl move • space pick up • enter open • / filter • r refresh)"
	if _, ok := m.ctrl.Active(); ok {
		helpText = "(h/l column • j/k slot • enter/space drop • esc cancel)"
	}
	help := m.styles.help.Render(clip(helpText, m.width))

	if len(m.view.Columns) == 0 {
		return header + "\n" + "No columns to show" + "\n"
	}

	width := m.columnWidth()
	held, holding := m.ctrl.Active()
	rendered := make([]string, len(m.view.Columns))
	for i, cv := range m.view.Columns {
		box := m.styles.boxStyle
		switch {
		case holding && cv.Column.ID == m.target.ColumnID:
			box = m.styles.boxTarget
		case i == m.selectedCol:
			box = m.styles.boxActive
		}
		body := m.renderColumnTitle(cv) + "\n" + strings.Join(m.renderColumnItems(i, cv, width, held, holding), "\n")
		rendered[i] = box.Width(width).Render(body)
	}
	boardView := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	if m.filtering {
		return header + "\n" + help + "\n\n" + boardView + "\n\nFilter: " + m.filterInput.View()
	}
	footer := ""
	if m.toast != "" {
		footer += "\n" + m.styles.toast.Render(clip(m.toast, m.width))
	}
	if m.err != nil {
		footer += "\n" + m.styles.error.Render("Error: "+m.err.Error())
	} else if m.loading {
		footer += "\n" + m.styles.muted.Render(m.spinner.View()+" Loading...")
	}
	if m.view.Grouping.Dropped > 0 {
		footer += "\n" + m.styles.muted.Render(fmt.Sprintf("%d issue(s) in columns not on this board", m.view.Grouping.Dropped))
	}
	if m.filter != "" {
		footer += "\n" + m.styles.muted.Render("Filter: "+m.filter)
	}
	baseView := header + "\n" + help + "\n\n" + boardView + footer + "\n"

	if m.showingHelp {
		return m.renderWithHelpOverlay(baseView)
	}
	return baseView
}

// renderColumnTitle shows the name with the card count, and the WIP limit
// when the column has one. Over-limit columns turn red but accept drops.
func (m boardModel) renderColumnTitle(cv board.ColumnView) string {
	text := fmt.Sprintf("%s  %d", cv.Column.Name, cv.Count)
	if limit, ok := cv.Column.Limit(); ok {
		text = fmt.Sprintf("%s  %d/%d", cv.Column.Name, cv.Count, limit)
	}
	style := m.styles.title
	if cv.Column.Color != nil && strings.HasPrefix(*cv.Column.Color, "#") {
		style = style.Foreground(lipgloss.Color(*cv.Column.Color))
	}
	if cv.OverLimit {
		style = m.styles.overLimit
		text += " !"
	}
	return style.Render(clip(text, m.columnWidth()-4))
}

// renderColumnItems draws the visible window of a column. While a card is
// held, the target column shows a ghost row at the drop slot and the held
// card leaves its source row.
func (m boardModel) renderColumnItems(i int, cv board.ColumnView, width int, held board.Dragging, holding bool) []string {
	isTarget := holding && cv.Column.ID == m.target.ColumnID
	c := m.cursors[cv.Column.ID]

	// order lists card indices as displayed; ghostRow marks the drop slot.
	const ghostRow = -1
	order := make([]int, 0, len(cv.Cards)+1)
	focus := -1
	for idx, card := range cv.Cards {
		if isTarget && card.IssueID == held.IssueID {
			continue
		}
		if !holding && i == m.selectedCol && idx == c.cursor {
			focus = len(order)
		}
		order = append(order, idx)
	}
	if isTarget {
		at := min(max(m.target.Index, 0), len(order))
		order = append(order[:at], append([]int{ghostRow}, order[at:]...)...)
		focus = at
	}

	if len(order) == 0 {
		if m.loading && !m.store.Loaded() {
			return []string{m.styles.muted.Render("(loading…)")}
		}
		return []string{m.styles.muted.Render("(empty)")}
	}

	window := m.itemsWindowCount()
	start := c.offset
	if focus >= 0 {
		if focus < start {
			start = focus
		}
		if focus >= start+window {
			start = focus - window + 1
		}
	}
	start = min(start, max(0, len(order)-window))
	end := min(len(order), start+window)

	items := make([]string, 0, end-start+2)
	// Top indicator or spacer
	if start > 0 {
		items = append(items, m.styles.muted.Render(fmt.Sprintf("… %d above", start)))
	} else {
		items = append(items, "")
	}
	for _, idx := range order[start:end] {
		if idx == ghostRow {
			items = append(items, m.styles.ghost.Render(clip("▸ drop here", width-4)))
			continue
		}
		card := cv.Cards[idx]
		line := m.cardLine(card, width-4)
		switch {
		case holding && card.IssueID == held.IssueID:
			line = m.styles.held.Render(line)
		case !holding && i == m.selectedCol && idx == c.cursor:
			line = m.styles.selected.Render(line)
		}
		items = append(items, line)
	}
	// Bottom indicator or spacer
	if end < len(order) {
		items = append(items, m.styles.muted.Render(fmt.Sprintf("… %d below", len(order)-end)))
	} else {
		items = append(items, "")
	}
	return items
}

func (m boardModel) cardLine(card board.Card, width int) string {
	line := fmt.Sprintf("%s — %s", card.Key, card.Title)
	if m.showExtra {
		var tags []string
		if card.Type != "" {
			tags = append(tags, card.Type)
		}
		if card.Priority != "" {
			tags = append(tags, "P:"+abbreviatePriority(card.Priority))
		}
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, " ") + "]"
		}
	}
	return m.styles.initial.Render(card.AssigneeInitial) + " " + clip(line, width-2)
}

func abbreviatePriority(p string) string {
	switch strings.ToLower(p) {
	case "critical":
		return "CRIT"
	case "high":
		return "HIGH"
	case "medium":
		return "MED"
	case "low":
		return "LOW"
	}
	if len(p) > 4 {
		return strings.ToUpper(p[:4])
	}
	return strings.ToUpper(p)
}

// columnWidth splits the terminal evenly between columns.
func (m boardModel) columnWidth() int {
	n := max(1, len(m.view.Columns))
	if m.width <= 0 {
		return 28
	}
	usable := m.width - 2*n // account for borders
	return max(minColumnWidth, usable/n)
}

func (m boardModel) renderWithHelpOverlay(baseView string) string {
	lines, overlayWidth, viewport := m.helpLayout()
	offset := min(max(0, m.helpOffset), max(0, len(lines)-viewport))
	end := min(len(lines), offset+viewport)
	helpContent := strings.Join(lines[offset:end], "\n")
	overlayHeight := viewport + 3
	y := max(0, (m.height-overlayHeight)/2)

	pos := fmt.Sprintf("%d/%d lines · ↑/↓ PgUp/PgDn Home/End · q/? close", end, len(lines))
	overlay := m.styles.helpOverlay.Width(overlayWidth).Render(helpContent + "\n" + m.styles.muted.Render(pos))

	baseLines := strings.Split(baseView, "\n")
	overlayLines := strings.Split(overlay, "\n")
	for len(baseLines) < y+len(overlayLines) {
		baseLines = append(baseLines, "")
	}
	for i, overlayLine := range overlayLines {
		baseLines[y+i] = overlayLine
	}
	return strings.Join(baseLines, "\n")
}

// helpLayout computes wrapped help lines, target overlay width, and viewport height (content rows)
func (m boardModel) helpLayout() ([]string, int, int) {
	overlayWidth := min(80, max(40, m.width-8))
	wrapWidth := max(10, overlayWidth-4)
	var wrapped []string
	for _, line := range strings.Split(m.buildHelpContent(), "\n") {
		for len(line) > wrapWidth {
			wrapped = append(wrapped, line[:wrapWidth])
			line = line[wrapWidth:]
		}
		wrapped = append(wrapped, line)
	}
	viewport := max(3, min(m.height-4, len(wrapped)+3)-3)
	return wrapped, overlayWidth, viewport
}

func (m boardModel) buildHelpContent() string {
	row := func(b key.Binding) string {
		h := b.Help()
		return m.styles.helpKey.Render(fmt.Sprintf("%-12s", h.Key)) + " " + h.Desc
	}
	k := m.keys
	lines := []string{
		m.styles.helpTitle.Render("trakboard · Keyboard Shortcuts"),
		"",
		m.styles.helpTitle.Render("Navigation:"),
		row(k.Left), row(k.Right), row(k.Up), row(k.Down),
		"",
		m.styles.helpTitle.Render("Moving cards:"),
		row(k.Grab),
		"  then h/l pick the column and j/k the slot",
		row(k.Drop), row(k.Cancel),
		"",
		m.styles.helpTitle.Render("Actions:"),
		row(k.Open), row(k.Filter), row(k.Refresh), row(k.Extra), row(k.Help), row(k.Quit),
		"",
		m.styles.helpTitle.Render("Tips:"),
		"  • Moves show at once and are saved in the background",
		"  • A failed move is put back and the board reloads",
		"  • Red column headers are over their WIP limit",
		"  • Filter terms: type:bug, p:high, or any text",
	}
	return strings.Join(lines, "\n") + "\n\n" + m.styles.muted.Render("Press ? again to close")
}

// viewportItemsHeight calculates how many rows of items can be displayed per column
// given the current terminal height and rough space usage of headers/footers.
func (m boardModel) viewportItemsHeight() int {
	reserved := 6
	if m.filtering {
		reserved += 2
	}
	avail := max(5, m.height-reserved)
	return max(1, avail-3)
}

// itemsWindowCount returns the number of item rows we draw, excluding the two
// indicator lines (top and bottom). This keeps ensureCursorVisible and View aligned.
func (m boardModel) itemsWindowCount() int {
	base := m.viewportItemsHeight()
	if base <= 2 {
		return 1
	}
	return base - 2
}

// ensureCursorVisible clamps the column's cursor and adjusts its offset so
// the cursor stays within the visible window.
func (m boardModel) ensureCursorVisible(columnID string) {
	n := m.view.Grouping.Len(columnID)
	c := m.cursors[columnID]
	defer func() { m.cursors[columnID] = c }()
	if n == 0 {
		c = columnCursor{}
		return
	}
	c.cursor = min(max(c.cursor, 0), n-1)
	vh := m.itemsWindowCount()
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+vh {
		c.offset = c.cursor - vh + 1
	}
	c.offset = min(max(c.offset, 0), max(0, n-vh))
}

func (m boardModel) saveUIPreferences() {
	prefs := usercfg.UIPreferences{
		LastFilter:      m.filter,
		LastSelectedCol: m.selectedCol,
		ShowExtraFields: m.showExtra,
	}
	// Best-effort; a read-only config dir must not block quitting.
	if err := usercfg.SaveUIPrefs(prefs); err != nil {
		logger.TUI("saving ui prefs failed: %v", err)
	}
}

// StartBoard runs the board until the user quits. Moves still in flight
// get up to the move timeout to land before it returns.
func StartBoard(cfg usercfg.Config, svc tracker.Service) error {
	restore := logger.RedirectToFile()
	defer restore()

	model := initialBoardModel(cfg, svc)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()

	model.ctrl.Close()
	done := make(chan struct{})
	go func() {
		model.ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.MoveTimeoutDuration()):
		logger.Warn("exiting with column changes still in flight")
	}
	return err
}

func firstLine(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// clip truncates s to w display columns, marking the cut with "...".
func clip(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-3]) + "..."
}
