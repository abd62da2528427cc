package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/domain"
	"github.com/evanschultz/laneboard/internal/notify"
)

// Service is the board data surface the TUI reads and edits.
type Service interface {
	Board(context.Context) (app.Board, error)
	CreateTask(context.Context, app.CreateTaskInput) (domain.Task, error)
	DeleteTask(context.Context, string) error
	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// Transitions accepts status change requests from drag drops and explicit moves.
type Transitions interface {
	RequestTransition(context.Context, app.TransitionRequest) *app.Pending
}

// inputMode identifies the active modal.
type inputMode int

const (
	modeNone inputMode = iota
	modeAddTask
	modeMovePicker
	modeTaskInfo
	modeConfirmDelete
)

const (
	// headerRows covers the title line and the spacer above the lanes.
	headerRows = 2
	// laneHeaderRows covers the lane title and the spacer above the first card.
	laneHeaderRows = 2
	// footerRows covers the status line and the bordered help line.
	footerRows = 3
	// taskInfoActivityLimit bounds ledger rows shown in the task info overlay.
	taskInfoActivityLimit = 5
)

// pressState is a left-button press on a card that may become a drag.
type pressState struct {
	task   domain.Task
	origin app.Point
	// card is the top-left cell of the pressed card.
	card app.Point
}

// Model is the bubbletea board model.
type Model struct {
	svc         Service
	transitions Transitions
	resolver    app.DropResolver
	logger      Logger
	now         func() time.Time

	ready  bool
	width  int
	height int
	err    error

	status string
	notice notify.Notice

	help            help.Model
	keys            keyMap
	markdown        *markdownRenderer
	copyToClipboard func(string) error

	showDescription bool
	dragThreshold   int

	board        app.Board
	selectedLane int
	selectedTask int
	// pending maps tasks with an unresolved transition to its destination.
	pending     map[string]domain.Lane
	focusTaskID string

	mode         inputMode
	titleInput   textinput.Model
	pickerLanes  []domain.Lane
	pickerIndex  int
	infoTaskID   string
	infoActivity []domain.ChangeEvent
	deleteTaskID string

	drag    app.DragSession
	press   pressState
	pressed bool

	notices <-chan notify.Notice
}

// boardLoadedMsg carries a reloaded board.
type boardLoadedMsg struct {
	board app.Board
	err   error
}

// actionMsg carries the result of a non-transition mutation.
type actionMsg struct {
	status      string
	focusTaskID string
	reload      bool
	err         error
}

// transitionSettledMsg carries the outcome of one transition request.
type transitionSettledMsg struct {
	taskID  string
	outcome app.Outcome
	err     error
}

// noticeMsg carries one notice from the notification channel.
type noticeMsg struct {
	notice notify.Notice
	ok     bool
}

// activityLoadedMsg carries ledger rows for the task info overlay.
type activityLoadedMsg struct {
	taskID string
	events []domain.ChangeEvent
	err    error
}

// NewModel constructs the board model.
func NewModel(svc Service, transitions Transitions, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	titleInput := textinput.New()
	titleInput.Prompt = "title: "
	titleInput.Placeholder = "what needs doing?"
	titleInput.CharLimit = 200
	m := Model{
		svc:             svc,
		transitions:     transitions,
		logger:          discardLogger{},
		now:             time.Now,
		status:          "loading...",
		help:            h,
		keys:            newKeyMap(),
		markdown:        &markdownRenderer{},
		copyToClipboard: clipboard.WriteAll,
		showDescription: true,
		dragThreshold:   1,
		pending:         map[string]domain.Lane{},
		titleInput:      titleInput,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the board and starts listening for notices.
func (m Model) Init() tea.Cmd {
	if m.notices == nil {
		return m.loadBoard
	}
	return tea.Batch(m.loadBoard, waitForNotice(m.notices))
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.board = msg.board
		if m.focusTaskID != "" {
			m.focusTask(m.focusTaskID)
			m.focusTaskID = ""
		}
		m.clampSelections()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.setNotice(notify.LevelFailure, msg.err.Error())
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
			m.notice = notify.Notice{}
		}
		if msg.focusTaskID != "" {
			m.focusTaskID = msg.focusTaskID
		}
		if msg.reload {
			return m, m.loadBoard
		}
		return m, nil

	case transitionSettledMsg:
		delete(m.pending, msg.taskID)
		if msg.err != nil {
			m.logger.Warn("transition wait aborted", "task_id", msg.taskID, "err", msg.err)
			m.setNotice(notify.LevelFailure, msg.err.Error())
			return m, m.loadBoard
		}
		if m.notices == nil {
			m.setNotice(noticeLevelFor(msg.outcome), msg.outcome.Message)
		}
		m.focusTaskID = msg.taskID
		return m, m.loadBoard

	case noticeMsg:
		if !msg.ok {
			m.notices = nil
			return m, nil
		}
		m.notice = msg.notice
		return m, waitForNotice(m.notices)

	case activityLoadedMsg:
		if msg.taskID != m.infoTaskID {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warn("task activity load failed", "task_id", msg.taskID, "err", msg.err)
			m.infoActivity = nil
			return m, nil
		}
		m.infoActivity = msg.events
		return m, nil

	case tea.KeyPressMsg:
		if m.drag.Active() {
			if key.Matches(msg, m.keys.cancel) {
				return m.cancelDrag(), nil
			}
			return m, nil
		}
		m.pressed = false
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		if m.mode == modeAddTask {
			var cmd tea.Cmd
			m.titleInput, cmd = m.titleInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// View renders the board.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// render returns the full frame as text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	board := m.board
	header := titleStyle.Render("laneboard") + statusStyle.Render(fmt.Sprintf("  %d tasks", board.Total()))
	if board.Hidden > 0 {
		header += statusStyle.Render(fmt.Sprintf("  %d hidden (status matches no lane)", board.Hidden))
	}
	if task, ok := m.drag.Task(); ok {
		target := "nowhere"
		if lane, ok := m.drag.Focus(); ok {
			target = lane.Name()
		}
		header += statusStyle.Render(fmt.Sprintf("  dragging %q → %s", truncate(task.Title, 24), target))
	}

	layouts := m.layoutLanes()
	views := make([]string, 0, len(layouts)*2)
	for idx, layout := range layouts {
		if idx > 0 {
			views = append(views, " ")
		}
		views = append(views, layout.view)
	}
	boardView := lipgloss.JoinHorizontal(lipgloss.Top, views...)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	content := strings.Join([]string{header, "", boardView, m.renderStatusLine(muted)}, "\n")
	if m.height > 0 {
		content = fitLines(content, max(1, m.height-lipgloss.Height(helpLine)))
	}
	frame := content + "\n" + helpLine
	frameHeight := lipgloss.Height(frame)
	if m.height > 0 {
		frameHeight = m.height
	}

	if ghost, at, ok := m.renderDragGhost(accent); ok {
		frame = composeLayers(frame, max(1, m.width), max(1, frameHeight), lipgloss.NewLayer(ghost).X(at.X).Y(at.Y).Z(20))
	}
	if overlay := m.renderModeOverlay(accent, muted, m.width-8); overlay != "" {
		frame = overlayOnContent(frame, overlay, max(1, m.width), max(1, frameHeight))
	}
	return frame
}

// loadBoard reads the classified board.
func (m Model) loadBoard() tea.Msg {
	board, err := m.svc.Board(context.Background())
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	return boardLoadedMsg{board: board}
}

// waitForNotice blocks on the next notice.
func waitForNotice(ch <-chan notify.Notice) tea.Cmd {
	return func() tea.Msg {
		notice, ok := <-ch
		return noticeMsg{notice: notice, ok: ok}
	}
}

// awaitTransition blocks until a dispatched transition settles.
func awaitTransition(taskID string, pending *app.Pending) tea.Cmd {
	return func() tea.Msg {
		outcome, err := pending.Wait(context.Background())
		return transitionSettledMsg{taskID: taskID, outcome: outcome, err: err}
	}
}

// handleNormalModeKey handles board keys.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		m.help.ShowAll = false
		m.notice = notify.Notice{}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		m.notice = notify.Notice{}
		return m, m.loadBoard
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedLane > 0 {
			m.selectedLane--
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedLane < len(domain.Lanes())-1 {
			m.selectedLane++
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if tasks := m.currentLaneTasks(); m.selectedTask < len(tasks)-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		m.mode = modeAddTask
		m.help.ShowAll = false
		m.titleInput.Reset()
		cmd := m.titleInput.Focus()
		return m, cmd
	}

	task, ok := m.selectedTaskInLane()
	switch {
	case key.Matches(msg, m.keys.taskInfo):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeTaskInfo
		m.infoTaskID = task.ID
		m.infoActivity = nil
		return m, m.loadTaskActivity(task.ID)
	case key.Matches(msg, m.keys.deleteTask):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteTaskID = task.ID
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.copyTaskID(task.ID)
	case key.Matches(msg, m.keys.moveTaskLeft), key.Matches(msg, m.keys.moveTaskRight):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		delta := 1
		if key.Matches(msg, m.keys.moveTaskLeft) {
			delta = -1
		}
		dest := domain.Lane(m.selectedLane + delta)
		if !dest.Valid() {
			m.status = "no lane in that direction"
			return m, nil
		}
		return m.requestMove(task, dest)
	case key.Matches(msg, m.keys.moveToLane):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		dest, err := domain.ParseLane(msg.String())
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		return m.requestMove(task, dest)
	case key.Matches(msg, m.keys.moveTo):
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.pickerLanes = moveTargets(task)
		m.pickerIndex = 0
		m.mode = modeMovePicker
		return m, nil
	}
	return m, nil
}

// handleInputModeKey handles keys while a modal is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAddTask:
		switch msg.String() {
		case "esc":
			m.closeModal()
			m.status = "add cancelled"
			return m, nil
		case "enter":
			title := strings.TrimSpace(m.titleInput.Value())
			if title == "" {
				m.status = "title required"
				return m, nil
			}
			lane := domain.Lane(m.selectedLane)
			m.closeModal()
			return m.createTask(app.CreateTaskInput{Title: title, Status: lane.Name()})
		}
		var cmd tea.Cmd
		m.titleInput, cmd = m.titleInput.Update(msg)
		return m, cmd

	case modeMovePicker:
		switch {
		case key.Matches(msg, m.keys.cancel):
			m.closeModal()
			return m, nil
		case key.Matches(msg, m.keys.moveDown):
			m.pickerIndex = wrapIndex(m.pickerIndex, 1, len(m.pickerLanes))
			return m, nil
		case key.Matches(msg, m.keys.moveUp):
			m.pickerIndex = wrapIndex(m.pickerIndex, -1, len(m.pickerLanes))
			return m, nil
		case msg.String() == "enter":
			task, ok := m.selectedTaskInLane()
			if !ok || len(m.pickerLanes) == 0 {
				m.closeModal()
				return m, nil
			}
			dest := m.pickerLanes[clamp(m.pickerIndex, 0, len(m.pickerLanes)-1)]
			m.closeModal()
			return m.requestMove(task, dest)
		case key.Matches(msg, m.keys.moveToLane):
			task, ok := m.selectedTaskInLane()
			dest, err := domain.ParseLane(msg.String())
			m.closeModal()
			if !ok || err != nil {
				return m, nil
			}
			return m.requestMove(task, dest)
		}
		return m, nil

	case modeTaskInfo:
		switch {
		case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.taskInfo), key.Matches(msg, m.keys.quit):
			m.closeModal()
			return m, nil
		case key.Matches(msg, m.keys.copyID):
			return m, m.copyTaskID(m.infoTaskID)
		}
		return m, nil

	case modeConfirmDelete:
		switch {
		case key.Matches(msg, m.keys.confirm):
			taskID := m.deleteTaskID
			m.closeModal()
			return m, m.deleteTask(taskID)
		case key.Matches(msg, m.keys.cancel), msg.String() == "n":
			m.closeModal()
			m.status = "delete cancelled"
			return m, nil
		}
		return m, nil
	}
	return m, nil
}

// closeModal returns to board mode.
func (m *Model) closeModal() {
	m.mode = modeNone
	m.titleInput.Blur()
	m.pickerLanes = nil
	m.pickerIndex = 0
	m.infoTaskID = ""
	m.infoActivity = nil
	m.deleteTaskID = ""
}

// requestMove hands one move to the transition controller and renders it optimistically.
func (m Model) requestMove(task domain.Task, dest domain.Lane) (tea.Model, tea.Cmd) {
	if m.transitions == nil {
		m.setNotice(notify.LevelFailure, "moves are unavailable")
		return m, nil
	}
	req, err := app.NewTransitionRequest(task, dest)
	if err != nil {
		m.setNotice(notify.LevelFailure, err.Error())
		return m, nil
	}
	return m.dispatch(req)
}

// dispatch issues req and schedules the wait for its outcome.
func (m Model) dispatch(req app.TransitionRequest) (tea.Model, tea.Cmd) {
	pending := m.transitions.RequestTransition(context.Background(), req)
	if current, ok := domain.Classify(req.Task.Status); !ok || current != req.Destination {
		m.pending[req.Task.ID] = req.Destination
		m.focusTask(req.Task.ID)
		m.status = fmt.Sprintf("moving %q to %s…", truncate(req.Task.Title, 28), req.Destination.Name())
		m.notice = notify.Notice{}
	}
	m.logger.Debug("transition requested", "task_id", req.Task.ID, "destination", req.Destination.Name())
	return m, awaitTransition(req.Task.ID, pending)
}

// createTask adds a task in the given status.
func (m Model) createTask(in app.CreateTaskInput) (tea.Model, tea.Cmd) {
	return m, func() tea.Msg {
		task, err := m.svc.CreateTask(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "task created", reload: true, focusTaskID: task.ID}
	}
}

// deleteTask removes one task.
func (m Model) deleteTask(taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteTask(context.Background(), taskID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "task deleted", reload: true}
	}
}

// copyTaskID writes a task id to the system clipboard.
func (m Model) copyTaskID(taskID string) tea.Cmd {
	write := m.copyToClipboard
	return func() tea.Msg {
		if err := write(taskID); err != nil {
			return actionMsg{err: fmt.Errorf("copy task id: %w", err)}
		}
		return actionMsg{status: "copied task id " + taskID}
	}
}

// loadTaskActivity reads recent ledger rows for one task.
func (m Model) loadTaskActivity(taskID string) tea.Cmd {
	return func() tea.Msg {
		events, err := m.svc.ListChangeEvents(context.Background(), taskID, taskInfoActivityLimit)
		return activityLoadedMsg{taskID: taskID, events: events, err: err}
	}
}

// handleMouseClick selects the card under the pointer and arms a drag.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	// A press during an active gesture keeps the original grab point.
	if m.drag.Active() {
		return m, nil
	}
	point := app.Point{X: msg.X, Y: msg.Y}
	layouts := m.layoutLanes()
	for _, layout := range layouts {
		if !layout.region.Contains(point) {
			continue
		}
		m.selectedLane = int(layout.lane)
		idx, ok := layout.cardAt(point, m.cardRows())
		if !ok {
			return m, nil
		}
		m.selectedTask = idx
		m.press = pressState{
			task:   layout.tasks[idx],
			origin: point,
			card:   layout.cardOrigin(idx, m.cardRows()),
		}
		m.pressed = true
		if m.dragThreshold == 0 {
			m.beginDrag(layouts, point)
		}
		return m, nil
	}
	return m, nil
}

// handleMouseMotion promotes a press to a drag and tracks pointer focus.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if !m.pressed {
		return m, nil
	}
	point := app.Point{X: msg.X, Y: msg.Y}
	layouts := m.layoutLanes()
	if !m.drag.Active() {
		if travel(m.press.origin, point) < m.dragThreshold {
			return m, nil
		}
		if !m.beginDrag(layouts, point) {
			return m, nil
		}
	}
	m.trackPointer(layouts, point)
	return m, nil
}

// handleMouseRelease ends the gesture and dispatches a transition for a valid drop.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if !m.pressed && !m.drag.Active() {
		return m, nil
	}
	m.pressed = false
	if !m.drag.Active() {
		return m, nil
	}
	m.trackPointer(m.layoutLanes(), app.Point{X: msg.X, Y: msg.Y})
	result := m.drag.End()
	m.press = pressState{}
	if !result.HasTarget {
		m.status = "dropped outside the lanes"
		return m, nil
	}
	req, ok := m.resolver.Resolve(result)
	if !ok {
		m.status = "ready"
		return m, nil
	}
	if m.transitions == nil {
		m.setNotice(notify.LevelFailure, "moves are unavailable")
		return m, nil
	}
	return m.dispatch(req)
}

// handleMouseWheel scrolls the selection in the selected lane.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || m.drag.Active() {
		return m, nil
	}
	tasks := m.currentLaneTasks()
	if len(tasks) == 0 {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selectedTask > 0 {
			m.selectedTask--
		}
	case tea.MouseWheelDown:
		if m.selectedTask < len(tasks)-1 {
			m.selectedTask++
		}
	}
	return m, nil
}

// beginDrag opens the drag session for the pressed card.
func (m *Model) beginDrag(layouts []laneLayout, point app.Point) bool {
	if err := m.drag.Begin(m.press.task); err != nil {
		if errors.Is(err, app.ErrDragSessionActive) {
			m.logger.Warn("drag begin rejected", "task_id", m.press.task.ID, "err", err)
		}
		m.status = err.Error()
		return false
	}
	m.trackPointer(layouts, point)
	m.status = "dragging"
	m.notice = notify.Notice{}
	return true
}

// trackPointer records the pointer translation and the lane under it.
func (m *Model) trackPointer(layouts []laneLayout, point app.Point) {
	m.drag.UpdatePointer(app.Offset{X: point.X - m.press.origin.X, Y: point.Y - m.press.origin.Y})
	lane, ok := app.LaneAt(laneRegions(layouts), point)
	m.drag.UpdateFocus(lane, ok)
}

// cancelDrag aborts an open gesture.
func (m Model) cancelDrag() Model {
	if m.drag.Active() {
		m.drag.Cancel()
		m.status = "drag cancelled"
	}
	m.pressed = false
	m.press = pressState{}
	return m
}

// setNotice shows a local notice.
func (m *Model) setNotice(level notify.Level, message string) {
	m.notice = notify.Notice{Level: level, Message: message, At: m.now()}
}

// noticeLevelFor maps an outcome to the notice level the controller would emit.
func noticeLevelFor(outcome app.Outcome) notify.Level {
	switch outcome.Result {
	case app.OutcomeSuccess:
		return notify.LevelSuccess
	case app.OutcomeFailure:
		return notify.LevelFailure
	case app.OutcomeRejected:
		if errors.Is(outcome.Err, app.ErrInvalidTransition) {
			return notify.LevelFailure
		}
	}
	return notify.LevelInfo
}

// currentLaneTasks returns the selected lane's tasks.
func (m Model) currentLaneTasks() []domain.Task {
	column, ok := m.board.Column(domain.Lane(m.selectedLane))
	if !ok {
		return nil
	}
	return column.Tasks
}

// selectedTaskInLane returns the focused task.
func (m Model) selectedTaskInLane() (domain.Task, bool) {
	tasks := m.currentLaneTasks()
	if len(tasks) == 0 {
		return domain.Task{}, false
	}
	return tasks[clamp(m.selectedTask, 0, len(tasks)-1)], true
}

// focusTask moves the selection onto taskID when it is visible.
func (m *Model) focusTask(taskID string) {
	board := m.board
	for _, column := range board.Lanes {
		for idx, task := range column.Tasks {
			if task.ID == taskID {
				m.selectedLane = int(column.Lane)
				m.selectedTask = idx
				return
			}
		}
	}
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	m.selectedLane = clamp(m.selectedLane, 0, len(domain.Lanes())-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(m.currentLaneTasks())-1))
}

// moveTargets lists every lane except the task's own, in board order.
func moveTargets(task domain.Task) []domain.Lane {
	current, classified := task.Lane()
	out := make([]domain.Lane, 0, len(domain.Lanes()))
	for _, lane := range domain.Lanes() {
		if classified && lane == current {
			continue
		}
		out = append(out, lane)
	}
	return out
}

// travel returns the chessboard distance between two points.
func travel(a, b app.Point) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// renderStatusLine renders the latest notice or the plain status.
func (m Model) renderStatusLine(muted color.Color) string {
	if m.notice.Message == "" {
		return lipgloss.NewStyle().Foreground(muted).Render(m.status)
	}
	icon, fg := "ℹ", lipgloss.Color("75")
	switch m.notice.Level {
	case notify.LevelSuccess:
		icon, fg = "✓", lipgloss.Color("78")
	case notify.LevelFailure:
		icon, fg = "✗", lipgloss.Color("203")
	}
	return lipgloss.NewStyle().Foreground(fg).Render(icon + " " + m.notice.Message)
}

// renderDragGhost renders the floating card and its top-left cell.
func (m Model) renderDragGhost(accent color.Color) (string, app.Point, bool) {
	task, ok := m.drag.Task()
	if !ok {
		return "", app.Point{}, false
	}
	offset := m.drag.Transform()
	width := max(12, m.columnWidth()-4)
	lines := []string{lipgloss.NewStyle().Bold(true).Render(truncate(task.Title, width))}
	if m.showDescription {
		lines = append(lines, truncate(firstLine(task.Description), width))
	}
	ghost := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Foreground(lipgloss.Color("212")).
		Render(strings.Join(lines, "\n"))
	at := app.Point{
		X: max(0, m.press.card.X+offset.X-1),
		Y: max(0, m.press.card.Y+offset.Y-1),
	}
	return ghost, at, true
}

// renderModeOverlay renders the active modal.
func (m Model) renderModeOverlay(accent, muted color.Color, maxWidth int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeAddTask:
		if maxWidth > 0 {
			boxStyle = boxStyle.Width(clamp(maxWidth, 30, 64))
		}
		lane := domain.Lane(m.selectedLane)
		return boxStyle.Render(strings.Join([]string{
			titleStyle.Render("New task in " + lane.Name()),
			m.titleInput.View(),
			hintStyle.Render("enter create • esc cancel"),
		}, "\n"))

	case modeMovePicker:
		task, _ := m.selectedTaskInLane()
		lines := []string{titleStyle.Render("Move " + truncate(task.Title, 32) + " to")}
		for idx, lane := range m.pickerLanes {
			cursor := "  "
			if idx == m.pickerIndex {
				cursor = "› "
			}
			lines = append(lines, fmt.Sprintf("%s%d. %s", cursor, int(lane)+1, lane.Name()))
		}
		lines = append(lines, hintStyle.Render("j/k choose • enter move • esc cancel"))
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		task, _, ok := m.board.Find(m.deleteTaskID)
		if !ok {
			return ""
		}
		return boxStyle.Render(strings.Join([]string{
			titleStyle.Render("Delete task?"),
			truncate(task.Title, 48),
			hintStyle.Render("enter/y delete • esc/n cancel"),
		}, "\n"))

	case modeTaskInfo:
		task, lane, ok := m.board.Find(m.infoTaskID)
		if !ok {
			return ""
		}
		width := 60
		if maxWidth > 0 {
			width = clamp(maxWidth, 30, 76)
			boxStyle = boxStyle.Width(width)
		}
		lines := []string{
			titleStyle.Render(task.Title),
			hintStyle.Render("id: " + task.ID),
			hintStyle.Render(fmt.Sprintf("status: %s • lane: %s", task.Status, lane.Name())),
			hintStyle.Render("updated: " + formatTimestamp(task.UpdatedAt) + " • created: " + formatTimestamp(task.CreatedAt)),
		}
		if desc := m.markdown.render(task.Description, width-4); desc != "" {
			lines = append(lines, "", desc)
		}
		if len(m.infoActivity) > 0 {
			lines = append(lines, "", titleStyle.Render("Recent activity"))
			for _, event := range m.infoActivity {
				lines = append(lines, formatActivity(event))
			}
		}
		lines = append(lines, "", hintStyle.Render("y copy id • esc close"))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}
	return ""
}

// formatActivity renders one ledger row.
func formatActivity(event domain.ChangeEvent) string {
	summary := string(event.Operation)
	if event.Operation == domain.ChangeOperationMove {
		summary = fmt.Sprintf("moved %s → %s", event.Metadata["from_status"], event.Metadata["to_status"])
	}
	actor := event.ActorID
	if actor == "" {
		actor = string(event.ActorType)
	}
	return fmt.Sprintf("%s  %s by %s", formatTimestamp(event.OccurredAt), summary, actor)
}

// formatTimestamp renders a compact local timestamp.
func formatTimestamp(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return at.Local().Format("2006-01-02 15:04")
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// wrapIndex wraps current+delta into [0,total).
func wrapIndex(current int, delta int, total int) int {
	if total <= 0 {
		return 0
	}
	next := (current + delta) % total
	if next < 0 {
		next += total
	}
	return next
}

// windowBounds returns an inclusive-exclusive list window that keeps selected visible.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= 0 || windowSize <= 0 {
		return 0, 0
	}
	if total <= windowSize {
		return 0, total
	}
	selected = clamp(selected, 0, total-1)
	start := max(0, selected-windowSize/2)
	end := start + windowSize
	if end > total {
		end = total
		start = max(0, end-windowSize)
	}
	return start, end
}

// clamp clamps v into [minV,maxV].
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or trims content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	x := max(0, (width-lipgloss.Width(overlay))/2)
	y := max(0, (height-lipgloss.Height(overlay))/2)
	return composeLayers(base, width, height, lipgloss.NewLayer(overlay).X(x).Y(y).Z(10))
}

// composeLayers draws layers above base on one canvas.
func composeLayers(base string, width, height int, layers ...*lipgloss.Layer) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	for _, layer := range layers {
		canvas.Compose(layer)
	}
	return canvas.Render()
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
