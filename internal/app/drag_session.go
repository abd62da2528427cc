package app

import (
	"github.com/evanschultz/laneboard/internal/domain"
)

// Offset is a pointer translation in cells relative to the gesture origin.
type Offset struct {
	X int
	Y int
}

// DragResult is the final state of an ended or cancelled drag gesture.
type DragResult struct {
	Task      domain.Task
	Target    domain.Lane
	HasTarget bool
}

// DragSession tracks one pointer-driven relocation. The zero value is an idle session.
// It is not safe for concurrent use; the owning event loop serializes updates.
type DragSession struct {
	active   bool
	task     domain.Task
	offset   Offset
	focus    domain.Lane
	hasFocus bool
}

// Begin starts a gesture holding task. It fails while another gesture is open.
func (s *DragSession) Begin(task domain.Task) error {
	if s.active {
		return ErrDragSessionActive
	}
	*s = DragSession{active: true, task: task}
	return nil
}

// Active reports whether a gesture is open.
func (s *DragSession) Active() bool {
	return s.active
}

// Task returns the held task while a gesture is open.
func (s *DragSession) Task() (domain.Task, bool) {
	if !s.active {
		return domain.Task{}, false
	}
	return s.task, true
}

// UpdatePointer records the latest pointer translation. Ignored when idle.
func (s *DragSession) UpdatePointer(offset Offset) {
	if !s.active {
		return
	}
	s.offset = offset
}

// UpdateFocus replaces the focused lane; ok=false clears focus. Ignored when idle.
func (s *DragSession) UpdateFocus(lane domain.Lane, ok bool) {
	if !s.active {
		return
	}
	if ok && !lane.Valid() {
		ok = false
	}
	s.focus, s.hasFocus = lane, ok
}

// Focus returns the lane currently under pointer focus.
func (s *DragSession) Focus() (domain.Lane, bool) {
	if !s.active || !s.hasFocus {
		return 0, false
	}
	return s.focus, true
}

// Transform returns the visual translation for the held card.
func (s *DragSession) Transform() Offset {
	if !s.active {
		return Offset{}
	}
	return s.offset
}

// End finalizes the gesture and clears all session state.
func (s *DragSession) End() DragResult {
	if !s.active {
		return DragResult{}
	}
	out := DragResult{Task: s.task, Target: s.focus, HasTarget: s.hasFocus}
	*s = DragSession{}
	return out
}

// Cancel aborts the gesture; the result never carries a target.
func (s *DragSession) Cancel() DragResult {
	if !s.active {
		return DragResult{}
	}
	out := DragResult{Task: s.task}
	*s = DragSession{}
	return out
}
