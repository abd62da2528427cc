package domain

import (
	"strings"
	"unicode"
)

// Lane identifies one fixed board lane.
type Lane int

// Lane values in board order.
const (
	LaneTodo Lane = iota
	LaneInProgress
	LaneDone
)

// laneNames holds the canonical lane names written to task status.
var laneNames = [...]string{
	LaneTodo:       "To Do",
	LaneInProgress: "In Progress",
	LaneDone:       "Done",
}

// Lanes returns every lane in board order.
func Lanes() []Lane {
	return []Lane{LaneTodo, LaneInProgress, LaneDone}
}

// Name returns the canonical lane name.
func (l Lane) Name() string {
	if !l.Valid() {
		return ""
	}
	return laneNames[l]
}

// String implements fmt.Stringer.
func (l Lane) String() string {
	return l.Name()
}

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	return l >= LaneTodo && int(l) < len(laneNames)
}

// NormalizeStatus folds case and drops every whitespace rune.
// It is the only status normalization used by the board.
func NormalizeStatus(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Classify maps a free-form status to its lane.
// ok is false for statuses that match no lane.
func Classify(raw string) (lane Lane, ok bool) {
	normalized := NormalizeStatus(raw)
	if normalized == "" {
		return 0, false
	}
	for _, candidate := range Lanes() {
		if NormalizeStatus(candidate.Name()) == normalized {
			return candidate, true
		}
	}
	return 0, false
}

// ParseLane resolves a lane from its name or from a 1-based position ("1".."3").
func ParseLane(raw string) (Lane, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 1 && raw[0] >= '1' && raw[0] <= '9' {
		lane := Lane(raw[0] - '1')
		if lane.Valid() {
			return lane, nil
		}
	}
	if lane, ok := Classify(raw); ok {
		return lane, nil
	}
	return 0, ErrUnknownLane
}
