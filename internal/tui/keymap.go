package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig holds user overrides for board action keys. Blank fields keep the defaults.
type KeyConfig struct {
	AddTask       string
	DeleteTask    string
	TaskInfo      string
	CopyID        string
	MoveTo        string
	MoveTaskLeft  string
	MoveTaskRight string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	cancel        key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	addTask       key.Binding
	taskInfo      key.Binding
	deleteTask    key.Binding
	copyID        key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	moveTo        key.Binding
	moveToLane    key.Binding
	confirm       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		cancel:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag/close")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "lane left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "lane right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		addTask:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		taskInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		deleteTask:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		copyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		moveTo:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move to…")),
		moveToLane:    key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "move to lane")),
		confirm:       key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter/y", "confirm")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.taskInfo, k.moveTo, k.moveTaskLeft, k.moveTaskRight, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.taskInfo, k.deleteTask, k.copyID, k.toggleHelp, k.reload, k.quit},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.moveTaskLeft, k.moveTaskRight, k.moveTo, k.moveToLane, k.cancel},
	}
}

// applyConfig applies configured key overrides.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.addTask, cfg.AddTask, "n", "new task")
	configureBinding(&k.deleteTask, cfg.DeleteTask, "d", "delete task")
	configureBinding(&k.taskInfo, cfg.TaskInfo, "i", "task info")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy task id")
	configureBinding(&k.moveTo, cfg.MoveTo, "m", "move to…")
	configureBinding(&k.moveTaskLeft, cfg.MoveTaskLeft, "[", "move task left")
	configureBinding(&k.moveTaskRight, cfg.MoveTaskRight, "]", "move task right")
}

// configureBinding replaces keys and help for one binding when raw is set.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}
