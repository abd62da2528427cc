package app

import (
	"github.com/evanschultz/laneboard/internal/domain"
)

// LaneColumn is one rendered lane with its classified tasks in store order.
type LaneColumn struct {
	Lane  domain.Lane
	Tasks []domain.Task
}

// Board is the classified view of a task collection.
type Board struct {
	Lanes []LaneColumn
	// Hidden counts tasks whose status matches no lane.
	Hidden int
}

// BuildBoard classifies tasks into lanes. The input slice is never modified.
func BuildBoard(tasks []domain.Task) Board {
	lanes := domain.Lanes()
	board := Board{Lanes: make([]LaneColumn, len(lanes))}
	for i, lane := range lanes {
		board.Lanes[i] = LaneColumn{Lane: lane, Tasks: []domain.Task{}}
	}
	for _, task := range tasks {
		lane, ok := domain.Classify(task.Status)
		if !ok {
			board.Hidden++
			continue
		}
		board.Lanes[lane].Tasks = append(board.Lanes[lane].Tasks, task)
	}
	return board
}

// Column returns the column for lane.
func (b Board) Column(lane domain.Lane) (LaneColumn, bool) {
	for _, column := range b.Lanes {
		if column.Lane == lane {
			return column, true
		}
	}
	return LaneColumn{}, false
}

// Find locates a visible task by id.
func (b Board) Find(taskID string) (domain.Task, domain.Lane, bool) {
	for _, column := range b.Lanes {
		for _, task := range column.Tasks {
			if task.ID == taskID {
				return task, column.Lane, true
			}
		}
	}
	return domain.Task{}, 0, false
}

// Total returns the number of visible tasks.
func (b Board) Total() int {
	total := 0
	for _, column := range b.Lanes {
		total += len(column.Tasks)
	}
	return total
}
