package app

import (
	"github.com/evanschultz/laneboard/internal/domain"
)

// Point is a pointer position in screen cells.
type Point struct {
	X int
	Y int
}

// LaneRegion is the inclusive-exclusive screen rectangle owned by a lane.
type LaneRegion struct {
	Lane domain.Lane
	X0   int
	Y0   int
	X1   int
	Y1   int
}

// Contains reports whether p falls inside the region.
func (r LaneRegion) Contains(p Point) bool {
	return p.X >= r.X0 && p.X < r.X1 && p.Y >= r.Y0 && p.Y < r.Y1
}

// centerDistance returns the squared distance from p to the region center in half-cells.
func (r LaneRegion) centerDistance(p Point) int {
	dx := 2*p.X - (r.X0 + r.X1)
	dy := 2*p.Y - (r.Y0 + r.Y1)
	return dx*dx + dy*dy
}

// LaneAt returns the lane owning p. When regions overlap the nearest center wins
// and equal distances resolve to the earlier lane in board order.
func LaneAt(regions []LaneRegion, p Point) (domain.Lane, bool) {
	found := false
	var best LaneRegion
	bestDist := 0
	for _, region := range regions {
		if !region.Lane.Valid() || !region.Contains(p) {
			continue
		}
		dist := region.centerDistance(p)
		if !found || dist < bestDist || (dist == bestDist && region.Lane < best.Lane) {
			best, bestDist, found = region, dist, true
		}
	}
	if !found {
		return 0, false
	}
	return best.Lane, true
}

// DropResolver turns ended drag gestures into transition requests.
type DropResolver struct{}

// Resolve returns a request only when the drop had a target different from
// the task's classified lane.
func (DropResolver) Resolve(result DragResult) (TransitionRequest, bool) {
	if !result.HasTarget || !result.Target.Valid() {
		return TransitionRequest{}, false
	}
	if current, ok := domain.Classify(result.Task.Status); ok && current == result.Target {
		return TransitionRequest{}, false
	}
	return TransitionRequest{Task: result.Task, Destination: result.Target}, true
}
