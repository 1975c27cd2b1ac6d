package engine

import (
	"time"

	"github.com/hailam/bitsearch/internal/board"
)

const (
	defaultMoveTime = time.Second
	minMoveTime     = 100 * time.Millisecond
	movesToGo       = 30
)

// Clock is the remaining time and increment of each side, indexed by
// board.Color.
type Clock struct {
	Remaining [2]time.Duration
	Increment [2]time.Duration
}

// CalculateSearchTime budgets one move: a thirtieth of the remaining time
// plus the increment, never below 100ms. A side without clock time gets one
// second.
func CalculateSearchTime(remaining, increment time.Duration) time.Duration {
	if remaining <= 0 {
		return defaultMoveTime
	}
	budget := remaining/movesToGo + increment
	// Never plan to spend more than half the clock in one move.
	if budget > remaining/2 {
		budget = remaining / 2
	}
	return max(budget, minMoveTime)
}

// Budget is the move time for side under clock c.
func (c Clock) Budget(side board.Color) time.Duration {
	return CalculateSearchTime(c.Remaining[side], c.Increment[side])
}
