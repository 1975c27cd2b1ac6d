package engine

import (
	"sync/atomic"

	"github.com/hailam/bitsearch/internal/board"
)

const (
	Infinity  = 500000
	MateScore = 100000
	MaxPly    = 128

	// Scores beyond this magnitude announce a forced mate.
	mateBound = MateScore - MaxPly
)

// Searcher runs fixed-depth negamax with quiescence against one position
// and one table. Only the stop flag may be touched from another goroutine.
type Searcher struct {
	eval       Evaluator
	tt         *TranspositionTable
	orderer    MoveOrderer
	promotions board.PromotionMode

	stop  atomic.Bool
	nodes uint64

	// Best root move found by the running iteration.
	rootMove board.Move
}

// NewSearcher builds a searcher over eval and tt.
func NewSearcher(eval Evaluator, tt *TranspositionTable) *Searcher {
	return &Searcher{eval: eval, tt: tt}
}

// Stop asks the running search to unwind. Safe from any goroutine.
func (s *Searcher) Stop() { s.stop.Store(true) }

// Stopped reports whether the stop flag is set.
func (s *Searcher) Stopped() bool { return s.stop.Load() }

// Nodes is the number of nodes visited since the last Reset.
func (s *Searcher) Nodes() uint64 { return s.nodes }

// Rearm clears the stop flag. A Stop issued after Rearm and before the
// search starts is honoured.
func (s *Searcher) Rearm() { s.stop.Store(false) }

// Reset clears the counters before a new search. The stop flag is left
// alone.
func (s *Searcher) Reset() {
	s.nodes = 0
	s.rootMove = board.NoMove
}

// SearchRoot searches pos to depth within (alpha, beta) and returns the
// score and the best root move, NoMove when no move raised alpha.
func (s *Searcher) SearchRoot(pos *board.Position, depth, alpha, beta int) (int, board.Move) {
	s.rootMove = board.NoMove
	score := s.negamax(pos, depth, 0, alpha, beta)
	return score, s.rootMove
}

func (s *Searcher) negamax(pos *board.Position, depth, ply, alpha, beta int) int {
	if s.stop.Load() {
		return 0
	}
	s.nodes++
	hash := pos.Hash()

	// The root is always searched so the iteration records a fresh move.
	if ply > 0 {
		if score, ok := s.tt.Probe(hash, alpha, beta, depth); ok {
			return score
		}
	}
	if depth <= 0 || ply >= MaxPly {
		return s.quiescence(pos, ply, alpha, beta)
	}
	if pos.PlyClock >= 100 {
		return 0
	}

	gen := board.MoveGenerator{Promotions: s.promotions}
	var ml board.MoveList
	if gen.GenerateMoves(pos, &ml, false) == 0 {
		if gen.IsCheck() {
			return -MateScore + ply
		}
		return 0
	}
	s.orderer.Order(pos, &ml)

	origAlpha := alpha
	best := board.NoMove
	for _, m := range ml.Slice() {
		pos.MakeMove(m)
		score := -s.negamax(pos, depth-1, ply+1, -beta, -alpha)
		pos.UndoMove(m)

		if s.stop.Load() {
			return 0
		}
		if score >= beta {
			s.tt.Store(hash, depth, FailHighBeta, beta, m)
			return beta
		}
		if score > alpha {
			alpha = score
			best = m
			if ply == 0 {
				s.rootMove = m
			}
		}
	}

	if alpha > origAlpha {
		s.tt.Store(hash, depth, Exact, alpha, best)
	} else {
		s.tt.Store(hash, depth, FailLowAlpha, alpha, board.NoMove)
	}
	return alpha
}

// quiescence resolves captures until the position is quiet, standing pat
// on the static evaluation. Fail-hard, like the main search.
func (s *Searcher) quiescence(pos *board.Position, ply, alpha, beta int) int {
	if s.stop.Load() {
		return 0
	}
	s.nodes++

	standPat := FromSideToMove(s.eval, pos)
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}
	if ply >= MaxPly {
		return alpha
	}

	gen := board.MoveGenerator{Promotions: s.promotions}
	var ml board.MoveList
	gen.GenerateMoves(pos, &ml, true)
	s.orderer.Order(pos, &ml)

	for _, m := range ml.Slice() {
		pos.MakeMove(m)
		score := -s.quiescence(pos, ply+1, -beta, -alpha)
		pos.UndoMove(m)

		if s.stop.Load() {
			return 0
		}
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}
