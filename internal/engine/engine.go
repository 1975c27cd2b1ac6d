package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/bitsearch/internal/board"
)

const aspirationWindow = 50

// DefaultMaxDepth bounds searches that give no depth limit.
const DefaultMaxDepth = 64

// SearchInfo describes one completed iteration.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // permille
}

// Limits bounds one search. Zero values mean no limit of that kind.
type Limits struct {
	Depth    int
	MoveTime time.Duration
	Infinite bool
}

// Result is the outcome of the deepest completed iteration.
type Result struct {
	BestMove board.Move
	Score    int
	Depth    int
	Nodes    uint64
	PV       []board.Move
	Elapsed  time.Duration
}

// Engine drives iterative deepening over a Searcher. One search runs at a
// time; Stop may be called from any goroutine.
type Engine struct {
	searcher *Searcher
	tt       *TranspositionTable
	log      zerolog.Logger

	// MaxDepth caps iterations when Limits.Depth is zero.
	MaxDepth int

	// OnInfo, when set, is called after every completed iteration on the
	// searching goroutine.
	OnInfo func(SearchInfo)
}

// NewEngine builds an engine with a table of hashMB megabytes.
func NewEngine(hashMB int, eval Evaluator, logger zerolog.Logger) *Engine {
	return NewEngineWithTable(NewTranspositionTable(hashMB), eval, logger)
}

// NewEngineWithTable builds an engine over an existing table.
func NewEngineWithTable(tt *TranspositionTable, eval Evaluator, logger zerolog.Logger) *Engine {
	logger = logger.With().Str("component", "engine").Logger()
	logger.Debug().Int("slots", tt.Len()).Msg("transposition table ready")
	return &Engine{
		searcher: NewSearcher(eval, tt),
		tt:       tt,
		log:      logger,
		MaxDepth: DefaultMaxDepth,
	}
}

// SetPromotions selects which promotions the search considers.
func (e *Engine) SetPromotions(mode board.PromotionMode) {
	e.searcher.promotions = mode
}

// SetHashSize replaces the table with an empty one of sizeMB megabytes.
// It must not be called while a search runs.
func (e *Engine) SetHashSize(sizeMB int) {
	e.tt = NewTranspositionTable(sizeMB)
	e.searcher.tt = e.tt
	e.log.Debug().Int("slots", e.tt.Len()).Msg("transposition table resized")
}

// Table exposes the transposition table.
func (e *Engine) Table() *TranspositionTable { return e.tt }

// Evaluator returns the static evaluator in use.
func (e *Engine) Evaluator() Evaluator { return e.searcher.eval }

// Stop makes the running search return its last completed result.
func (e *Engine) Stop() { e.searcher.Stop() }

// Prepare clears a stale stop request. Callers that run Go on another
// goroutine call it before starting that goroutine, so a Stop sent in
// between is not lost.
func (e *Engine) Prepare() { e.searcher.Rearm() }

// Clear forgets everything learned in previous games.
func (e *Engine) Clear() { e.tt.Clear() }

// Go searches pos, which is mutated during the search and restored before
// returning. The search ends at the depth limit, when the move time runs
// out, when Stop is called or when ctx is done. Only iterations that
// finish contribute to the result. A Stop pending when Go is entered ends
// the search at once; the stop request is consumed on return.
func (e *Engine) Go(ctx context.Context, pos *board.Position, limits Limits) Result {
	s := e.searcher
	s.Reset()
	defer s.Rearm()
	start := time.Now()

	if limits.MoveTime > 0 {
		timer := time.AfterFunc(limits.MoveTime, s.Stop)
		defer timer.Stop()
	}
	stopOnCancel := context.AfterFunc(ctx, s.Stop)
	defer stopOnCancel()

	maxDepth := e.MaxDepth
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}
	maxDepth = min(maxDepth, MaxPly-1)

	var res Result
	prev := 0
	widened := false
	for depth := 1; depth <= maxDepth; {
		alpha, beta := -Infinity, Infinity
		narrow := depth > 1 && !widened
		if narrow {
			alpha, beta = prev-aspirationWindow, prev+aspirationWindow
		}

		score, move := s.SearchRoot(pos, depth, alpha, beta)
		if s.Stopped() {
			break
		}
		if narrow && (score <= alpha || score >= beta) {
			e.log.Debug().Int("depth", depth).Int("score", score).Msg("aspiration window failed")
			widened = true
			continue
		}
		widened = false

		res = Result{
			BestMove: move,
			Score:    score,
			Depth:    depth,
			Nodes:    s.Nodes(),
			Elapsed:  time.Since(start),
		}
		res.PV = e.tt.ExtractPrincipalVariation(pos, depth)
		if move != board.NoMove && (len(res.PV) == 0 || res.PV[0] != move) {
			res.PV = []board.Move{move}
		}
		prev = score

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    res.Nodes,
				Time:     res.Elapsed,
				PV:       res.PV,
				HashFull: e.tt.HashFull(),
			})
		}

		if move == board.NoMove || (!limits.Infinite && abs(score) > mateBound) {
			break
		}
		depth++
	}

	if res.BestMove == board.NoMove {
		// Nothing completed or the root is drawn by rule: any legal move
		// beats resigning the turn.
		if ml := pos.LegalMoves(); ml.Len() > 0 {
			res.BestMove = ml.Get(0)
		}
	}
	res.Nodes = s.Nodes()
	res.Elapsed = time.Since(start)

	st := e.tt.Stats()
	e.log.Debug().
		Int("depth", res.Depth).
		Str("best", res.BestMove.String()).
		Uint64("nodes", res.Nodes).
		Dur("elapsed", res.Elapsed).
		Uint64("tt_probes", st.Probes).
		Uint64("tt_hits", st.Hits).
		Uint64("tt_writes", st.Writes).
		Uint64("tt_rejected", st.Rejected).
		Uint64("tt_collisions", st.Collisions).
		Msg("search finished")
	return res
}

// ScoreString renders a score the way the protocol expects it:
// "cp N" or "mate M", M negative when the side to move is mated.
func ScoreString(score int) string {
	switch {
	case score > mateBound:
		return fmt.Sprintf("mate %d", (MateScore-score+1)/2)
	case score < -mateBound:
		return fmt.Sprintf("mate %d", -(MateScore+score)/2)
	}
	return fmt.Sprintf("cp %d", score)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
