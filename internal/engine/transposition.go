package engine

import (
	"github.com/pbnjay/memory"
	"github.com/samber/lo"

	"github.com/hailam/bitsearch/internal/board"
)

// TTFlag says how a stored score relates to the true value.
type TTFlag uint8

const (
	Exact        TTFlag = iota // score is the true value
	FailLowAlpha               // no move beat alpha; score is an upper bound
	FailHighBeta               // a move reached beta; score is a lower bound
)

func (f TTFlag) String() string {
	switch f {
	case Exact:
		return "exact"
	case FailLowAlpha:
		return "fail-low"
	default:
		return "fail-high"
	}
}

// TTEntry is one stored search result.
type TTEntry struct {
	Key   uint64
	Depth int
	Flag  TTFlag
	Score int
	Move  board.Move
}

// ttSlot holds at most one entry; used is false until the first write.
type ttSlot struct {
	entry TTEntry
	used  bool
}

const ttSlotBytes = 40

// TTStats counts table traffic since the last Clear.
type TTStats struct {
	Probes     uint64
	Hits       uint64
	Writes     uint64
	Rejected   uint64 // shallower writes discarded
	Collisions uint64 // writes evicting a different position
}

// TranspositionTable is a single-slot, depth-preferred cache of search
// results indexed by hash modulo size. It is not safe for concurrent use.
type TranspositionTable struct {
	slots []ttSlot
	stats TTStats
}

// NewTranspositionTable sizes the table to sizeMB megabytes, capped at half
// of physical memory.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	bytes := uint64(max(sizeMB, 1)) << 20
	if total := memory.TotalMemory(); total > 0 {
		bytes = min(bytes, total/2)
	}
	return NewTranspositionTableEntries(int(bytes / ttSlotBytes))
}

// NewTranspositionTableEntries builds a table with exactly n slots.
func NewTranspositionTableEntries(n int) *TranspositionTable {
	return &TranspositionTable{slots: make([]ttSlot, max(n, 1))}
}

// Len is the number of slots.
func (tt *TranspositionTable) Len() int { return len(tt.slots) }

func (tt *TranspositionTable) slot(hash uint64) *ttSlot {
	return &tt.slots[hash%uint64(len(tt.slots))]
}

// Store writes a result unless the slot already holds a deeper one.
func (tt *TranspositionTable) Store(hash uint64, depth int, flag TTFlag, score int, best board.Move) {
	s := tt.slot(hash)
	if s.used {
		if depth < s.entry.Depth {
			tt.stats.Rejected++
			return
		}
		if s.entry.Key != hash {
			tt.stats.Collisions++
		}
	}
	s.entry = TTEntry{Key: hash, Depth: depth, Flag: flag, Score: score, Move: best}
	s.used = true
	tt.stats.Writes++
}

// Lookup returns the entry stored for hash, if any.
func (tt *TranspositionTable) Lookup(hash uint64) (TTEntry, bool) {
	s := tt.slot(hash)
	if !s.used || s.entry.Key != hash {
		return TTEntry{}, false
	}
	return s.entry, true
}

// Probe returns a score usable at a node searched to depth with window
// (alpha, beta). Bounds are only reused conservatively: a fail-low entry
// answers alpha when its bound is at or below alpha, and a fail-high entry
// answers only when the caller's window is already closed.
func (tt *TranspositionTable) Probe(hash uint64, alpha, beta, depth int) (int, bool) {
	tt.stats.Probes++
	e, ok := tt.Lookup(hash)
	if !ok || e.Depth < depth {
		return 0, false
	}
	switch e.Flag {
	case Exact:
		tt.stats.Hits++
		return e.Score, true
	case FailLowAlpha:
		if e.Score <= alpha {
			tt.stats.Hits++
			return alpha, true
		}
	case FailHighBeta:
		if alpha >= beta {
			tt.stats.Hits++
			return e.Score, true
		}
	}
	return 0, false
}

// ExtractPrincipalVariation follows stored best moves from pos on a
// scratch copy. The walk ends at a missing or non-exact entry, at a move
// that is not legal in the reached position, or when a move repeats.
func (tt *TranspositionTable) ExtractPrincipalVariation(pos *board.Position, maxLen int) []board.Move {
	scratch := pos.Copy()
	var pv []board.Move
	for len(pv) < maxLen {
		e, ok := tt.Lookup(scratch.Hash())
		if !ok || e.Flag != Exact || e.Move.IsEmpty() {
			break
		}
		if lo.Contains(pv, e.Move) || !scratch.LegalMoves().Contains(e.Move) {
			break
		}
		scratch.MakeMove(e.Move)
		pv = append(pv, e.Move)
	}
	return pv
}

// Clear empties every slot and resets the counters.
func (tt *TranspositionTable) Clear() {
	clear(tt.slots)
	tt.stats = TTStats{}
}

// HashFull samples the first thousand slots and reports use in permille.
func (tt *TranspositionTable) HashFull() int {
	n := min(len(tt.slots), 1000)
	used := lo.CountBy(tt.slots[:n], func(s ttSlot) bool { return s.used })
	return used * 1000 / n
}

func (tt *TranspositionTable) Stats() TTStats { return tt.stats }
