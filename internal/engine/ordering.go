package engine

import (
	"sort"

	"github.com/hailam/bitsearch/internal/board"
)

// orderValue ranks piece types for MVV-LVA, pawn lowest.
var orderValue = [...]int{
	board.Pawn:   100,
	board.Knight: 200,
	board.Bishop: 300,
	board.Rook:   400,
	board.Queen:  500,
	board.King:   600,
}

// MoveOrderer sorts captures ahead of quiet moves, most valuable victim
// first and, among equal victims, least valuable attacker first.
type MoveOrderer struct {
	scores [board.MaxMoves]int
}

// Score returns the ordering key of m: victim - attacker/100 + 1000 for
// captures, zero otherwise.
func Score(pos *board.Position, m board.Move) int {
	victim := board.NoPieceType
	if m.IsEnPassant() {
		victim = board.Pawn
	} else if pc := pos.PieceAt(m.To()); pc != board.NoPiece {
		victim = pc.Type()
	}
	if victim == board.NoPieceType {
		return 0
	}
	attacker := pos.PieceAt(m.From()).Type()
	return orderValue[victim] - orderValue[attacker]/100 + 1000
}

// Order sorts ml in place by descending score.
func (o *MoveOrderer) Order(pos *board.Position, ml *board.MoveList) {
	moves := ml.Slice()
	for i, m := range moves {
		o.scores[i] = Score(pos, m)
	}
	sort.Stable(byScore{moves: moves, scores: o.scores[:len(moves)]})
}

type byScore struct {
	moves  []board.Move
	scores []int
}

func (b byScore) Len() int           { return len(b.moves) }
func (b byScore) Less(i, j int) bool { return b.scores[i] > b.scores[j] }
func (b byScore) Swap(i, j int) {
	b.moves[i], b.moves[j] = b.moves[j], b.moves[i]
	b.scores[i], b.scores[j] = b.scores[j], b.scores[i]
}
