package board

import "sort"

// Perft counts leaf nodes of the legal move tree to the given depth.
func Perft(p *Position, depth int) uint64 {
	return perft(p, depth, false)
}

// PerftCaptures counts leaves of the tree built from captures-only
// generation, which exercises the quiescence move path.
func PerftCaptures(p *Position, depth int) uint64 {
	return perft(p, depth, true)
}

func perft(p *Position, depth int, capturesOnly bool) uint64 {
	if depth == 0 {
		return 1
	}
	var g MoveGenerator
	var ml MoveList
	n := g.GenerateMoves(p, &ml, capturesOnly)
	if depth == 1 {
		return uint64(n)
	}
	var nodes uint64
	for _, m := range ml.Slice() {
		p.MakeMove(m)
		nodes += perft(p, depth-1, capturesOnly)
		p.UndoMove(m)
	}
	return nodes
}

// PerftSplit is the node count below one root move.
type PerftSplit struct {
	Move  Move
	Nodes uint64
}

// Divide runs perft below each root move, sorted by move text.
func Divide(p *Position, depth int, capturesOnly bool) []PerftSplit {
	if depth < 1 {
		return nil
	}
	var g MoveGenerator
	var ml MoveList
	g.GenerateMoves(p, &ml, capturesOnly)
	out := make([]PerftSplit, 0, ml.Len())
	for _, m := range ml.Slice() {
		p.MakeMove(m)
		out = append(out, PerftSplit{Move: m, Nodes: perft(p, depth-1, capturesOnly)})
		p.UndoMove(m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Move.String() < out[j].Move.String() })
	return out
}
