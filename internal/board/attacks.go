package board

// Leaper tables and the between/line masks. All tables are written once in
// init and only read afterwards, so concurrent lookups need no locking.
var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard

	// between[a][b] holds the squares strictly between two aligned squares.
	between [64][64]Bitboard
)

func init() {
	initRays()
	initLeapers()
	initBetween()
	initMagics()
}

func initLeapers() {
	for sq := A1; sq <= H8; sq++ {
		b := SquareBB(sq)

		knightAttacks[sq] = (b<<17)&NotFileA | (b<<15)&NotFileH |
			(b>>15)&NotFileA | (b>>17)&NotFileH |
			(b<<10)&NotFileAB | (b<<6)&NotFileGH |
			(b>>6)&NotFileAB | (b>>10)&NotFileGH

		kingAttacks[sq] = b.North() | b.South() | b.East() | b.West() |
			b.NorthEast() | b.NorthWest() | b.SouthEast() | b.SouthWest()

		pawnAttacks[White][sq] = b.NorthEast() | b.NorthWest()
		pawnAttacks[Black][sq] = b.SouthEast() | b.SouthWest()
	}
}

func initBetween() {
	for from := A1; from <= H8; from++ {
		for d := North; d <= NorthWest; d++ {
			ray := rays[d][from]
			for r := ray; r != 0; {
				to := r.PopLSB()
				between[from][to] = ray &^ rays[d][to] &^ SquareBB(to)
			}
		}
	}
}

func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }
func KingAttacks(sq Square) Bitboard   { return kingAttacks[sq] }

// PawnAttacks returns the squares a pawn of colour c on sq captures on.
func PawnAttacks(sq Square, c Color) Bitboard {
	return pawnAttacks[c][sq]
}

// Between returns the squares strictly between a and b, or Empty when
// they do not share a line.
func Between(a, b Square) Bitboard {
	return between[a][b]
}

// attackersOf returns the pieces of colour by attacking sq, with sliders
// seen through the given occupancy.
func (p *Position) attackersOf(sq Square, by Color, occupied Bitboard) Bitboard {
	them := p.Colours[by]
	diag := p.Types[Bishop] | p.Types[Queen]
	orth := p.Types[Rook] | p.Types[Queen]
	return them & (pawnAttacks[by.Other()][sq]&p.Types[Pawn] |
		knightAttacks[sq]&p.Types[Knight] |
		kingAttacks[sq]&p.Types[King] |
		BishopAttacks(sq, occupied)&diag |
		RookAttacks(sq, occupied)&orth)
}

// IsSquareAttacked reports whether any piece of colour by attacks sq.
func (p *Position) IsSquareAttacked(sq Square, by Color) bool {
	return p.attackersOf(sq, by, p.Occupied()) != 0
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.IsSquareAttacked(p.KingSquare(p.SideToMove), p.SideToMove.Other())
}
