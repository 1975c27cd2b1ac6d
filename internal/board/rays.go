package board

// Direction names one of the eight sliding directions.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
	NorthEast
	SouthEast
	SouthWest
	NorthWest
)

var directionStep = [8][2]int{
	North:     {0, 1},
	East:      {1, 0},
	South:     {0, -1},
	West:      {-1, 0},
	NorthEast: {1, 1},
	SouthEast: {1, -1},
	SouthWest: {-1, -1},
	NorthWest: {-1, 1},
}

// rays[d][sq] holds every square reached from sq stepping in d, sq excluded.
var rays [8][64]Bitboard

// Ray returns the squares from sq to the board edge in direction d.
func Ray(d Direction, sq Square) Bitboard {
	return rays[d][sq]
}

// Orthogonal reports whether d runs along a rank or file.
func (d Direction) Orthogonal() bool {
	return d <= West
}

// Ascending reports whether squares along d have increasing indices.
// On an ascending ray the nearest blocker is the lowest set bit.
func (d Direction) Ascending() bool {
	return d == North || d == East || d == NorthEast || d == NorthWest
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d.Orthogonal() {
		return (d + 2) & 3
	}
	return 4 + (d-4+2)&3
}

func initRays() {
	for sq := A1; sq <= H8; sq++ {
		for d := North; d <= NorthWest; d++ {
			var ray Bitboard
			f, r := sq.File(), sq.Rank()
			for {
				f += directionStep[d][0]
				r += directionStep[d][1]
				if f < 0 || f > 7 || r < 0 || r > 7 {
					break
				}
				ray |= SquareBB(NewSquare(f, r))
			}
			rays[d][sq] = ray
		}
	}
}

// nearest returns the first square of set along direction d, which must be
// non-empty.
func nearest(d Direction, set Bitboard) Square {
	if d.Ascending() {
		return set.LSB()
	}
	return set.MSB()
}

// rayAttacks is the blocker-aware attack set along d, the first blocker
// included.
func rayAttacks(d Direction, sq Square, occupied Bitboard) Bitboard {
	ray := rays[d][sq]
	if blockers := ray & occupied; blockers != 0 {
		ray &^= rays[d][nearest(d, blockers)]
	}
	return ray
}

// slowRookAttacks and slowBishopAttacks feed magic table construction.
func slowRookAttacks(sq Square, occupied Bitboard) Bitboard {
	return rayAttacks(North, sq, occupied) | rayAttacks(East, sq, occupied) |
		rayAttacks(South, sq, occupied) | rayAttacks(West, sq, occupied)
}

func slowBishopAttacks(sq Square, occupied Bitboard) Bitboard {
	return rayAttacks(NorthEast, sq, occupied) | rayAttacks(SouthEast, sq, occupied) |
		rayAttacks(SouthWest, sq, occupied) | rayAttacks(NorthWest, sq, occupied)
}
