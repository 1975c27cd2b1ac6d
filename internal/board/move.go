package board

// Move packs a move into 16 bits:
//
//	bits 0-5    origin square
//	bits 6-11   destination square
//	bits 12-15  MoveFlag
//
// The zero value is the empty move.
type Move uint16

// MoveFlag is the 4-bit move kind.
type MoveFlag uint8

const (
	FlagQuiet MoveFlag = iota
	FlagEnPassant
	FlagCastle
	FlagDoublePush
	FlagPromoteKnight
	FlagPromoteBishop
	FlagPromoteRook
	FlagPromoteQueen
)

// NoMove is the sentinel for "no move found".
const NoMove Move = 0

// NewMove packs origin, destination and flag.
func NewMove(from, to Square, flag MoveFlag) Move {
	return Move(from) | Move(to)<<6 | Move(flag)<<12
}

// PromotionFlag returns the flag promoting to pt (knight through queen).
func PromotionFlag(pt PieceType) MoveFlag {
	return FlagPromoteKnight + MoveFlag(pt-Knight)
}

func (m Move) From() Square      { return Square(m & 0x3F) }
func (m Move) To() Square        { return Square((m >> 6) & 0x3F) }
func (m Move) Flag() MoveFlag    { return MoveFlag(m >> 12) }
func (m Move) IsEmpty() bool     { return m == NoMove }
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }
func (m Move) IsCastle() bool    { return m.Flag() == FlagCastle }
func (m Move) IsDoublePush() bool {
	return m.Flag() == FlagDoublePush
}

// IsPromotion reports whether the flag is one of the four promotions.
func (m Move) IsPromotion() bool {
	return m.Flag() >= FlagPromoteKnight
}

// Promotion returns the piece promoted to, or NoPieceType.
func (m Move) Promotion() PieceType {
	if !m.IsPromotion() {
		return NoPieceType
	}
	return Knight + PieceType(m.Flag()-FlagPromoteKnight)
}

// String renders UCI move text such as "e2e4" or "e7e8q".
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string(m.Promotion().Char())
	}
	return s
}

// MaxMoves bounds the number of legal moves in any reachable position.
const MaxMoves = 256

// MoveList is a fixed-capacity move buffer filled by the generator.
type MoveList struct {
	moves [MaxMoves]Move
	n     int
}

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.n] = m
	ml.n++
}

func (ml *MoveList) Len() int       { return ml.n }
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }
func (ml *MoveList) Swap(i, j int)  { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }
func (ml *MoveList) Clear()         { ml.n = 0 }
func (ml *MoveList) Slice() []Move  { return ml.moves[:ml.n] }

// Contains reports whether m was generated.
func (ml *MoveList) Contains(m Move) bool {
	for _, x := range ml.moves[:ml.n] {
		if x == m {
			return true
		}
	}
	return false
}
