package board

import (
	"fmt"
	"strings"
)

// CastlingRights is a 4-bit set in Polyglot key order.
type CastlingRights uint8

const (
	WhiteKingside CastlingRights = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside

	NoCastling  CastlingRights = 0
	AllCastling CastlingRights = 15
)

func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	var sb strings.Builder
	for i, ch := range "KQkq" {
		if cr&(1<<i) != 0 {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// GameState is set by full move generation when no legal move exists.
type GameState uint8

const (
	InProgress GameState = iota
	Checkmate
	Stalemate
)

func (s GameState) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "in progress"
	}
}

// MaxHistory bounds the undo stack. Search depth plus game length never
// comes close; exceeding it means moves are made without being undone.
const MaxHistory = 2048

// undoRecord holds what MakeMove cannot recompute when undoing.
type undoRecord struct {
	key        ZobristKey
	castling   CastlingRights
	plyClock   int
	moveNumber int
	captured   PieceType
	epFile     int8
	state      GameState
	side       Color
}

// Position is a board held as two colour sets and six piece-type sets.
// A square is occupied exactly when one colour bit is set, and then exactly
// one type bit is set too.
type Position struct {
	Colours [2]Bitboard
	Types   [6]Bitboard

	SideToMove    Color
	Castling      CastlingRights
	EnPassantFile int8 // -1 unless the last move was a double pawn push
	PlyClock      int  // half-moves since the last capture or pawn move
	MoveNumber    int
	State         GameState

	// Key is maintained incrementally and always equals ComputeKey.
	Key ZobristKey

	history []undoRecord
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	p, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// Reset returns p to the starting position with an empty undo stack.
func (p *Position) Reset() {
	*p = *NewPosition()
}

// Copy returns an independent deep copy, undo stack included.
func (p *Position) Copy() *Position {
	c := *p
	c.history = append(make([]undoRecord, 0, len(p.history)+64), p.history...)
	return &c
}

// Hash returns the 64-bit position key.
func (p *Position) Hash() uint64 {
	return p.Key.Hash()
}

// HistoryLen is the number of moves made and not yet undone.
func (p *Position) HistoryLen() int {
	return len(p.history)
}

func (p *Position) Occupied() Bitboard {
	return p.Colours[White] | p.Colours[Black]
}

// Pieces returns the pieces of type pt and colour c.
func (p *Position) Pieces(c Color, pt PieceType) Bitboard {
	return p.Colours[c] & p.Types[pt]
}

// KingSquare returns the square of c's king.
func (p *Position) KingSquare(c Color) Square {
	return p.Pieces(c, King).LSB()
}

// PieceAt returns the piece on sq, or NoPiece.
func (p *Position) PieceAt(sq Square) Piece {
	b := SquareBB(sq)
	var c Color
	switch {
	case p.Colours[White]&b != 0:
		c = White
	case p.Colours[Black]&b != 0:
		c = Black
	default:
		return NoPiece
	}
	for pt := Pawn; pt <= King; pt++ {
		if p.Types[pt]&b != 0 {
			return NewPiece(pt, c)
		}
	}
	return NoPiece
}

// flip toggles a piece without touching the hash.
func (p *Position) flip(c Color, pt PieceType, sq Square) {
	b := SquareBB(sq)
	p.Colours[c] ^= b
	p.Types[pt] ^= b
}

// toggle toggles a piece and its hash key.
func (p *Position) toggle(c Color, pt PieceType, sq Square) {
	p.flip(c, pt, sq)
	p.Key.UpdatePieceSquare(sq, NewPiece(pt, c))
}

// String renders the board, FEN, key and game state.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("\n +---+---+---+---+---+---+---+---+\n")
	for r := 7; r >= 0; r-- {
		for f := 0; f < 8; f++ {
			pc := p.PieceAt(NewSquare(f, r))
			if pc == NoPiece {
				sb.WriteString(" |  ")
				continue
			}
			fmt.Fprintf(&sb, " | %s", pc)
		}
		fmt.Fprintf(&sb, " | %d\n +---+---+---+---+---+---+---+---+\n", r+1)
	}
	sb.WriteString("   a   b   c   d   e   f   g   h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\n", p.ToFEN())
	fmt.Fprintf(&sb, "Key: %016X\n", p.Hash())
	fmt.Fprintf(&sb, "Checkers: %s\n", p.checkersString())
	fmt.Fprintf(&sb, "State: %s\n", p.State)
	return sb.String()
}

func (p *Position) checkersString() string {
	us := p.SideToMove
	checkers := p.attackersOf(p.KingSquare(us), us.Other(), p.Occupied())
	var names []string
	for checkers != 0 {
		names = append(names, checkers.PopLSB().String())
	}
	return strings.Join(names, " ")
}
