package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is wrapped by every ParseFEN failure.
var ErrInvalidFEN = errors.New("invalid FEN")

func fenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFEN, fmt.Sprintf(format, args...))
}

// ParseFEN builds a position from FEN text. The clock fields may be
// omitted. The position is fully validated before it is returned, so a
// caller replacing its current position never sees a half-built one.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fenError("want 4 to 6 fields, got %d", len(fields))
	}

	p := &Position{EnPassantFile: -1, MoveNumber: 1}
	if err := p.parsePlacement(fields[0]); err != nil {
		return nil, err
	}

	switch fields[1] {
	case "w":
		p.SideToMove = White
	case "b":
		p.SideToMove = Black
	default:
		return nil, fenError("side to move %q", fields[1])
	}

	if err := p.parseCastling(fields[2]); err != nil {
		return nil, err
	}
	if err := p.parseEnPassant(fields[3]); err != nil {
		return nil, err
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, fenError("halfmove clock %q", fields[4])
		}
		p.PlyClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 0 {
			return nil, fenError("move number %q", fields[5])
		}
		p.MoveNumber = max(n, 1)
	}

	them := p.SideToMove.Other()
	if p.IsSquareAttacked(p.KingSquare(them), p.SideToMove) {
		return nil, fenError("%s king can be captured", them)
	}

	p.Key = ComputeKey(p)
	return p, nil
}

func (p *Position) parsePlacement(s string) error {
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return fenError("want 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		r, f := 7-i, 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				f += int(ch - '0')
				continue
			}
			pc := PieceFromChar(ch)
			if pc == NoPiece {
				return fenError("piece letter %q", ch)
			}
			if f > 7 {
				return fenError("rank %d overflows", r+1)
			}
			p.flip(pc.Color(), pc.Type(), NewSquare(f, r))
			f++
		}
		if f != 8 {
			return fenError("rank %d has %d squares", r+1, f)
		}
	}

	for c := White; c <= Black; c++ {
		if n := p.Pieces(c, King).Count(); n != 1 {
			return fenError("%s has %d kings", c, n)
		}
	}
	if p.Types[Pawn]&(Rank1|Rank8) != 0 {
		return fenError("pawn on first or last rank")
	}
	return nil
}

// castleHome lists the king and rook squares each right depends on.
var castleHome = [4]struct {
	right      CastlingRights
	king, rook Square
	c          Color
}{
	{WhiteKingside, E1, H1, White},
	{WhiteQueenside, E1, A1, White},
	{BlackKingside, E8, H8, Black},
	{BlackQueenside, E8, A8, Black},
}

func (p *Position) parseCastling(s string) error {
	if s == "-" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte("KQkq", s[i])
		if idx < 0 {
			return fenError("castling letter %q", s[i])
		}
		p.Castling |= 1 << idx
	}
	for _, h := range castleHome {
		if p.Castling&h.right == 0 {
			continue
		}
		if !p.Pieces(h.c, King).Has(h.king) || !p.Pieces(h.c, Rook).Has(h.rook) {
			return fenError("castling right %s without king and rook at home", h.right)
		}
	}
	return nil
}

func (p *Position) parseEnPassant(s string) error {
	if s == "-" {
		return nil
	}
	sq, err := ParseSquare(s)
	if err != nil {
		return fenError("en passant square %q", s)
	}
	wantRank, pushed := 5, sq-8
	if p.SideToMove == Black {
		wantRank, pushed = 2, sq+8
	}
	if sq.Rank() != wantRank {
		return fenError("en passant square %s on wrong rank", sq)
	}
	if !p.Pieces(p.SideToMove.Other(), Pawn).Has(pushed) || p.Occupied().Has(sq) {
		return fenError("en passant square %s without a pushed pawn", sq)
	}
	p.EnPassantFile = int8(sq.File())
	return nil
}

// ToFEN writes the position as six-field FEN.
func (p *Position) ToFEN() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		gap := 0
		for f := 0; f < 8; f++ {
			pc := p.PieceAt(NewSquare(f, r))
			if pc == NoPiece {
				gap++
				continue
			}
			if gap > 0 {
				sb.WriteByte(byte('0' + gap))
				gap = 0
			}
			sb.WriteString(pc.String())
		}
		if gap > 0 {
			sb.WriteByte(byte('0' + gap))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	side := "w"
	if p.SideToMove == Black {
		side = "b"
	}
	ep := "-"
	if p.EnPassantFile >= 0 {
		rank := 5
		if p.SideToMove == Black {
			rank = 2
		}
		ep = NewSquare(int(p.EnPassantFile), rank).String()
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", side, p.Castling, ep, p.PlyClock, p.MoveNumber)
	return sb.String()
}
