package board

import "fmt"

// DebugMoveValidation makes MakeMove panic when handed a move that cannot
// come from the generator: no piece of the side to move on the origin, or
// a king as the capture target.
var DebugMoveValidation = false

// castleKeep[sq] is the set of rights that survive any move touching sq.
var castleKeep = func() (keep [64]CastlingRights) {
	for sq := range keep {
		keep[sq] = AllCastling
	}
	keep[E1] &^= WhiteKingside | WhiteQueenside
	keep[H1] &^= WhiteKingside
	keep[A1] &^= WhiteQueenside
	keep[E8] &^= BlackKingside | BlackQueenside
	keep[H8] &^= BlackKingside
	keep[A8] &^= BlackQueenside
	return keep
}()

// castleRook returns the rook's origin and destination for a castling
// king landing on kingTo.
func castleRook(kingTo Square) (from, to Square) {
	switch kingTo {
	case G1:
		return H1, F1
	case C1:
		return A1, D1
	case G8:
		return H8, F8
	default:
		return A8, D8
	}
}

// epVictim is the square of the pawn removed by an en-passant capture
// landing on to: one rank behind the destination.
func epVictim(to Square) Square {
	return to ^ 8
}

// MakeMove applies a legal move and pushes an undo record.
func (p *Position) MakeMove(m Move) {
	us, them := p.SideToMove, p.SideToMove.Other()
	from, to := m.From(), m.To()
	moving := p.PieceAt(from)

	if DebugMoveValidation {
		if moving == NoPiece || moving.Color() != us {
			panic(fmt.Sprintf("board: MakeMove %s: no %s piece on %s\n%s", m, us, from, p.ToFEN()))
		}
		if p.Types[King].Has(to) {
			panic(fmt.Sprintf("board: MakeMove %s captures a king\n%s", m, p.ToFEN()))
		}
	}
	if len(p.history) >= MaxHistory {
		panic("board: undo stack overflow")
	}

	rec := undoRecord{
		key:        p.Key,
		castling:   p.Castling,
		plyClock:   p.PlyClock,
		moveNumber: p.MoveNumber,
		captured:   NoPieceType,
		epFile:     p.EnPassantFile,
		state:      p.State,
		side:       us,
	}

	pt := moving.Type()
	if m.IsEnPassant() {
		p.toggle(them, Pawn, epVictim(to))
		rec.captured = Pawn
	} else if victim := p.PieceAt(to); victim != NoPiece {
		p.toggle(them, victim.Type(), to)
		rec.captured = victim.Type()
	}

	p.toggle(us, pt, from)
	if m.IsPromotion() {
		p.toggle(us, m.Promotion(), to)
	} else {
		p.toggle(us, pt, to)
	}
	if m.IsCastle() {
		rf, rt := castleRook(to)
		p.toggle(us, Rook, rf)
		p.toggle(us, Rook, rt)
	}

	p.Castling &= castleKeep[from] & castleKeep[to]
	p.EnPassantFile = -1
	if m.IsDoublePush() {
		p.EnPassantFile = int8(from.File())
	}
	if pt == Pawn || rec.captured != NoPieceType {
		p.PlyClock = 0
	} else {
		p.PlyClock++
	}
	if us == Black {
		p.MoveNumber++
	}
	p.SideToMove = them
	p.State = InProgress

	p.Key.Castling = CastlingKey(p.Castling)
	p.Key.EnPassant = EnPassantKey(p)
	p.Key.Turn = TurnKey(them)

	p.history = append(p.history, rec)
}

// UndoMove reverts m, which must be the last move made.
func (p *Position) UndoMove(m Move) {
	n := len(p.history)
	if n == 0 {
		panic("board: UndoMove with empty undo stack")
	}
	rec := p.history[n-1]
	p.history = p.history[:n-1]

	us, them := rec.side, rec.side.Other()
	from, to := m.From(), m.To()

	if m.IsCastle() {
		rf, rt := castleRook(to)
		p.flip(us, Rook, rt)
		p.flip(us, Rook, rf)
	}
	if m.IsPromotion() {
		p.flip(us, m.Promotion(), to)
		p.flip(us, Pawn, from)
	} else {
		pt := p.PieceAt(to).Type()
		p.flip(us, pt, to)
		p.flip(us, pt, from)
	}
	if rec.captured != NoPieceType {
		sq := to
		if m.IsEnPassant() {
			sq = epVictim(to)
		}
		p.flip(them, rec.captured, sq)
	}

	p.Key = rec.key
	p.Castling = rec.castling
	p.PlyClock = rec.plyClock
	p.MoveNumber = rec.moveNumber
	p.EnPassantFile = rec.epFile
	p.State = rec.state
	p.SideToMove = us
}
