package board

import (
	"errors"
	"fmt"
)

// PromotionMode selects which promotion pieces the generator emits.
type PromotionMode uint8

const (
	PromoteAll PromotionMode = iota
	PromoteQueenOnly
	PromoteQueenAndKnight
)

var promotionModeNames = [...]string{"all", "queen", "queen_knight"}

func (m PromotionMode) String() string {
	if int(m) < len(promotionModeNames) {
		return promotionModeNames[m]
	}
	return "unknown"
}

// ParsePromotionMode accepts "all", "queen" or "queen_knight".
func ParsePromotionMode(s string) (PromotionMode, error) {
	for i, name := range promotionModeNames {
		if s == name {
			return PromotionMode(i), nil
		}
	}
	return PromoteAll, fmt.Errorf("unknown promotion mode %q", s)
}

var promotionPieces = [...][]PieceType{
	PromoteAll:            {Queen, Rook, Bishop, Knight},
	PromoteQueenOnly:      {Queen},
	PromoteQueenAndKnight: {Queen, Knight},
}

// MoveGenerator produces strictly legal moves. It keeps the check and pin
// analysis of the last generated position, readable through its accessors.
// The zero value generates all four promotions.
type MoveGenerator struct {
	Promotions PromotionMode

	pos          *Position
	moves        *MoveList
	capturesOnly bool

	us, them     Color
	kingSq       Square
	friendly     Bitboard
	enemy        Bitboard
	occupied     Bitboard
	moveTypeMask Bitboard // destinations allowed by the generation mode

	inCheck         bool
	inDoubleCheck   bool
	checkRayMask    Bitboard
	pinHV           Bitboard
	pinD            Bitboard
	opponentAttacks Bitboard
}

// GenerateMoves fills ml with the legal moves of p and returns their
// count. In captures-only mode quiet moves, castling and non-capturing
// promotions are left out. Full generation that finds no move marks p as
// checkmate or stalemate.
func (g *MoveGenerator) GenerateMoves(p *Position, ml *MoveList, capturesOnly bool) int {
	ml.Clear()
	g.initializeVariables(p, ml, capturesOnly)
	g.computeCheckAndPinMasks()

	g.genKingMoves()
	if !g.inDoubleCheck {
		g.genPawnMoves()
		g.genKnightMoves()
		g.genSlidingMoves()
	}

	if !capturesOnly && ml.Len() == 0 {
		if g.inCheck {
			p.State = Checkmate
		} else {
			p.State = Stalemate
		}
	}
	return ml.Len()
}

func (g *MoveGenerator) IsCheck() bool       { return g.inCheck }
func (g *MoveGenerator) IsDoubleCheck() bool { return g.inDoubleCheck }

// CheckRayMask holds the squares a non-king move must land on to answer
// check: the checker and, for a slider, the squares between. Universe
// when not in check.
func (g *MoveGenerator) CheckRayMask() Bitboard { return g.checkRayMask }

// PinMask returns the union of orthogonal or diagonal pin rays, each ray
// running from the king (exclusive) to the pinner (inclusive).
func (g *MoveGenerator) PinMask(orthogonal bool) Bitboard {
	if orthogonal {
		return g.pinHV
	}
	return g.pinD
}

// OpponentAttacks is every square the opponent attacks, computed with our
// king lifted off the board.
func (g *MoveGenerator) OpponentAttacks() Bitboard { return g.opponentAttacks }

func (g *MoveGenerator) initializeVariables(p *Position, ml *MoveList, capturesOnly bool) {
	g.pos = p
	g.moves = ml
	g.capturesOnly = capturesOnly
	g.us = p.SideToMove
	g.them = g.us.Other()
	g.kingSq = p.KingSquare(g.us)
	g.friendly = p.Colours[g.us]
	g.enemy = p.Colours[g.them]
	g.occupied = g.friendly | g.enemy

	g.moveTypeMask = ^g.friendly
	if capturesOnly {
		g.moveTypeMask = g.enemy
	}

	g.inCheck = false
	g.inDoubleCheck = false
	g.checkRayMask = Empty
	g.pinHV = Empty
	g.pinD = Empty
	g.opponentAttacks = Empty
}

func (g *MoveGenerator) addChecker(mask Bitboard) {
	g.inDoubleCheck = g.inCheck
	g.inCheck = true
	g.checkRayMask |= mask
}

func (g *MoveGenerator) computeCheckAndPinMasks() {
	p := g.pos
	enemyOrth := g.enemy & (p.Types[Rook] | p.Types[Queen])
	enemyDiag := g.enemy & (p.Types[Bishop] | p.Types[Queen])

	for d := North; d <= NorthWest; d++ {
		ray := rays[d][g.kingSq]
		sliders := enemyDiag
		if d.Orthogonal() {
			sliders = enemyOrth
		}
		if ray&sliders == 0 {
			continue
		}

		blockers := ray & g.occupied
		first := nearest(d, blockers)
		if g.enemy.Has(first) {
			// Any other enemy piece shields the king along this ray.
			if sliders.Has(first) {
				g.addChecker(ray &^ rays[d][first])
			}
			continue
		}

		blockers &^= SquareBB(first)
		if blockers == 0 {
			continue
		}
		second := nearest(d, blockers)
		if sliders.Has(second) {
			pin := ray &^ rays[d][second]
			if d.Orthogonal() {
				g.pinHV |= pin
			} else {
				g.pinD |= pin
			}
		}
	}

	for b := knightAttacks[g.kingSq] & g.enemy & p.Types[Knight]; b != 0; {
		g.addChecker(SquareBB(b.PopLSB()))
	}
	for b := pawnAttacks[g.us][g.kingSq] & g.enemy & p.Types[Pawn]; b != 0; {
		g.addChecker(SquareBB(b.PopLSB()))
	}
	if !g.inCheck {
		g.checkRayMask = Universe
	}

	g.opponentAttacks = g.computeOpponentAttacks(enemyOrth, enemyDiag)
}

func (g *MoveGenerator) computeOpponentAttacks(orth, diag Bitboard) Bitboard {
	p := g.pos
	occ := g.occupied &^ SquareBB(g.kingSq)

	pawns := g.enemy & p.Types[Pawn]
	var att Bitboard
	if g.them == White {
		att = pawns.NorthEast() | pawns.NorthWest()
	} else {
		att = pawns.SouthEast() | pawns.SouthWest()
	}
	for b := g.enemy & p.Types[Knight]; b != 0; {
		att |= knightAttacks[b.PopLSB()]
	}
	for b := orth; b != 0; {
		att |= RookAttacks(b.PopLSB(), occ)
	}
	for b := diag; b != 0; {
		att |= BishopAttacks(b.PopLSB(), occ)
	}
	return att | kingAttacks[p.KingSquare(g.them)]
}

// pinRestriction is the set a piece on sq must stay within because of a pin.
func (g *MoveGenerator) pinRestriction(sq Square) Bitboard {
	switch {
	case g.pinHV.Has(sq):
		return g.pinHV
	case g.pinD.Has(sq):
		return g.pinD
	}
	return Universe
}

func (g *MoveGenerator) addAll(from Square, targets Bitboard) {
	for targets != 0 {
		g.moves.Add(NewMove(from, targets.PopLSB(), FlagQuiet))
	}
}

func (g *MoveGenerator) genKingMoves() {
	g.addAll(g.kingSq, kingAttacks[g.kingSq]&g.moveTypeMask&^g.opponentAttacks)
	if g.inCheck || g.capturesOnly {
		return
	}

	rights := g.pos.Castling
	blocked := g.occupied
	attacked := g.opponentAttacks
	if g.us == White {
		if rights&WhiteKingside != 0 && (blocked|attacked)&(SquareBB(F1)|SquareBB(G1)) == 0 {
			g.moves.Add(NewMove(E1, G1, FlagCastle))
		}
		if rights&WhiteQueenside != 0 && blocked&(SquareBB(B1)|SquareBB(C1)|SquareBB(D1)) == 0 &&
			attacked&(SquareBB(C1)|SquareBB(D1)) == 0 {
			g.moves.Add(NewMove(E1, C1, FlagCastle))
		}
		return
	}
	if rights&BlackKingside != 0 && (blocked|attacked)&(SquareBB(F8)|SquareBB(G8)) == 0 {
		g.moves.Add(NewMove(E8, G8, FlagCastle))
	}
	if rights&BlackQueenside != 0 && blocked&(SquareBB(B8)|SquareBB(C8)|SquareBB(D8)) == 0 &&
		attacked&(SquareBB(C8)|SquareBB(D8)) == 0 {
		g.moves.Add(NewMove(E8, C8, FlagCastle))
	}
}

func (g *MoveGenerator) addPawnMove(from, to Square, flag MoveFlag) {
	if to.Rank() == 0 || to.Rank() == 7 {
		for _, pt := range promotionPieces[g.Promotions] {
			g.moves.Add(NewMove(from, to, PromotionFlag(pt)))
		}
		return
	}
	g.moves.Add(NewMove(from, to, flag))
}

func (g *MoveGenerator) genPawnMoves() {
	p := g.pos
	pawns := g.friendly & p.Types[Pawn]
	if g.inCheck {
		pawns &^= g.pinHV | g.pinD
	}
	empty := ^g.occupied
	startRank := Rank2
	if g.us == Black {
		startRank = Rank7
	}

	for b := pawns; b != 0; {
		from := b.PopLSB()
		allowed := g.checkRayMask & g.pinRestriction(from)

		if !g.capturesOnly && !g.pinD.Has(from) {
			if single := SquareBB(from).Forward(g.us) & empty; single != 0 {
				if single&allowed != 0 {
					g.addPawnMove(from, single.LSB(), FlagQuiet)
				}
				if startRank.Has(from) {
					if double := single.Forward(g.us) & empty & allowed; double != 0 {
						g.moves.Add(NewMove(from, double.LSB(), FlagDoublePush))
					}
				}
			}
		}

		if g.pinHV.Has(from) {
			continue
		}
		for caps := pawnAttacks[g.us][from] & g.enemy & allowed; caps != 0; {
			g.addPawnMove(from, caps.PopLSB(), FlagQuiet)
		}
		g.genEnPassant(from)
	}
}

func (g *MoveGenerator) genEnPassant(from Square) {
	p := g.pos
	if p.EnPassantFile < 0 {
		return
	}
	epRank := 5
	if g.us == Black {
		epRank = 2
	}
	epSq := NewSquare(int(p.EnPassantFile), epRank)
	if !pawnAttacks[g.us][from].Has(epSq) {
		return
	}
	victim := epVictim(epSq)
	if g.checkRayMask&(SquareBB(epSq)|SquareBB(victim)) == 0 {
		return
	}
	if !g.pinRestriction(from).Has(epSq) {
		return
	}
	if g.epExposesKing(from, victim, epSq) {
		return
	}
	g.moves.Add(NewMove(from, epSq, FlagEnPassant))
}

// epExposesKing replays the occupancy change of an en-passant capture,
// where two pawns leave the same rank at once, and looks for a slider that
// sees the king afterwards.
func (g *MoveGenerator) epExposesKing(from, victim, epSq Square) bool {
	p := g.pos
	occ := g.occupied ^ SquareBB(from) ^ SquareBB(victim) | SquareBB(epSq)
	orth := g.enemy & (p.Types[Rook] | p.Types[Queen])
	diag := g.enemy & (p.Types[Bishop] | p.Types[Queen])
	return RookAttacks(g.kingSq, occ)&orth != 0 || BishopAttacks(g.kingSq, occ)&diag != 0
}

func (g *MoveGenerator) genKnightMoves() {
	// A pinned knight can never stay on its pin ray.
	knights := g.friendly & g.pos.Types[Knight] &^ (g.pinHV | g.pinD)
	for knights != 0 {
		from := knights.PopLSB()
		g.addAll(from, knightAttacks[from]&g.moveTypeMask&g.checkRayMask)
	}
}

func (g *MoveGenerator) genSlidingMoves() {
	p := g.pos
	queens := p.Types[Queen]
	orth := g.friendly & (p.Types[Rook] | queens) &^ g.pinD
	diag := g.friendly & (p.Types[Bishop] | queens) &^ g.pinHV
	if g.inCheck {
		orth &^= g.pinHV
		diag &^= g.pinD
	}
	mask := g.moveTypeMask & g.checkRayMask

	for orth != 0 {
		from := orth.PopLSB()
		targets := RookAttacks(from, g.occupied) & mask
		if g.pinHV.Has(from) {
			targets &= g.pinHV
		}
		g.addAll(from, targets)
	}
	for diag != 0 {
		from := diag.PopLSB()
		targets := BishopAttacks(from, g.occupied) & mask
		if g.pinD.Has(from) {
			targets &= g.pinD
		}
		g.addAll(from, targets)
	}
}

// LegalMoves returns every legal move of p.
func (p *Position) LegalMoves() *MoveList {
	var g MoveGenerator
	ml := &MoveList{}
	g.GenerateMoves(p, ml, false)
	return ml
}

// ErrIllegalMove is wrapped when move text does not name a legal move.
var ErrIllegalMove = errors.New("illegal move")

// ParseUCIMove resolves UCI move text such as "e2e4" or "e7e8q" against
// the legal moves of p, which recovers castling, en-passant and
// double-push flags.
func ParseUCIMove(p *Position, s string) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("%w: %q", ErrIllegalMove, s)
	}
	var g MoveGenerator
	var ml MoveList
	g.GenerateMoves(p, &ml, false)
	for _, m := range ml.Slice() {
		if m.String() == s {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("%w: %q in %s", ErrIllegalMove, s, p.ToFEN())
}
