package board

import (
	"sort"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"
)

func mustFEN(t *testing.T, fen string) *Position {
	t.Helper()
	p, err := ParseFEN(fen)
	require.NoError(t, err, fen)
	return p
}

func generate(p *Position) (*MoveGenerator, *MoveList) {
	g := &MoveGenerator{}
	ml := &MoveList{}
	g.GenerateMoves(p, ml, false)
	return g, ml
}

func moveStrings(ml *MoveList) []string {
	out := make([]string, 0, ml.Len())
	for _, m := range ml.Slice() {
		out = append(out, m.String())
	}
	sort.Strings(out)
	return out
}

func TestSingleCheck(t *testing.T) {
	p := mustFEN(t, "4k3/8/8/8/8/8/8/r3K3 w - - 0 1")
	g, ml := generate(p)

	assert.True(t, g.IsCheck())
	assert.False(t, g.IsDoubleCheck())
	assert.Equal(t, SquareBB(A1)|SquareBB(B1)|SquareBB(C1)|SquareBB(D1), g.CheckRayMask())
	// The king may not step back along the checking rank.
	assert.True(t, g.OpponentAttacks().Has(F1))
	assert.Equal(t, []string{"e1d2", "e1e2", "e1f2"}, moveStrings(ml))
}

func TestNotInCheckHasFullCheckMask(t *testing.T) {
	g, _ := generate(NewPosition())
	assert.False(t, g.IsCheck())
	assert.Equal(t, Universe, g.CheckRayMask())
}

func TestDoubleCheckOnlyKingMoves(t *testing.T) {
	// Rook a1 and knight f3 both check; the white rook could block the
	// rank but may not move.
	p := mustFEN(t, "4k3/8/8/8/3R4/5n2/8/r3K3 w - - 0 1")
	g, ml := generate(p)

	require.True(t, g.IsCheck())
	require.True(t, g.IsDoubleCheck())
	require.NotZero(t, ml.Len())
	for _, m := range ml.Slice() {
		assert.Equal(t, E1, m.From(), "non-king move %s in double check", m)
	}
}

func TestBlockOrCaptureChecker(t *testing.T) {
	p := mustFEN(t, "4k3/8/8/8/8/8/1R6/r3K3 w - - 0 1")
	_, ml := generate(p)
	got := moveStrings(ml)
	assert.Contains(t, got, "b2b1")
	assert.NotContains(t, got, "b2b3")
}

func TestPinRestrictsToRay(t *testing.T) {
	pinned := mustFEN(t, "4k3/4r3/8/8/8/8/4R3/4K3 w - - 0 1")
	g, ml := generate(pinned)

	ray := SquareBB(E2) | SquareBB(E3) | SquareBB(E4) | SquareBB(E5) | SquareBB(E6) | SquareBB(E7)
	assert.Equal(t, ray, g.PinMask(true))
	assert.Zero(t, g.PinMask(false))

	var rookTargets Bitboard
	for _, m := range ml.Slice() {
		if m.From() == E2 {
			rookTargets |= SquareBB(m.To())
		}
	}
	assert.Equal(t, ray&^SquareBB(E2), rookTargets)

	free := mustFEN(t, "7k/8/8/8/8/8/4R3/4K3 w - - 0 1")
	g, ml = generate(free)
	assert.Zero(t, g.PinMask(true))
	var freeTargets Bitboard
	for _, m := range ml.Slice() {
		if m.From() == E2 {
			freeTargets |= SquareBB(m.To())
		}
	}
	assert.True(t, freeTargets.Has(A2), "unpinned rook should move along the rank")
}

func TestPinnedKnightCannotMove(t *testing.T) {
	p := mustFEN(t, "4k3/8/8/b7/8/8/3N4/4K3 w - - 0 1")
	g, ml := generate(p)
	assert.True(t, g.PinMask(false).Has(D2))
	for _, m := range ml.Slice() {
		assert.NotEqual(t, D2, m.From())
	}
}

func TestEnPassantDiscoveredCheckRejected(t *testing.T) {
	p := mustFEN(t, "8/8/8/K2pP2r/8/8/8/7k w - d6 0 1")
	_, ml := generate(p)
	got := moveStrings(ml)
	assert.NotContains(t, got, "e5d6")
	assert.Contains(t, got, "e5e6")

	// Without the rook the capture is fine.
	p = mustFEN(t, "8/8/8/K2pP3/8/8/8/7k w - d6 0 1")
	_, ml = generate(p)
	assert.Contains(t, moveStrings(ml), "e5d6")
}

func TestEnPassantCapturesCheckingPawn(t *testing.T) {
	// d7-d5 gave check; taking en passant removes the checker.
	p := mustFEN(t, "8/8/8/3pP3/4K3/8/8/7k w - d6 0 1")
	g, ml := generate(p)
	require.True(t, g.IsCheck())
	assert.Contains(t, moveStrings(ml), "e5d6")
}

func TestCastlingGates(t *testing.T) {
	tests := []struct {
		name      string
		fen       string
		want      []string
		forbidden []string
	}{
		{"both sides", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", []string{"e1g1", "e1c1"}, nil},
		{"b-file attack allowed", "1r2k2r/8/8/8/8/8/8/R3K2R w KQk - 0 1", []string{"e1g1", "e1c1"}, nil},
		{"d-file attacked", "3rk2r/8/8/8/8/8/8/R3K2R w KQk - 0 1", []string{"e1g1"}, []string{"e1c1"}},
		{"f-file attacked", "r3kr2/8/8/8/8/8/8/R3K2R w KQq - 0 1", []string{"e1c1"}, []string{"e1g1"}},
		{"b-file blocked", "r3k2r/8/8/8/8/8/8/RN2K2R w KQkq - 0 1", []string{"e1g1"}, []string{"e1c1"}},
		{"in check", "r3k2r/8/8/8/8/8/4r3/R3K2R w KQq - 0 1", nil, []string{"e1g1", "e1c1"}},
		{"black", "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", []string{"e8g8", "e8c8"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ml := generate(mustFEN(t, tc.fen))
			got := moveStrings(ml)
			for _, m := range tc.want {
				assert.Contains(t, got, m)
			}
			for _, m := range tc.forbidden {
				assert.NotContains(t, got, m)
			}
		})
	}
}

func TestPromotionModes(t *testing.T) {
	p := mustFEN(t, "8/P6k/8/8/8/8/8/K7 w - - 0 1")
	for mode, want := range map[PromotionMode]int{
		PromoteAll:            4,
		PromoteQueenOnly:      1,
		PromoteQueenAndKnight: 2,
	} {
		g := MoveGenerator{Promotions: mode}
		var ml MoveList
		g.GenerateMoves(p, &ml, false)
		n := 0
		for _, m := range ml.Slice() {
			if m.IsPromotion() {
				n++
			}
		}
		assert.Equal(t, want, n, "mode %s", mode)
	}

	m, err := ParsePromotionMode("queen_knight")
	require.NoError(t, err)
	assert.Equal(t, PromoteQueenAndKnight, m)
	_, err = ParsePromotionMode("rook")
	assert.Error(t, err)
}

func TestGameStateSetWhenNoMoves(t *testing.T) {
	mate := mustFEN(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	_, ml := generate(mate)
	assert.Zero(t, ml.Len())
	assert.Equal(t, Checkmate, mate.State)

	stale := mustFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	_, ml = generate(stale)
	assert.Zero(t, ml.Len())
	assert.Equal(t, Stalemate, stale.State)

	// Captures-only generation never decides the game.
	quiet := NewPosition()
	var g MoveGenerator
	var caps MoveList
	g.GenerateMoves(quiet, &caps, true)
	assert.Zero(t, caps.Len())
	assert.Equal(t, InProgress, quiet.State)
}

func TestParseUCIMove(t *testing.T) {
	p := mustFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	m, err := ParseUCIMove(p, "e1g1")
	require.NoError(t, err)
	assert.True(t, m.IsCastle())

	m, err = ParseUCIMove(NewPosition(), "e2e4")
	require.NoError(t, err)
	assert.True(t, m.IsDoublePush())

	_, err = ParseUCIMove(NewPosition(), "e2e5")
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = ParseUCIMove(NewPosition(), "zz")
	assert.ErrorIs(t, err, ErrIllegalMove)
}

// TestLegalMovesMatchReference plays random games and compares every
// generated move set with an independent rules implementation.
func TestLegalMovesMatchReference(t *testing.T) {
	starts := []string{StartFEN, perftCases[1].fen, perftCases[2].fen, perftCases[3].fen, perftCases[4].fen}
	rng := frand.NewCustom(make([]byte, 32), 1024, 12)
	games := 20
	if testing.Short() {
		games = 4
	}

	for _, start := range starts {
		for game := 0; game < games; game++ {
			p := mustFEN(t, start)
			for ply := 0; ply < 80; ply++ {
				_, ml := generate(p)
				fen := p.ToFEN()

				opt, err := chess.FEN(fen)
				require.NoError(t, err)
				ref := chess.NewGame(opt).ValidMoves()
				want := make([]string, 0, len(ref))
				for _, m := range ref {
					want = append(want, m.String())
				}
				sort.Strings(want)
				require.Equal(t, want, moveStrings(ml), fen)

				if ml.Len() == 0 {
					break
				}
				p.MakeMove(ml.Get(rng.Intn(ml.Len())))
			}
		}
	}
}
