package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"
)

func TestShippedMagicsVerify(t *testing.T) {
	assert.Zero(t, RegeneratedMagics)
	for sq := A1; sq <= H8; sq++ {
		_, ok := fillMagic(sq, rookRelevance(sq), rookMagicNumbers[sq], rookMagics[sq].Shift, slowRookAttacks)
		assert.True(t, ok, "rook magic %s", sq)
		_, ok = fillMagic(sq, bishopRelevance(sq), bishopMagicNumbers[sq], bishopMagics[sq].Shift, slowBishopAttacks)
		assert.True(t, ok, "bishop magic %s", sq)
	}
}

func TestMagicLookupMatchesRayScan(t *testing.T) {
	rng := frand.NewCustom([]byte("slider-lookup-fixed-seed-32bytes"), 1024, 12)
	for i := 0; i < 20000; i++ {
		sq := Square(rng.Intn(64))
		occ := Bitboard(rng.Uint64n(^uint64(0)) & rng.Uint64n(^uint64(0)))
		require.Equal(t, slowRookAttacks(sq, occ), RookAttacks(sq, occ))
		require.Equal(t, slowBishopAttacks(sq, occ), BishopAttacks(sq, occ))
	}
}

func TestFindMagicRecoversFromBadConstant(t *testing.T) {
	mask := rookRelevance(A1)
	shift := uint8(64 - mask.Count())
	_, ok := fillMagic(A1, mask, 1, shift, slowRookAttacks)
	require.False(t, ok, "multiplier 1 cannot index a rook table")

	magic, table := findMagic(A1, mask, shift, slowRookAttacks)
	_, ok = fillMagic(A1, mask, magic, shift, slowRookAttacks)
	assert.True(t, ok)
	assert.Len(t, table, 1<<mask.Count())
}

func TestRaysAndBetween(t *testing.T) {
	assert.Equal(t, SquareBB(B2)|SquareBB(C3)|SquareBB(D4)|SquareBB(E5)|SquareBB(F6)|SquareBB(G7)|SquareBB(H8), Ray(NorthEast, A1))
	assert.Equal(t, SquareBB(C1)|SquareBB(D1), Between(B1, E1))
	assert.Equal(t, SquareBB(C1)|SquareBB(D1), Between(E1, B1))
	assert.Zero(t, Between(A1, B3))
	for d := North; d <= NorthWest; d++ {
		assert.Equal(t, d, d.Opposite().Opposite())
		assert.Equal(t, Ray(d, D4)&Ray(d.Opposite(), D4), Empty)
	}
	assert.Equal(t, 8, KingAttacks(D4).Count())
	assert.Equal(t, 2, KnightAttacks(A1).Count())
	assert.Equal(t, SquareBB(D5)|SquareBB(F5), PawnAttacks(E4, White))
}
