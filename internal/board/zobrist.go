package board

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// The key table is the Polyglot Random64 array, so Position keys can be
// looked up directly in Polyglot opening books. Layout:
//
//	0..767    pieces, index 64*kind + square, kind = 2*type + (1 if white)
//	768..771  castling K, Q, k, q
//	772..779  en-passant file a..h
//	780       white to move
//
//go:embed polyglot_keys.txt
var polyglotKeyFile []byte

const (
	polyglotKeyCount  = 781
	polyglotKeyDigest = 0x212099DCB611611F

	castleKeyOffset = 768
	epKeyOffset     = 772
	turnKeyOffset   = 780
)

var (
	pieceKeys  [12][64]uint64 // [Piece][Square]
	castleKeys [4]uint64
	epKeys     [8]uint64
	turnKey    uint64
)

func init() {
	keys, err := parseKeyTable(polyglotKeyFile)
	if err != nil {
		panic("board: " + err.Error())
	}
	for pt := Pawn; pt <= King; pt++ {
		for _, c := range [2]Color{White, Black} {
			kind := 2 * int(pt)
			if c == White {
				kind++
			}
			for sq := A1; sq <= H8; sq++ {
				pieceKeys[NewPiece(pt, c)][sq] = keys[64*kind+int(sq)]
			}
		}
	}
	copy(castleKeys[:], keys[castleKeyOffset:])
	copy(epKeys[:], keys[epKeyOffset:])
	turnKey = keys[turnKeyOffset]
}

// parseKeyTable reads one hex constant per line and checks the table is
// complete and unaltered.
func parseKeyTable(data []byte) ([]uint64, error) {
	if sum := xxhash.Sum64(data); sum != polyglotKeyDigest {
		return nil, fmt.Errorf("zobrist key table digest %016x, want %016x", sum, uint64(polyglotKeyDigest))
	}
	keys := make([]uint64, 0, polyglotKeyCount)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		k, err := strconv.ParseUint(string(line), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("zobrist key %d: %w", len(keys), err)
		}
		keys = append(keys, k)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading zobrist keys: %w", err)
	}
	if len(keys) != polyglotKeyCount {
		return nil, fmt.Errorf("zobrist key table has %d entries, want %d", len(keys), polyglotKeyCount)
	}
	return keys, nil
}

// ZobristKey keeps the four hash components apart so each can be replaced
// without touching the others. The position hash is their XOR.
type ZobristKey struct {
	Pieces    uint64
	EnPassant uint64
	Castling  uint64
	Turn      uint64
}

// Hash combines the components.
func (k ZobristKey) Hash() uint64 {
	return k.Pieces ^ k.EnPassant ^ k.Castling ^ k.Turn
}

// UpdatePieceSquare toggles pc on sq in the piece component.
func (k *ZobristKey) UpdatePieceSquare(sq Square, pc Piece) {
	k.Pieces ^= pieceKeys[pc][sq]
}

// CastlingKey is the castling component for a set of rights.
func CastlingKey(cr CastlingRights) uint64 {
	var h uint64
	for i := 0; i < 4; i++ {
		if cr&(1<<i) != 0 {
			h ^= castleKeys[i]
		}
	}
	return h
}

// TurnKey is the side-to-move component.
func TurnKey(side Color) uint64 {
	if side == White {
		return turnKey
	}
	return 0
}

// EnPassantKey is the en-passant component. The file only counts when a
// pawn of the side to move stands next to the pawn that just advanced two
// squares, whether or not that capture would be legal.
func EnPassantKey(p *Position) uint64 {
	if p.EnPassantFile < 0 {
		return 0
	}
	f := int(p.EnPassantFile)
	rank := 4
	if p.SideToMove == Black {
		rank = 3
	}
	pushed := SquareBB(NewSquare(f, rank))
	capturers := (pushed.East() | pushed.West()) & p.Pieces(p.SideToMove, Pawn)
	if capturers == 0 {
		return 0
	}
	return epKeys[f]
}

// ComputeKey hashes p from scratch.
func ComputeKey(p *Position) ZobristKey {
	var k ZobristKey
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for b := p.Pieces(c, pt); b != 0; {
				k.UpdatePieceSquare(b.PopLSB(), NewPiece(pt, c))
			}
		}
	}
	k.Castling = CastlingKey(p.Castling)
	k.EnPassant = EnPassantKey(p)
	k.Turn = TurnKey(p.SideToMove)
	return k
}
