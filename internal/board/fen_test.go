package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFENRoundTrip(t *testing.T) {
	for _, tc := range perftCases {
		p := mustFEN(t, tc.fen)
		again := mustFEN(t, p.ToFEN())
		assert.Equal(t, p.ToFEN(), again.ToFEN())
		assert.Equal(t, p.Key, again.Key)
	}
	assert.Equal(t, StartFEN, NewPosition().ToFEN())
}

func TestParseFENRejects(t *testing.T) {
	bad := map[string]string{
		"too few fields":      "8/8/8/8/8/8/8/8 w",
		"seven ranks":         "8/8/8/8/8/8/8 w - - 0 1",
		"rank overflow":       "rnbqkbnrr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"bad letter":          "rnbqkbnr/ppppxppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"no black king":       "rnbq1bnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQ - 0 1",
		"pawn on last rank":   "Pnbqkbnr/pppppppp/8/8/8/8/1PPPPPPP/RNBQKBNR w KQk - 0 1",
		"side":                "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"castling letter":     "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkx - 0 1",
		"castling no rook":    "rnbqkbn1/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"ep wrong rank":       "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e4 0 1",
		"ep without pawn":     "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq e3 0 1",
		"clock":               "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1",
		"opponent in check":   "4k3/8/8/8/8/8/8/4RK2 w - - 0 1",
	}
	for name, fen := range bad {
		_, err := ParseFEN(fen)
		assert.ErrorIs(t, err, ErrInvalidFEN, name)
	}
}
