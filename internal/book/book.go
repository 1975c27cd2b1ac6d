// Package book reads Polyglot opening books.
package book

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/frand"

	"github.com/hailam/bitsearch/internal/board"
)

// ErrNoBook is returned when no book path is configured or the file holds
// no records.
var ErrNoBook = errors.New("no opening book")

const recordSize = 16

// Entry is one Polyglot record.
type Entry struct {
	Key    uint64
	Move   uint16 // packed Polyglot move
	Weight uint16
	Learn  uint32
}

// Book is an in-memory Polyglot book, records ordered by key.
type Book struct {
	entries []Entry
}

// New builds a book from records. They are sorted by key if needed, keeping
// the order within each run.
func New(entries []Entry) *Book {
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key }) {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	}
	return &Book{entries: entries}
}

// Load reads a Polyglot file. Names ending in .zst are zstd streams.
// A missing file yields an error wrapping fs.ErrNotExist.
func Load(path string) (*Book, error) {
	if path == "" {
		return nil, ErrNoBook
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening book: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening book %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	b, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("reading book %s: %w", path, err)
	}
	return b, nil
}

// Read decodes big-endian 16-byte records until EOF.
func Read(r io.Reader) (*Book, error) {
	var entries []Entry
	var rec [recordSize]byte
	for {
		_, err := io.ReadFull(r, rec[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(entries), err)
		}
		entries = append(entries, Entry{
			Key:    binary.BigEndian.Uint64(rec[0:8]),
			Move:   binary.BigEndian.Uint16(rec[8:10]),
			Weight: binary.BigEndian.Uint16(rec[10:12]),
			Learn:  binary.BigEndian.Uint32(rec[12:16]),
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoBook
	}
	return New(entries), nil
}

// Write encodes b in Polyglot layout.
func (b *Book) Write(w io.Writer) error {
	var rec [recordSize]byte
	for _, e := range b.entries {
		binary.BigEndian.PutUint64(rec[0:8], e.Key)
		binary.BigEndian.PutUint16(rec[8:10], e.Move)
		binary.BigEndian.PutUint16(rec[10:12], e.Weight)
		binary.BigEndian.PutUint32(rec[12:16], e.Learn)
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of records.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Entries returns the run of records stored under key, in file order.
func (b *Book) Entries(key uint64) []Entry {
	if b == nil {
		return nil
	}
	start := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].Key >= key })
	end := start
	for end < len(b.entries) && b.entries[end].Key == key {
		end++
	}
	return b.entries[start:end]
}

// Query picks the book move for key, NoMove when the position is not in
// the book. When the first two records of the run share a weight the move
// is drawn uniformly from the run, otherwise the first record wins.
// kingSquare is the mover's king, needed to read castling moves.
func (b *Book) Query(kingSquare board.Square, key uint64) board.Move {
	run := b.Entries(key)
	if len(run) == 0 {
		return board.NoMove
	}
	pick := run[0]
	if len(run) > 1 && run[0].Weight == run[1].Weight {
		pick = run[frand.Intn(len(run))]
	}
	return pick.Decode(kingSquare)
}

// Probe returns the book move for pos as one of its legal moves.
func (b *Book) Probe(pos *board.Position) (board.Move, bool) {
	if b.Len() == 0 {
		return board.NoMove, false
	}
	m := b.Query(pos.KingSquare(pos.SideToMove), pos.Hash())
	if m == board.NoMove {
		return board.NoMove, false
	}
	legal := Resolve(pos, m)
	return legal, legal != board.NoMove
}

// Decode unpacks a Polyglot move:
//
//	bits 0-2    destination file
//	bits 3-5    destination rank
//	bits 6-8    origin file
//	bits 9-11   origin rank
//	bits 12-14  promotion, 1 knight to 4 queen
//
// Castling is stored as the king on e1 or e8 taking its own rook and comes
// back as a two-square king move flagged FlagCastle. Other flags are left quiet; see
// Resolve.
func (e Entry) Decode(kingSquare board.Square) board.Move {
	to := board.NewSquare(int(e.Move&7), int(e.Move>>3&7))
	from := board.NewSquare(int(e.Move>>6&7), int(e.Move>>9&7))
	promo := int(e.Move >> 12 & 7)

	if from == kingSquare && (from == board.E1 || from == board.E8) && from.Rank() == to.Rank() {
		switch to.File() {
		case 7:
			return board.NewMove(from, board.NewSquare(6, to.Rank()), board.FlagCastle)
		case 0:
			return board.NewMove(from, board.NewSquare(2, to.Rank()), board.FlagCastle)
		}
	}
	if promo >= 1 && promo <= 4 {
		return board.NewMove(from, to, board.PromotionFlag(board.Knight+board.PieceType(promo-1)))
	}
	return board.NewMove(from, to, board.FlagQuiet)
}

// Resolve finds the legal move of pos with the same squares and promotion
// as m, NoMove if there is none.
func Resolve(pos *board.Position, m board.Move) board.Move {
	ml := pos.LegalMoves()
	for _, lm := range ml.Slice() {
		if lm.From() == m.From() && lm.To() == m.To() && lm.Promotion() == m.Promotion() {
			return lm
		}
	}
	return board.NoMove
}

// Encode packs a move in Polyglot layout, castling as king takes rook.
func Encode(m board.Move) uint16 {
	from, to := m.From(), m.To()
	if m.IsCastle() {
		if to.File() == 6 {
			to = board.NewSquare(7, to.Rank())
		} else {
			to = board.NewSquare(0, to.Rank())
		}
	}
	v := uint16(to.File()) | uint16(to.Rank())<<3 | uint16(from.File())<<6 | uint16(from.Rank())<<9
	if m.IsPromotion() {
		v |= uint16(m.Promotion()-board.Knight+1) << 12
	}
	return v
}
