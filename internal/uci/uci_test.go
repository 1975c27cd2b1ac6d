package uci

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/bitsearch/internal/board"
	"github.com/hailam/bitsearch/internal/book"
	"github.com/hailam/bitsearch/internal/engine"
	"github.com/hailam/bitsearch/internal/storage"
)

// syncBuffer lets the test read output while a search goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestUCI(t *testing.T, opts Options, store *storage.Storage) (*UCI, *syncBuffer) {
	t.Helper()
	if opts.HashMB == 0 {
		opts.HashMB = 1
	}
	eng := engine.NewEngineWithTable(engine.NewTranspositionTableEntries(1<<16), engine.Material{}, zerolog.Nop())
	out := &syncBuffer{}
	u := New(eng, opts, store, zerolog.Nop(), out)
	t.Cleanup(u.handleStop)
	return u, out
}

func waitFor(t *testing.T, out *syncBuffer, substr string) string {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if s := out.String(); strings.Contains(s, substr) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, output:\n%s", substr, out.String())
	return ""
}

func bestMove(t *testing.T, out string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(l, "bestmove "); ok {
			return rest
		}
	}
	t.Fatalf("no bestmove in:\n%s", out)
	return ""
}

func TestHandshake(t *testing.T) {
	u, out := newTestUCI(t, Options{HashMB: 64}, nil)
	u.Execute("uci")
	u.Execute("isready")

	s := out.String()
	assert.Contains(t, s, "id name bitsearch")
	assert.Contains(t, s, "option name Hash type spin default 64")
	assert.Contains(t, s, "option name Promotions type combo default all")
	assert.Contains(t, s, "uciok\n")
	assert.True(t, strings.HasSuffix(s, "readyok\n"))
}

func TestPositionAndDisplay(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos moves e2e4 e7e5 g1f3")
	u.Execute("d")
	assert.Contains(t, out.String(), "Fen: rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2")

	out.Reset()
	u.Execute("position fen 8/8/8/8/8/8/8/K6k w - - 0 1 moves a1b2")
	u.Execute("d")
	assert.Contains(t, out.String(), "Fen: 8/8/8/8/8/8/1K6/7k b - - 1 1")
}

func TestMalformedInputLeavesPosition(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos moves d2d4")
	before := u.position.ToFEN()

	for _, line := range []string{
		"position startpos moves e7e5 e2e5",
		"position fen 8/8/8/8 w - - 0 1",
		"position fen 8/8/8/8/8/8/8/K6k w - -",
		"position fen 8/8/8/8/8/8/8/K6k w - - 0",
		"position somewhere",
		"position",
		"frobnicate",
		"go depth",
		"go depth x",
		"go depth 0",
		"go nodes 5",
		"go perft 2 bulk",
		"setoption name Hash value 0",
		"setoption name Promotions value king",
		"setoption name Colour value blue",
		"setoption name Persist value true",
		"setoption",
	} {
		out.Reset()
		assert.False(t, u.Execute(line))
		assert.Contains(t, out.String(), "info string error:", line)
		assert.Equal(t, before, u.position.ToFEN(), line)
	}
}

func TestGoDepth(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	u.Execute("go depth 3")
	s := waitFor(t, out, "bestmove")

	assert.Equal(t, "a1a8", bestMove(t, s))
	assert.Contains(t, s, "score mate 1")
	assert.Contains(t, s, "pv a1a8")
}

func TestGoInfiniteAndStop(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos")
	u.Execute("go")
	time.Sleep(50 * time.Millisecond)

	u.Execute("go depth 1")
	assert.Contains(t, out.String(), "info string error: search already running")
	u.Execute("position startpos moves e2e4")
	assert.Equal(t, board.StartFEN, u.position.ToFEN(), "position is locked while searching")

	u.Execute("stop")
	s := out.String()
	m, err := board.ParseUCIMove(board.NewPosition(), bestMove(t, s))
	require.NoError(t, err)
	assert.NotEqual(t, board.NoMove, m)
	assert.Equal(t, 1, strings.Count(s, "bestmove"))
}

func TestStopImmediatelyAfterGo(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			out.Reset()
			u.Execute("go infinite")
			u.Execute("stop")
			if n := strings.Count(out.String(), "bestmove"); n != 1 {
				t.Errorf("round %d: %d bestmove lines", i, n)
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("stop did not end the search")
	}
}

func TestGoClock(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos moves e2e4")
	start := time.Now()
	u.Execute("go wtime 100 btime 3000 winc 0 binc 0")
	waitFor(t, out, "bestmove")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGoPerft(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("position startpos")
	u.Execute("go perft 2")
	s := out.String()
	assert.Contains(t, s, "e2e4: 20\n")
	assert.Contains(t, s, "Nodes searched: 400\n")

	out.Reset()
	u.Execute("position fen r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	u.Execute("go perft 1 captures")
	assert.Contains(t, out.String(), "Nodes searched: 8\n")
}

func TestSetOption(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("setoption name Promotions value queen")
	u.Execute("setoption name Hash value 2")
	u.Execute("setoption name Debug value true")
	t.Cleanup(func() { board.DebugMoveValidation = false })

	assert.NotContains(t, out.String(), "error")
	assert.Equal(t, board.PromoteQueenOnly, u.opts.Promotions)
	assert.Equal(t, 2, u.opts.HashMB)
	assert.True(t, board.DebugMoveValidation)
	assert.Equal(t, (2<<20)/40, u.engine.Table().Len())
}

func writeBook(t *testing.T) string {
	t.Helper()
	key := board.NewPosition().Hash()
	// d2d4 in Polyglot layout, twice the weight of e2e4.
	b := book.New([]book.Entry{
		{Key: key, Move: 3 | 3<<3 | 3<<6 | 1<<9, Weight: 20},
		{Key: key, Move: 4 | 3<<3 | 4<<6 | 1<<9, Weight: 10},
	})
	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))
	path := filepath.Join(t.TempDir(), "book.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestBookMove(t *testing.T) {
	path := writeBook(t)
	u, out := newTestUCI(t, Options{OwnBook: true, BookFile: path}, nil)
	u.Execute("position startpos")
	u.Execute("go depth 20")
	assert.Equal(t, "bestmove d2d4\n", out.String(), "book answers without searching")

	out.Reset()
	u.Execute("poly")
	assert.Equal(t, "bookinfo weight 20 move d2d4\nbookinfo weight 10 move e2e4\n", out.String())

	out.Reset()
	u.Execute("setoption name OwnBook value false")
	u.Execute("poly")
	assert.Equal(t, "info string no book moves\n", out.String())
}

func TestMissingBookDegrades(t *testing.T) {
	u, out := newTestUCI(t, Options{OwnBook: true, BookFile: filepath.Join(t.TempDir(), "nope.bin")}, nil)
	assert.Nil(t, u.book)
	u.Execute("position startpos")
	u.Execute("go depth 2")
	s := waitFor(t, out, "bestmove")
	assert.Contains(t, s, "info depth 1")
}

func TestPersistence(t *testing.T) {
	store, err := storage.OpenInMemory(zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	u, out := newTestUCI(t, Options{}, store)
	u.Execute("setoption name Persist value true")
	u.Execute("setoption name Promotions value queen_knight")
	u.Execute("position startpos")
	u.Execute("go depth 2")
	waitFor(t, out, "bestmove")
	u.handleStop()

	a, err := store.LoadAnalysis(board.NewPosition().Hash())
	require.NoError(t, err)
	assert.Equal(t, 2, a.Depth)
	assert.Equal(t, board.StartFEN, a.FEN)

	out.Reset()
	u.Execute("d")
	assert.Contains(t, out.String(), "Stored: depth 2")

	// A fresh session picks the saved override up.
	fresh, _ := newTestUCI(t, Options{}, store)
	require.NoError(t, fresh.RestoreOptions())
	assert.Equal(t, board.PromoteQueenAndKnight, fresh.opts.Promotions)
	assert.False(t, fresh.opts.Persist, "persist itself is not saved")
}

func TestStaticAndHelp(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	u.Execute("static")
	assert.Equal(t, "info string static eval 0\n", out.String())

	out.Reset()
	u.Execute("help")
	assert.Contains(t, out.String(), "go perft <n> [captures]")
}

func TestRun(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	in := strings.NewReader("isready\nposition startpos\ngo depth 2\nquit\nisready\n")
	require.NoError(t, u.Run(context.Background(), in))

	s := out.String()
	assert.Equal(t, 1, strings.Count(s, "readyok"), "nothing runs after quit")
	assert.Contains(t, s, "bestmove")
}

func TestRunIgnoresReadErrorAfterCancel(t *testing.T) {
	u, _ := newTestUCI(t, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() { done <- u.Run(ctx, pr) }()
	cancel()
	pw.CloseWithError(errors.New("stdin closed"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	u, out := newTestUCI(t, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- u.Run(ctx, pr) }()
	_, err := pw.Write([]byte("go infinite\n"))
	require.NoError(t, err)
	waitFor(t, out, "info depth 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, out.String(), "bestmove")
}
