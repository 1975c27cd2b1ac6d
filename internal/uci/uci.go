// Package uci speaks the Universal Chess Interface over a line stream.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/hailam/bitsearch/internal/board"
	"github.com/hailam/bitsearch/internal/book"
	"github.com/hailam/bitsearch/internal/engine"
	"github.com/hailam/bitsearch/internal/storage"
)

const (
	engineName   = "bitsearch"
	engineAuthor = "the bitsearch authors"
	maxHashMB    = 65536
)

// Options are the settings exposed through setoption.
type Options struct {
	HashMB     int
	OwnBook    bool
	BookFile   string
	Promotions board.PromotionMode
	Debug      bool
	Persist    bool
}

var errSearching = errors.New("search already running")

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Position
	book     *book.Book
	store    *storage.Storage // nil without persistence
	opts     Options
	log      zerolog.Logger
	ctx      context.Context

	outMu sync.Mutex
	out   io.Writer

	// Search state
	searching  bool
	searchDone chan struct{}
}

// New creates a protocol handler writing responses to out. store may be
// nil.
func New(eng *engine.Engine, opts Options, store *storage.Storage, logger zerolog.Logger, out io.Writer) *UCI {
	u := &UCI{
		engine:   eng,
		position: board.NewPosition(),
		store:    store,
		opts:     opts,
		log:      logger.With().Str("component", "uci").Logger(),
		ctx:      context.Background(),
		out:      out,
	}
	eng.OnInfo = u.sendInfo
	eng.SetPromotions(opts.Promotions)
	board.DebugMoveValidation = opts.Debug
	u.loadBook()
	return u
}

// RestoreOptions re-applies overrides saved by earlier sessions.
func (u *UCI) RestoreOptions() error {
	if u.store == nil {
		return nil
	}
	saved, err := u.store.Options()
	if err != nil {
		return fmt.Errorf("reading saved options: %w", err)
	}
	for name, value := range saved {
		if err := u.applyOption(name, value); err != nil {
			u.log.Warn().Err(err).Str("option", name).Msg("ignoring saved option")
			continue
		}
		u.log.Info().Str("option", name).Str("value", value).Msg("restored option")
	}
	return nil
}

// Run reads commands until quit, end of input or ctx is done. A running
// search is stopped and waited for before Run returns.
func (u *UCI) Run(ctx context.Context, in io.Reader) error {
	u.ctx = ctx
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	defer u.handleStop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return <-scanErr
			}
			if u.Execute(line) {
				return nil
			}
		}
	}
}

// Execute handles one command line and reports whether it was quit.
func (u *UCI) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := parts[0], parts[1:]
	u.log.Debug().Str("cmd", cmd).Strs("args", args).Msg("command")

	var err error
	switch cmd {
	case "uci":
		u.handleUCI()
	case "isready":
		u.println("readyok")
	case "ucinewgame":
		err = u.handleNewGame()
	case "setoption":
		err = u.handleSetOption(args)
	case "position":
		err = u.handlePosition(args)
	case "go":
		err = u.handleGo(args)
	case "stop":
		u.handleStop()
	case "quit":
		u.handleStop()
		return true
	// Debug commands
	case "d":
		u.handleDisplay()
	case "poly":
		u.handlePoly()
	case "static":
		u.printf("info string static eval %d\n", u.engine.Evaluator().Evaluate(u.position))
	case "help":
		u.handleHelp()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		u.printf("info string error: %v\n", err)
		u.log.Debug().Err(err).Str("line", line).Msg("command rejected")
	}
	return false
}

func (u *UCI) printf(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *UCI) println(s string) { u.printf("%s\n", s) }

// isSearching reports whether a search goroutine is live.
func (u *UCI) isSearching() bool {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	return u.searching
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.printf("id name %s\n", engineName)
	u.printf("id author %s\n", engineAuthor)
	u.println("")
	u.printf("option name Hash type spin default %d min 1 max %d\n", u.opts.HashMB, maxHashMB)
	u.printf("option name OwnBook type check default %t\n", u.opts.OwnBook)
	u.printf("option name BookFile type string default %s\n", lo.Ternary(u.opts.BookFile == "", "<empty>", u.opts.BookFile))
	u.printf("option name Promotions type combo default %s var all var queen var queen_knight\n", u.opts.Promotions)
	u.printf("option name Debug type check default %t\n", u.opts.Debug)
	u.printf("option name Persist type check default %t\n", u.opts.Persist)
	u.println("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() error {
	if u.isSearching() {
		return errSearching
	}
	u.engine.Clear()
	u.position = board.NewPosition()
	return nil
}

// handlePosition parses and sets up a position. The current position is
// only replaced once the whole command has been validated.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) error {
	if u.isSearching() {
		return errSearching
	}
	if len(args) == 0 {
		return errors.New("position: missing startpos or fen")
	}

	movesAt := lo.IndexOf(args, "moves")
	head, moves := args, []string(nil)
	if movesAt >= 0 {
		head, moves = args[:movesAt], args[movesAt+1:]
	}

	var pos *board.Position
	switch head[0] {
	case "startpos":
		if len(head) != 1 {
			return fmt.Errorf("position: unexpected %q after startpos", head[1])
		}
		pos = board.NewPosition()
	case "fen":
		if len(head[1:]) != 6 {
			return fmt.Errorf("position: fen needs 6 fields, got %d", len(head[1:]))
		}
		p, err := board.ParseFEN(strings.Join(head[1:], " "))
		if err != nil {
			return err
		}
		pos = p
	default:
		return fmt.Errorf("position: expected startpos or fen, got %q", head[0])
	}

	for _, s := range moves {
		m, err := board.ParseUCIMove(pos, s)
		if err != nil {
			return err
		}
		pos.MakeMove(m)
	}
	u.position = pos
	return nil
}

// goOptions holds parsed "go" command options.
type goOptions struct {
	limits engine.Limits
	clock  engine.Clock
	timed  bool

	perft         int
	perftCaptures bool
	perftSuite    bool
}

func parseGoOptions(args []string) (goOptions, error) {
	var opts goOptions
	if len(args) == 0 {
		opts.limits.Infinite = true
		return opts, nil
	}

	intArg := func(i int) (int, error) {
		if i+1 >= len(args) {
			return 0, fmt.Errorf("go: %s needs a value", args[i])
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("go: bad %s value %q", args[i], args[i+1])
		}
		return n, nil
	}
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	for i := 0; i < len(args); i++ {
		if args[i] == "infinite" {
			opts.limits.Infinite = true
			continue
		}
		if args[i] == "perft" {
			if i+1 < len(args) && args[i+1] == "suite" {
				opts.perftSuite = true
				return opts, nil
			}
			n, err := intArg(i)
			if err != nil {
				return opts, err
			}
			if n < 1 {
				return opts, errors.New("go: perft depth must be positive")
			}
			opts.perft = n
			if i+2 < len(args) {
				if args[i+2] != "captures" {
					return opts, fmt.Errorf("go: unknown perft mode %q", args[i+2])
				}
				opts.perftCaptures = true
			}
			return opts, nil
		}

		n, err := intArg(i)
		if err != nil {
			return opts, err
		}
		switch args[i] {
		case "depth":
			if n < 1 {
				return opts, errors.New("go: depth must be positive")
			}
			opts.limits.Depth = n
		case "movetime":
			opts.limits.MoveTime = ms(n)
		case "wtime":
			opts.clock.Remaining[board.White] = ms(n)
			opts.timed = true
		case "btime":
			opts.clock.Remaining[board.Black] = ms(n)
			opts.timed = true
		case "winc":
			opts.clock.Increment[board.White] = ms(n)
		case "binc":
			opts.clock.Increment[board.Black] = ms(n)
		default:
			return opts, fmt.Errorf("go: unknown parameter %q", args[i])
		}
		i++
	}
	return opts, nil
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) error {
	if u.isSearching() {
		return errSearching
	}
	opts, err := parseGoOptions(args)
	if err != nil {
		return err
	}
	switch {
	case opts.perftSuite:
		return u.handlePerftSuite()
	case opts.perft > 0:
		u.handlePerft(opts.perft, opts.perftCaptures)
		return nil
	}

	if u.opts.OwnBook {
		if m, ok := u.book.Probe(u.position); ok {
			u.log.Debug().Str("move", m.String()).Msg("book hit")
			u.printf("bestmove %s\n", m)
			return nil
		}
	}

	limits := opts.limits
	if opts.timed && limits.MoveTime == 0 && !limits.Infinite {
		limits.MoveTime = opts.clock.Budget(u.position.SideToMove)
	}

	u.engine.Prepare()
	u.outMu.Lock()
	u.searching = true
	u.searchDone = make(chan struct{})
	u.outMu.Unlock()

	pos := u.position.Copy()
	go func() {
		res := u.engine.Go(u.ctx, pos, limits)
		u.persist(pos, res)

		u.outMu.Lock()
		fmt.Fprintf(u.out, "bestmove %s\n", res.BestMove)
		u.searching = false
		close(u.searchDone)
		u.outMu.Unlock()
	}()
	return nil
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		"score " + engine.ScoreString(info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	}
	if info.Time > 0 {
		parts = append(parts, fmt.Sprintf("nps %d", uint64(float64(info.Nodes)/info.Time.Seconds())))
	}
	parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	if len(info.PV) > 0 {
		parts = append(parts, "pv "+moveText(info.PV))
	}
	u.printf("info %s\n", strings.Join(parts, " "))
}

func moveText(moves []board.Move) string {
	return strings.Join(lo.Map(moves, func(m board.Move, _ int) string { return m.String() }), " ")
}

// persist stores a finished search when persistence is on.
func (u *UCI) persist(pos *board.Position, res engine.Result) {
	if !u.opts.Persist || u.store == nil || res.Depth == 0 || res.BestMove == board.NoMove {
		return
	}
	_, err := u.store.SaveAnalysis(storage.Analysis{
		Key:      pos.Hash(),
		FEN:      pos.ToFEN(),
		BestMove: res.BestMove.String(),
		Score:    res.Score,
		Depth:    res.Depth,
		Nodes:    res.Nodes,
		PV:       lo.Map(res.PV, func(m board.Move, _ int) string { return m.String() }),
	})
	if err != nil {
		u.log.Warn().Err(err).Msg("could not store analysis")
	}
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	u.outMu.Lock()
	searching, done := u.searching, u.searchDone
	u.outMu.Unlock()
	if searching {
		u.engine.Stop()
		<-done
	}
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) error {
	// Format: setoption name <name> [value <value>]
	if len(args) < 2 || args[0] != "name" {
		return errors.New("setoption: expected name <id> [value <x>]")
	}
	valueAt := lo.IndexOf(args, "value")
	var name, value string
	if valueAt < 0 {
		name = strings.Join(args[1:], " ")
	} else {
		name = strings.Join(args[1:valueAt], " ")
		value = strings.Join(args[valueAt+1:], " ")
	}
	if u.isSearching() {
		return errSearching
	}
	if err := u.applyOption(name, value); err != nil {
		return err
	}

	if u.opts.Persist && u.store != nil && !strings.EqualFold(name, "persist") {
		if err := u.store.SetOption(name, value); err != nil {
			u.log.Warn().Err(err).Str("option", name).Msg("could not save option")
		}
	}
	return nil
}

func parseCheck(name, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("setoption %s: want true or false, got %q", name, value)
	}
	return b, nil
}

func (u *UCI) applyOption(name, value string) error {
	switch strings.ToLower(name) {
	case "hash":
		mb, err := strconv.Atoi(value)
		if err != nil || mb < 1 || mb > maxHashMB {
			return fmt.Errorf("setoption Hash: want 1..%d, got %q", maxHashMB, value)
		}
		u.opts.HashMB = mb
		u.engine.SetHashSize(mb)
	case "ownbook":
		v, err := parseCheck(name, value)
		if err != nil {
			return err
		}
		u.opts.OwnBook = v
		u.loadBook()
	case "bookfile":
		u.opts.BookFile = value
		u.loadBook()
	case "promotions":
		mode, err := board.ParsePromotionMode(value)
		if err != nil {
			return fmt.Errorf("setoption Promotions: %w", err)
		}
		u.opts.Promotions = mode
		u.engine.SetPromotions(mode)
	case "debug":
		v, err := parseCheck(name, value)
		if err != nil {
			return err
		}
		u.opts.Debug = v
		board.DebugMoveValidation = v
	case "persist":
		v, err := parseCheck(name, value)
		if err != nil {
			return err
		}
		if v && u.store == nil {
			return errors.New("setoption Persist: no storage configured")
		}
		u.opts.Persist = v
	default:
		return fmt.Errorf("setoption: unknown option %q", name)
	}
	return nil
}

// loadBook (re)opens the configured book. A missing or unreadable book
// leaves the engine without one.
func (u *UCI) loadBook() {
	u.book = nil
	if !u.opts.OwnBook || u.opts.BookFile == "" {
		return
	}
	b, err := book.Load(u.opts.BookFile)
	if err != nil {
		u.log.Warn().Err(err).Str("path", u.opts.BookFile).Msg("playing without opening book")
		return
	}
	u.book = b
	u.log.Info().Str("path", u.opts.BookFile).Int("entries", b.Len()).Msg("opening book loaded")
}

func (u *UCI) handleDisplay() {
	u.println(u.position.String())
	if u.store == nil {
		return
	}
	a, err := u.store.LoadAnalysis(u.position.Hash())
	switch {
	case err == nil:
		u.printf("Stored: depth %d score %s bestmove %s pv %s\n",
			a.Depth, engine.ScoreString(a.Score), a.BestMove, strings.Join(a.PV, " "))
	case !errors.Is(err, storage.ErrNotFound):
		u.log.Warn().Err(err).Msg("could not read analysis")
	}
}

// handlePoly lists the book moves stored for the current position.
func (u *UCI) handlePoly() {
	entries := u.book.Entries(u.position.Hash())
	if len(entries) == 0 {
		u.println("info string no book moves")
		return
	}
	king := u.position.KingSquare(u.position.SideToMove)
	for _, e := range entries {
		u.printf("bookinfo weight %d move %s\n", e.Weight, e.Decode(king))
	}
}

// handlePerft prints the node count under each root move and the total.
func (u *UCI) handlePerft(depth int, capturesOnly bool) {
	start := time.Now()
	split := board.Divide(u.position, depth, capturesOnly)
	var total uint64
	for _, s := range split {
		u.printf("%s: %d\n", s.Move, s.Nodes)
		total += s.Nodes
	}
	elapsed := time.Since(start)
	u.printf("\nNodes searched: %d\n", total)
	u.log.Info().Int("depth", depth).Uint64("nodes", total).Dur("elapsed", elapsed).Msg("perft")
}

func (u *UCI) handlePerftSuite() error {
	results, err := engine.RunPerftSuite(u.ctx, engine.DefaultPerftSuite(), runtime.NumCPU())
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "error: " + r.Err.Error()
			failed++
		case !r.OK():
			status = fmt.Sprintf("FAIL want %d", r.Case.Nodes)
			failed++
		}
		u.printf("%-24s depth %d nodes %d time %d %s\n", r.Case.Name, r.Case.Depth, r.Got, r.Elapsed.Milliseconds(), status)
	}
	u.printf("perft suite: %d/%d passed\n", len(results)-failed, len(results))
	return nil
}

func (u *UCI) handleHelp() {
	for _, l := range []string{
		"uci - show engine id and options",
		"isready - check the engine is ready for commands",
		"ucinewgame - forget the previous game",
		"setoption name <option> value <value> - change an option listed by uci",
		"position [startpos | fen <fen>] [moves <move1> ... <moveN>] - set up a position",
		"go - search until stop",
		"go depth <n> | movetime <ms> | wtime <ms> btime <ms> [winc <ms>] [binc <ms>] | infinite - search with limits",
		"go perft <n> [captures] - count leaf nodes below each move",
		"go perft suite - run the built-in perft positions",
		"stop - end the current search",
		"d - display the current position",
		"poly - list opening book moves for the current position",
		"static - print the static evaluation",
		"help - show this screen",
		"quit - exit",
	} {
		u.println(l)
	}
}
