package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hailam/bitsearch/internal/board"
)

// PerftCase is one entry of a perft suite file.
type PerftCase struct {
	Name  string `yaml:"name"`
	FEN   string `yaml:"fen"`
	Depth int    `yaml:"depth"`
	Nodes uint64 `yaml:"nodes"`
}

// PerftResult is the outcome of one case.
type PerftResult struct {
	Case    PerftCase
	Got     uint64
	Elapsed time.Duration
	Err     error
}

// OK reports whether the case parsed and matched its node count.
func (r PerftResult) OK() bool {
	return r.Err == nil && r.Got == r.Case.Nodes
}

//go:embed perftsuite.yaml
var defaultPerftSuite []byte

// DefaultPerftSuite returns the built-in reference positions.
func DefaultPerftSuite() []PerftCase {
	cases, err := LoadPerftSuite(bytes.NewReader(defaultPerftSuite))
	if err != nil {
		panic(err)
	}
	return cases
}

// LoadPerftSuite decodes a YAML list of perft cases.
func LoadPerftSuite(r io.Reader) ([]PerftCase, error) {
	var cases []PerftCase
	if err := yaml.NewDecoder(r).Decode(&cases); err != nil {
		return nil, fmt.Errorf("decoding perft suite: %w", err)
	}
	for i, c := range cases {
		if c.FEN == "" || c.Depth < 1 {
			return nil, fmt.Errorf("perft case %d (%s): need fen and positive depth", i, c.Name)
		}
	}
	return cases, nil
}

// RunPerftSuite counts every case on its own position, at most workers at
// a time. Results keep the order of cases. The error is non-nil only when
// ctx ends before all cases ran.
func RunPerftSuite(ctx context.Context, cases []PerftCase, workers int) ([]PerftResult, error) {
	results := make([]PerftResult, len(cases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i].Case = c
			pos, err := board.ParseFEN(c.FEN)
			if err != nil {
				results[i].Err = err
				return nil
			}
			start := time.Now()
			results[i].Got = board.Perft(pos, c.Depth)
			results[i].Elapsed = time.Since(start)
			return nil
		})
	}
	return results, g.Wait()
}
