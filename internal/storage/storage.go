// Package storage persists finished analyses and protocol option
// overrides in BadgerDB.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// Storage keys
const (
	analysisPrefix = "analysis/"
	optionPrefix   = "option/"
)

// Analysis is the result of a completed search from one root position.
type Analysis struct {
	Key      uint64    `json:"key"`
	FEN      string    `json:"fen"`
	BestMove string    `json:"best_move"`
	Score    int       `json:"score"`
	Depth    int       `json:"depth"`
	Nodes    uint64    `json:"nodes"`
	PV       []string  `json:"pv"`
	At       time.Time `json:"at"`
}

// Storage wraps BadgerDB. Values are JSON compressed with zstd.
type Storage struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	log zerolog.Logger
}

// Open opens or creates the database in dir.
func Open(dir string, logger zerolog.Logger) (*Storage, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(logger zerolog.Logger) (*Storage, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger zerolog.Logger) (*Storage, error) {
	logger = logger.With().Str("component", "storage").Logger()
	opts.Logger = badgerLogger{logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug().Str("path", opts.Dir).Bool("in_memory", opts.InMemory).Msg("database open")
	return &Storage{db: db, enc: enc, dec: dec, log: logger}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	s.enc.Close()
	s.dec.Close()
	err := s.db.Close()
	s.db = nil
	return err
}

func analysisKey(hash uint64) []byte {
	return fmt.Appendf(nil, "%s%016x", analysisPrefix, hash)
}

func (s *Storage) put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, s.enc.EncodeAll(data, nil))
}

func (s *Storage) get(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		data, err := s.dec.DecodeAll(val, nil)
		if err != nil {
			return fmt.Errorf("decompressing %s: %w", key, err)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveAnalysis stores a unless an analysis at least as deep is already
// stored for the same position. It reports whether a was written.
func (s *Storage) SaveAnalysis(a Analysis) (bool, error) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	written := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := analysisKey(a.Key)
		var old Analysis
		switch err := s.get(txn, key, &old); {
		case err == nil && old.Depth >= a.Depth:
			return nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
		written = true
		return s.put(txn, key, a)
	})
	if err != nil {
		return false, fmt.Errorf("saving analysis %016x: %w", a.Key, err)
	}
	if written {
		s.log.Debug().Str("hash", fmt.Sprintf("%016x", a.Key)).Int("depth", a.Depth).Msg("analysis stored")
	}
	return written, nil
}

// LoadAnalysis returns the stored analysis of the position with hash.
func (s *Storage) LoadAnalysis(hash uint64) (Analysis, error) {
	var a Analysis
	err := s.db.View(func(txn *badger.Txn) error {
		return s.get(txn, analysisKey(hash), &a)
	})
	return a, err
}

// AnalysisCount is the number of stored analyses.
func (s *Storage) AnalysisCount() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(analysisPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// SetOption records a protocol option override. Names are case-insensitive.
func (s *Storage) SetOption(name, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.put(txn, []byte(optionPrefix+strings.ToLower(name)), value)
	})
}

// DeleteOption forgets an override.
func (s *Storage) DeleteOption(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(optionPrefix + strings.ToLower(name)))
	})
}

// Options returns every stored override keyed by lower-case name.
func (s *Storage) Options() (map[string]string, error) {
	opts := map[string]string{}
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(optionPrefix)
		it := txn.NewIterator(iopts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			var v string
			if err := s.get(txn, key, &v); err != nil {
				return err
			}
			opts[strings.TrimPrefix(string(key), optionPrefix)] = v
		}
		return nil
	})
	return opts, err
}

// badgerLogger routes badger's own messages through zerolog, demoting its
// chatty info output to debug.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.log.Error().Msgf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log.Warn().Msgf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Infof(f string, v ...any)    { l.log.Debug().Msgf(strings.TrimSpace(f), v...) }
func (l badgerLogger) Debugf(f string, v ...any)   { l.log.Trace().Msgf(strings.TrimSpace(f), v...) }
