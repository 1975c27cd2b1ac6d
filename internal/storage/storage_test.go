package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func openTest(t *testing.T) *Storage {
	t.Helper()
	s, err := OpenInMemory(zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAnalysisDepthPreferred(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	_, err := s.LoadAnalysis(42)
	is.True(err == ErrNotFound)

	ok, err := s.SaveAnalysis(Analysis{Key: 42, BestMove: "e2e4", Score: 30, Depth: 8, PV: []string{"e2e4", "e7e5"}})
	is.NoErr(err)
	is.True(ok)

	ok, err = s.SaveAnalysis(Analysis{Key: 42, BestMove: "d2d4", Score: 10, Depth: 6})
	is.NoErr(err)
	is.True(!ok) // shallower result is dropped

	a, err := s.LoadAnalysis(42)
	is.NoErr(err)
	is.Equal(a.BestMove, "e2e4")
	is.Equal(a.Depth, 8)
	is.Equal(a.PV, []string{"e2e4", "e7e5"})
	is.True(!a.At.IsZero())

	ok, err = s.SaveAnalysis(Analysis{Key: 42, BestMove: "g1f3", Score: 25, Depth: 8})
	is.NoErr(err)
	is.True(!ok) // equal depth keeps the first

	ok, err = s.SaveAnalysis(Analysis{Key: 7, BestMove: "a2a3", Depth: 1})
	is.NoErr(err)
	is.True(ok)

	n, err := s.AnalysisCount()
	is.NoErr(err)
	is.Equal(n, 2)
}

func TestOptions(t *testing.T) {
	is := is.New(t)
	s := openTest(t)

	is.NoErr(s.SetOption("Hash", "64"))
	is.NoErr(s.SetOption("Promotions", "queen"))
	is.NoErr(s.SetOption("hash", "128"))

	opts, err := s.Options()
	is.NoErr(err)
	is.Equal(opts, map[string]string{"hash": "128", "promotions": "queen"})

	is.NoErr(s.DeleteOption("PROMOTIONS"))
	opts, err = s.Options()
	is.NoErr(err)
	is.Equal(len(opts), 1)
}

func TestReopenOnDisk(t *testing.T) {
	is := is.New(t)
	dir, err := GetDatabaseDir(filepath.Join(t.TempDir(), "db"))
	is.NoErr(err)

	s, err := Open(dir, zerolog.Nop())
	is.NoErr(err)
	_, err = s.SaveAnalysis(Analysis{Key: 1, BestMove: "e2e4", Depth: 3})
	is.NoErr(err)
	is.NoErr(s.SetOption("OwnBook", "false"))
	is.NoErr(s.Close())
	is.NoErr(s.Close()) // second close is a no-op

	s, err = Open(dir, zerolog.Nop())
	is.NoErr(err)
	defer s.Close()
	a, err := s.LoadAnalysis(1)
	is.NoErr(err)
	is.Equal(a.BestMove, "e2e4")
	opts, err := s.Options()
	is.NoErr(err)
	is.Equal(opts["ownbook"], "false")
}

func TestDataPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if filepath.Base(dataDir) != appName {
		t.Errorf("unexpected data dir %s", dataDir)
	}
	if _, err := os.Stat(dataDir); err != nil {
		t.Errorf("data directory was not created: %v", err)
	}

	dbDir, err := GetDatabaseDir("")
	if err != nil {
		t.Fatalf("GetDatabaseDir failed: %v", err)
	}
	if _, err := os.Stat(dbDir); err != nil {
		t.Errorf("database directory was not created: %v", err)
	}
}
