package logx

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.WarnLevel)
	log.Info().Msg("hidden")
	log.Warn().Str("path", "book.bin").Msg("no opening book")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "no opening book")
	assert.Contains(t, out, "path=")
	assert.Contains(t, out, "logx_test.go:")
}
