package download

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEngineer/fetscraper/pkg/logger"
)

func TestLedgerRoundTrip(t *testing.T) {
	dir := t.TempDir()

	l := OpenLedger(dir, logger.GetLogger())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Has("100"))

	require.NoError(t, l.Add("100"))
	require.NoError(t, l.Add("200"))
	require.NoError(t, l.Add("100"), "re-adding is a no-op")
	assert.Equal(t, 2, l.Len())

	// A fresh open sees what the first instance persisted
	reopened := OpenLedger(dir, logger.GetLogger())
	assert.True(t, reopened.Has("100"))
	assert.True(t, reopened.Has("200"))
	assert.False(t, reopened.Has("300"))
	assert.Equal(t, 2, reopened.Len())
}

func TestLedgerFileFormat(t *testing.T) {
	dir := t.TempDir()

	l := OpenLedger(dir, logger.GetLogger())
	require.NoError(t, l.Add("42"))

	data, err := os.ReadFile(filepath.Join(dir, LedgerFilename))
	require.NoError(t, err)

	var parsed map[string][]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, []string{"42"}, parsed["downloaded_videos"])
}

func TestLedgerCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LedgerFilename), []byte("{not json"), 0o644))

	l := OpenLedger(dir, logger.GetLogger())
	assert.Equal(t, 0, l.Len())

	require.NoError(t, l.Add("1"))
	assert.True(t, OpenLedger(dir, logger.GetLogger()).Has("1"))
}

func TestLedgerDeduplicatesOnLoad(t *testing.T) {
	dir := t.TempDir()
	raw := `{"downloaded_videos":["7","7","8"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LedgerFilename), []byte(raw), 0o644))

	l := OpenLedger(dir, logger.GetLogger())
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Has("7"))
	assert.True(t, l.Has("8"))
}

func TestLedgerConcurrentAdds(t *testing.T) {
	dir := t.TempDir()
	l := OpenLedger(dir, logger.GetLogger())

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(base int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 5; j++ {
				_ = l.Add(strconv.Itoa(base*10 + j))
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Equal(t, 20, l.Len())
}
