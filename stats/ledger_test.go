package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordAndPersist(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	l, err := Open(dir, WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	first, err := l.Record(Run{Identity: "ann@school.edu", Appeared: 3, Qualified: 2, NotQualified: 1, Issued: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, at, first.Time)

	_, err = l.Record(Run{Identity: "bo@school.edu", Appeared: 1, NotQualified: 1, Issued: 1})
	require.NoError(t, err)
	_, err = l.Record(Run{Identity: "ann@school.edu", Appeared: 2, Qualified: 1, NotQualified: 1, Issued: 1, Failed: 1})
	require.NoError(t, err)

	c, err := l.Counters()
	require.NoError(t, err)
	assert.Equal(t, 3, c.Runs)
	assert.Equal(t, 6, c.Appeared)
	assert.Equal(t, 3, c.Qualified)
	assert.Equal(t, 3, c.NotQualified)
	assert.Equal(t, 5, c.Issued)
	assert.Equal(t, 1, c.Failed)
	assert.Equal(t, map[string]int{"ann@school.edu": 4, "bo@school.edu": 1}, c.ByIdentity)

	// a fresh ledger over the same directory sees the same totals
	reopened, err := Open(dir)
	require.NoError(t, err)
	again, err := reopened.Counters()
	require.NoError(t, err)
	assert.Equal(t, c.Issued, again.Issued)

	var onDisk Counters
	data, err := os.ReadFile(filepath.Join(dir, CountersFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 5, onDisk.Issued)
}

func TestLedgerRuns(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	runs, err := l.Runs(0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for i := 1; i <= 4; i++ {
		_, err := l.Record(Run{Appeared: i, Issued: i})
		require.NoError(t, err)
	}

	runs, err = l.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, 1, runs[0].Issued)

	last, err := l.Runs(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, 3, last[0].Issued)
	assert.Equal(t, 4, last[1].Issued)
	assert.NotEqual(t, last[0].ID, last[1].ID)
}

func TestLedgerSkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Record(Run{Issued: 2})
	require.NoError(t, err)

	f, err := os.OpenFile(filepath.Join(dir, RunsFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"half`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	runs, err := l.Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLedgerRecordFailsBeforeCounting(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Record(Run{Appeared: 2, Issued: 2})
	require.NoError(t, err)

	// a directory in place of the run log makes every append fail
	require.NoError(t, os.Remove(filepath.Join(dir, RunsFile)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, RunsFile), 0o755))

	_, err = l.Record(Run{Appeared: 5, Issued: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append run log")

	c, err := l.Counters()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Runs)
	assert.Equal(t, 2, c.Issued)
}

func TestLedgerCorruptCounters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CountersFile), []byte("{nope"), 0o644))
	l, err := Open(dir)
	require.NoError(t, err)

	_, err = l.Counters()
	assert.Error(t, err)
	_, err = l.Record(Run{Issued: 1})
	assert.Error(t, err)
}

func TestLedgerConcurrentRecords(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	const workers, each = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := l.Record(Run{Identity: "shared", Appeared: 1, Issued: 1})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	c, err := l.Counters()
	require.NoError(t, err)
	assert.Equal(t, workers*each, c.Issued)
	assert.Equal(t, workers*each, c.Runs)
	assert.Equal(t, workers*each, c.ByIdentity["shared"])

	runs, err := l.Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, workers*each)
}
